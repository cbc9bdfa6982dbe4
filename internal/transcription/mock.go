package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"audio-notes-go/internal/types"
)

const mockScript = "Thanks everyone for joining. We reviewed the quarterly roadmap and agreed to ship the beta by the end of next month. Dana will draft the release notes and Priya owns the rollout checklist. We still need a decision on the pricing page before launch."

// Mock produces a deterministic transcript without calling any external
// service, so the full pipeline can run in tests and on laptops with no
// credentials. Script overrides the canned text when set.
type Mock struct {
	Script string
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Transcribe(ctx context.Context, req Request) (*types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.TransientError(err)
	}
	info, err := os.Stat(req.AudioPath)
	if err != nil {
		return nil, types.PermanentError(fmt.Errorf("open audio: %w", err))
	}

	script := m.Script
	if script == "" {
		script = fmt.Sprintf("[%s] %s", filepath.Base(req.AudioPath), mockScript)
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	// Pretend the file plays at a fixed bitrate and split the script into
	// even segments across that duration.
	duration := float64(info.Size()) / 32000.0
	if duration < 1 {
		duration = 1
	}

	sentences := splitSentences(script)
	segments := make([]types.Segment, 0, len(sentences))
	step := duration / float64(len(sentences))
	for i, sentence := range sentences {
		segments = append(segments, types.Segment{
			Start: float64(i) * step,
			End:   float64(i+1) * step,
			Text:  sentence,
		})
	}

	return &types.Transcript{
		Text:            script,
		Segments:        segments,
		Language:        language,
		DurationSeconds: duration,
	}, nil
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	if len(out) == 0 {
		out = []string{strings.TrimSpace(text)}
	}
	return out
}
