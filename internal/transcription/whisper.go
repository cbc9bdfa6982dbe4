package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"audio-notes-go/internal/types"
)

// Whisper talks to an OpenAI-compatible /v1/audio/transcriptions endpoint
// and asks for verbose_json so segment timestamps come back with the text.
type Whisper struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewWhisper(url, apiKey, model string) *Whisper {
	return &Whisper{
		url:    url,
		apiKey: apiKey,
		model:  model,
		// No client-level timeout; the per-stage context bounds each call.
		client: &http.Client{},
	}
}

func (w *Whisper) Name() string { return "whisper" }

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *Whisper) Transcribe(ctx context.Context, req Request) (*types.Transcript, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, types.PermanentError(fmt.Errorf("open audio: %w", err))
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, types.PermanentError(err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, types.PermanentError(fmt.Errorf("read audio: %w", err))
	}
	mw.WriteField("model", w.model)
	mw.WriteField("response_format", "verbose_json")
	if req.Language != "" {
		mw.WriteField("language", req.Language)
	}
	if err := mw.Close(); err != nil {
		return nil, types.PermanentError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return nil, types.PermanentError(err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, types.TransientError(fmt.Errorf("transcription request: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, snippet(respBody))
		if retryableStatus(resp.StatusCode) {
			return nil, types.TransientError(err)
		}
		return nil, types.PermanentError(err)
	}

	var parsed whisperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, types.PermanentError(fmt.Errorf("decode transcription response: %w", err))
	}

	tr := &types.Transcript{
		Text:            strings.TrimSpace(parsed.Text),
		Segments:        make([]types.Segment, 0, len(parsed.Segments)),
		Language:        parsed.Language,
		DurationSeconds: parsed.Duration,
	}
	for _, seg := range parsed.Segments {
		tr.Segments = append(tr.Segments, types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return tr, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

func snippet(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
