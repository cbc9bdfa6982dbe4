package diagnostics

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"audio-notes-go/internal/config"
	"audio-notes-go/internal/storage"
)

// Status indicates whether a single setup check passed.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Item is one setup check result with an optional remediation hint.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Report aggregates the setup checks. HasFailures drives the setup command's
// exit code.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	HasFailures bool      `json:"has_failures"`
	Items       []Item    `json:"items"`
}

// Checker validates the data directory tree and the engine configuration
// before the service starts taking uploads.
type Checker struct {
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewCheckerForTests creates a checker with injectable filesystem calls.
func NewCheckerForTests(
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{mkdirAll: mkdirAll, createTemp: createTemp, remove: remove}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(cfg config.Config) Report {
	items := []Item{
		c.checkDataTree(cfg.DataDir),
		c.checkTranscribeEngine(cfg),
		c.checkLLMEngine(cfg),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == StatusFail {
			hasFailures = true
			break
		}
	}

	return Report{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkDataTree creates the four pipeline directories and probes each for
// write access.
func (c *Checker) checkDataTree(dataDir string) Item {
	item := Item{
		ID:   "data_tree",
		Name: "Data directory",
	}

	if dataDir == "" {
		item.Status = StatusFail
		item.Message = "Data directory is empty."
		item.Hint = "Set DATA_DIR to the directory that should hold uploads and artifacts."
		return item
	}

	for _, dir := range storage.NewLayout(dataDir).Dirs() {
		if err := c.mkdirAll(dir, 0o755); err != nil {
			item.Status = StatusFail
			item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
			item.Hint = "Choose a writable location or adjust filesystem permissions."
			return item
		}
		tmp, err := c.createTemp(dir, ".write-check-*")
		if err != nil {
			item.Status = StatusFail
			item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
			item.Hint = "The pipeline writes uploads and artifacts here; fix permissions before serving."
			return item
		}
		name := tmp.Name()
		_ = tmp.Close()
		_ = c.remove(name)
	}

	item.Status = StatusPass
	item.Message = fmt.Sprintf("Writable data tree under %s", dataDir)
	return item
}

// checkTranscribeEngine validates the transcription engine selection.
func (c *Checker) checkTranscribeEngine(cfg config.Config) Item {
	item := Item{
		ID:   "transcribe_engine",
		Name: "Transcription engine",
	}

	switch cfg.TranscribeEngine {
	case config.TranscribeEngineMock:
		item.Status = StatusPass
		item.Message = "Mock engine selected; no external service required."
	case config.TranscribeEngineWhisper:
		if cfg.TranscribeAPIKey == "" {
			item.Status = StatusFail
			item.Message = "Whisper engine selected but no API key is set."
			item.Hint = "Set TRANSCRIBE_API_KEY, or switch TRANSCRIBE_ENGINE to mock."
			return item
		}
		if msg, ok := checkURL(cfg.TranscribeURL); !ok {
			item.Status = StatusFail
			item.Message = fmt.Sprintf("Transcription URL %s", msg)
			item.Hint = "Set TRANSCRIBE_URL to the full transcription endpoint, including the scheme."
			return item
		}
		item.Status = StatusPass
		item.Message = fmt.Sprintf("Whisper engine configured against %s", cfg.TranscribeURL)
	default:
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Unknown engine %q.", cfg.TranscribeEngine)
		item.Hint = "TRANSCRIBE_ENGINE must be whisper or mock."
	}
	return item
}

// checkLLMEngine validates the summarization/notes engine selection.
func (c *Checker) checkLLMEngine(cfg config.Config) Item {
	item := Item{
		ID:   "llm_engine",
		Name: "Language model engine",
	}

	switch cfg.LLMEngine {
	case config.LLMEngineMock:
		item.Status = StatusPass
		item.Message = "Mock engine selected; no external service required."
	case config.LLMEngineOpenAI:
		if cfg.LLMAPIKey == "" {
			item.Status = StatusFail
			item.Message = "OpenAI engine selected but no API key is set."
			item.Hint = "Set LLM_API_KEY, or switch LLM_ENGINE to mock."
			return item
		}
		if cfg.LLMGatewayURL != "" {
			if msg, ok := checkURL(cfg.LLMGatewayURL); !ok {
				item.Status = StatusFail
				item.Message = fmt.Sprintf("Gateway URL %s", msg)
				item.Hint = "LLM_GATEWAY_URL must be an absolute http(s) URL, or empty for the default endpoint."
				return item
			}
		}
		item.Status = StatusPass
		item.Message = fmt.Sprintf("OpenAI engine configured, model %s.", cfg.LLMModel)
	default:
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Unknown engine %q.", cfg.LLMEngine)
		item.Hint = "LLM_ENGINE must be openai or mock."
	}
	return item
}

func checkURL(raw string) (string, bool) {
	if raw == "" {
		return "is empty.", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("does not parse: %v.", err), false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("has scheme %q, want http or https.", u.Scheme), false
	}
	if u.Host == "" {
		return "has no host.", false
	}
	return "", true
}
