package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Engine selectors. Mock engines run the full pipeline without external
// services, which keeps local setups and tests self-contained.
const (
	TranscribeEngineWhisper = "whisper"
	TranscribeEngineMock    = "mock"
	LLMEngineOpenAI         = "openai"
	LLMEngineMock           = "mock"
)

// Config carries everything the service reads from the environment. Values
// not set fall back to documented defaults.
type Config struct {
	DataDir        string
	Port           string
	MaxConcurrent  int
	MaxUploadBytes int64

	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	StageTimeout         time.Duration

	SummaryChunkTokens int

	TranscribeEngine string
	TranscribeURL    string
	TranscribeAPIKey string
	TranscribeModel  string

	LLMEngine     string
	LLMAPIKey     string
	LLMGatewayURL string
	LLMModel      string
}

// Load reads the environment into a Config. It does not touch the
// filesystem; callers load .env files before calling it.
func Load() Config {
	return Config{
		DataDir:        envOr("DATA_DIR", "."),
		Port:           envOr("PORT", "8080"),
		MaxConcurrent:  envInt("MAX_CONCURRENT_JOBS", 4),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 256<<20),

		RetryMaxAttempts:     envInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialInterval: envDuration("RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
		StageTimeout:         envDuration("STAGE_TIMEOUT", 5*time.Minute),

		SummaryChunkTokens: envInt("SUMMARY_CHUNK_TOKENS", 2000),

		TranscribeEngine: envOr("TRANSCRIBE_ENGINE", TranscribeEngineMock),
		TranscribeURL:    envOr("TRANSCRIBE_URL", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeAPIKey: os.Getenv("TRANSCRIBE_API_KEY"),
		TranscribeModel:  envOr("TRANSCRIBE_MODEL", "whisper-1"),

		LLMEngine:     envOr("LLM_ENGINE", LLMEngineMock),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		LLMGatewayURL: os.Getenv("LLM_GATEWAY_URL"),
		LLMModel:      envOr("LLM_MODEL", "gpt-4o-mini"),
	}
}

// Validate rejects combinations that cannot work, like a real engine with no
// credentials.
func (c Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.SummaryChunkTokens < 1 {
		return fmt.Errorf("SUMMARY_CHUNK_TOKENS must be at least 1, got %d", c.SummaryChunkTokens)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}

	switch c.TranscribeEngine {
	case TranscribeEngineMock:
	case TranscribeEngineWhisper:
		if c.TranscribeAPIKey == "" {
			return fmt.Errorf("TRANSCRIBE_ENGINE=%s requires TRANSCRIBE_API_KEY", c.TranscribeEngine)
		}
	default:
		return fmt.Errorf("unknown TRANSCRIBE_ENGINE %q", c.TranscribeEngine)
	}

	switch c.LLMEngine {
	case LLMEngineMock:
	case LLMEngineOpenAI:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_ENGINE=%s requires LLM_API_KEY", c.LLMEngine)
		}
	default:
		return fmt.Errorf("unknown LLM_ENGINE %q", c.LLMEngine)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
