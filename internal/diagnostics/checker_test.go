package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-notes-go/internal/config"
)

func mockConfig(dataDir string) config.Config {
	return config.Config{
		DataDir:          dataDir,
		TranscribeEngine: config.TranscribeEngineMock,
		LLMEngine:        config.LLMEngineMock,
		LLMModel:         "gpt-4o-mini",
	}
}

func itemByID(t *testing.T, report Report, id string) Item {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
	return Item{}
}

func TestRunAllPass(t *testing.T) {
	report := NewChecker().Run(mockConfig(t.TempDir()))

	require.False(t, report.HasFailures, "items: %+v", report.Items)
	require.Len(t, report.Items, 3)
	for _, item := range report.Items {
		assert.Equal(t, StatusPass, item.Status, item.ID)
		assert.NotEmpty(t, item.Message, item.ID)
	}
}

func TestDataTreeCreated(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	report := NewChecker().Run(mockConfig(root))

	assert.False(t, report.HasFailures)
	for _, dir := range []string{"uploads", "transcripts", "summaries", "notes"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestEmptyDataDirFails(t *testing.T) {
	report := NewChecker().Run(mockConfig(""))

	item := itemByID(t, report, "data_tree")
	assert.Equal(t, StatusFail, item.Status)
	assert.Contains(t, item.Hint, "DATA_DIR")
}

func TestUnwritableDataTreeFails(t *testing.T) {
	checker := NewCheckerForTests(
		func(string, os.FileMode) error { return nil },
		func(string, string) (*os.File, error) { return nil, errors.New("read-only filesystem") },
		os.Remove,
	)
	report := checker.Run(mockConfig(t.TempDir()))

	require.True(t, report.HasFailures)
	item := itemByID(t, report, "data_tree")
	assert.Equal(t, StatusFail, item.Status)
	assert.Contains(t, item.Message, "not writable")
}

func TestMkdirFailureFails(t *testing.T) {
	checker := NewCheckerForTests(
		func(string, os.FileMode) error { return errors.New("permission denied") },
		os.CreateTemp,
		os.Remove,
	)
	report := checker.Run(mockConfig(t.TempDir()))

	item := itemByID(t, report, "data_tree")
	assert.Equal(t, StatusFail, item.Status)
	assert.Contains(t, item.Message, "Cannot create")
}

func TestWhisperWithoutKeyFails(t *testing.T) {
	cfg := mockConfig(t.TempDir())
	cfg.TranscribeEngine = config.TranscribeEngineWhisper
	cfg.TranscribeURL = "https://api.openai.com/v1/audio/transcriptions"

	report := NewChecker().Run(cfg)
	item := itemByID(t, report, "transcribe_engine")
	assert.Equal(t, StatusFail, item.Status)
	assert.Contains(t, item.Hint, "TRANSCRIBE_API_KEY")
}

func TestWhisperBadURLFails(t *testing.T) {
	cfg := mockConfig(t.TempDir())
	cfg.TranscribeEngine = config.TranscribeEngineWhisper
	cfg.TranscribeAPIKey = "sk-test"
	cfg.TranscribeURL = "api.openai.com/no-scheme"

	report := NewChecker().Run(cfg)
	item := itemByID(t, report, "transcribe_engine")
	assert.Equal(t, StatusFail, item.Status)
}

func TestWhisperConfiguredPasses(t *testing.T) {
	cfg := mockConfig(t.TempDir())
	cfg.TranscribeEngine = config.TranscribeEngineWhisper
	cfg.TranscribeAPIKey = "sk-test"
	cfg.TranscribeURL = "https://whisper.internal:9000/v1/audio/transcriptions"

	report := NewChecker().Run(cfg)
	item := itemByID(t, report, "transcribe_engine")
	assert.Equal(t, StatusPass, item.Status)
}

func TestOpenAIWithoutKeyFails(t *testing.T) {
	cfg := mockConfig(t.TempDir())
	cfg.LLMEngine = config.LLMEngineOpenAI

	report := NewChecker().Run(cfg)
	item := itemByID(t, report, "llm_engine")
	assert.Equal(t, StatusFail, item.Status)
	assert.Contains(t, item.Hint, "LLM_API_KEY")
}

func TestOpenAIGatewayURL(t *testing.T) {
	cfg := mockConfig(t.TempDir())
	cfg.LLMEngine = config.LLMEngineOpenAI
	cfg.LLMAPIKey = "sk-test"
	cfg.LLMGatewayURL = "http://llm-gateway.internal/v1"

	report := NewChecker().Run(cfg)
	assert.Equal(t, StatusPass, itemByID(t, report, "llm_engine").Status)

	cfg.LLMGatewayURL = "gateway-without-scheme"
	report = NewChecker().Run(cfg)
	assert.Equal(t, StatusFail, itemByID(t, report, "llm_engine").Status)
}

func TestUnknownEnginesFail(t *testing.T) {
	cfg := mockConfig(t.TempDir())
	cfg.TranscribeEngine = "deepgram"
	cfg.LLMEngine = "claude"

	report := NewChecker().Run(cfg)
	require.True(t, report.HasFailures)
	assert.Equal(t, StatusFail, itemByID(t, report, "transcribe_engine").Status)
	assert.Equal(t, StatusFail, itemByID(t, report, "llm_engine").Status)
}
