package llm

import "context"

// Request is one completion call. Temperature is pinned to zero by the
// implementations; the pipeline wants reproducible output, not creativity.
type Request struct {
	Prompt    string
	MaxTokens int
	JSONMode  bool
}

// Client generates text from a prompt. Implementations classify failures as
// transient or permanent via types.EngineError and never retry internally;
// retrying is the pipeline's call.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}
