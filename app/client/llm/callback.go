package llm

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/callbacks"
)

var _ callbacks.Handler = logHandler{}

// logHandler surfaces model-level failures in the service log; everything
// else stays quiet.
type logHandler struct {
	callbacks.SimpleHandler
}

func (logHandler) HandleLLMError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "LLM error", "error", err)
}

func (logHandler) HandleChainError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Chain error", "error", err)
}
