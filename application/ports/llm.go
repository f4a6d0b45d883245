package ports

import "context"

// CompletionRequest is a single chat completion exchange.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
}

// ChatCompleter is the port to the external text generation service. Complete
// returns the raw assistant message content; transport failures and empty
// responses surface as errors.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
