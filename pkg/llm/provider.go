package llm

import (
	"context"
	"log/slog"

	"github.com/invopop/jsonschema"
)

type NewMessageParams struct {
	SystemPrompt    string
	ToolDefinitions []ToolDefinition
	History         []Message
	EnableCaching   bool
	Logger          *slog.Logger
}

type ToolDefinition struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Provider produces the next assistant message for a conversation.
// Implementations wrap a single inference backend and must be safe for
// concurrent use, as the evaluation harness shares one provider across
// workers.
type Provider interface {
	NewMessage(ctx context.Context, params NewMessageParams) (Message, error)
}
