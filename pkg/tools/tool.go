package tools

import (
	"context"

	"github.com/swaggest/jsonschema-go"
)

// Tool is the interface for all tools
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the keyed arguments Run accepts.
	Parameters() *jsonschema.Schema
	// Run executes the tool. Builtin tools report failures as text in the
	// result; a returned error means the tool itself could not run.
	Run(ctx context.Context, args map[string]any) (string, error)
}
