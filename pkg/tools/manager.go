package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/comigor/cidion/internal/logger"
	"github.com/sashabaranov/go-openai"
	"github.com/swaggest/jsonschema-go"
)

// ErrUnknownTool is matched by errors.Is for every UnknownToolError.
var ErrUnknownTool = errors.New("unknown tool")

// UnknownToolError is returned when invoking a name that was never registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

// ToolManager manages the available tools
type ToolManager struct {
	tools map[string]Tool
	order []string
}

// NewToolManager creates a new ToolManager
func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]Tool),
	}
}

// RegisterTool registers a new tool. A second registration under the same
// name replaces the first but keeps its position.
func (m *ToolManager) RegisterTool(tool Tool) {
	if _, exists := m.tools[tool.Name()]; !exists {
		m.order = append(m.order, tool.Name())
	}
	m.tools[tool.Name()] = tool
	logger.L.Info("registered tool", "tool", tool.Name())
}

// GetTool retrieves a tool by name
func (m *ToolManager) GetTool(name string) (Tool, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// List returns all registered tools in registration order
func (m *ToolManager) List() []Tool {
	ts := make([]Tool, 0, len(m.order))
	for _, name := range m.order {
		ts = append(ts, m.tools[name])
	}
	return ts
}

// Names returns the registered tool names in registration order.
func (m *ToolManager) Names() []string {
	return append([]string(nil), m.order...)
}

// Len reports how many tools are registered.
func (m *ToolManager) Len() int { return len(m.order) }

// DescribeAll renders one "- name: description" line per tool. The output is
// embedded verbatim in prompts.
func (m *ToolManager) DescribeAll() string {
	lines := make([]string, 0, len(m.order))
	for _, t := range m.List() {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
	}
	return strings.Join(lines, "\n")
}

// Invoke runs the named tool. Errors raised by the tool are returned as is.
func (m *ToolManager) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, err := m.GetTool(name)
	if err != nil {
		return "", err
	}
	if args == nil {
		args = map[string]any{}
	}
	logger.L.Info("executing tool", "tool", name, "arguments", args)
	out, err := tool.Run(ctx, args)
	if err != nil {
		logger.L.Error("tool execution failed", "tool", name, "error", err)
		return "", err
	}
	logger.L.Debug("tool executed", "tool", name, "length", len(out))
	return out, nil
}

var emptyObjectSchema = func() *jsonschema.Schema {
	objType := jsonschema.SimpleType("object")
	return &jsonschema.Schema{
		Type:       &jsonschema.Type{SimpleTypes: &objType},
		Properties: map[string]jsonschema.SchemaOrBool{},
	}
}()

// OpenAITools converts the registry into function-calling definitions.
func (m *ToolManager) OpenAITools() []openai.Tool {
	out := make([]openai.Tool, 0, len(m.order))
	for _, t := range m.List() {
		params := t.Parameters()
		if params == nil {
			params = emptyObjectSchema
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return out
}
