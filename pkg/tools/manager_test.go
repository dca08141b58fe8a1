package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggest/jsonschema-go"
)

type fakeTool struct {
	name, desc string
	out        string
	err        error
	gotArgs    map[string]any
}

func (f *fakeTool) Name() string                   { return f.name }
func (f *fakeTool) Description() string            { return f.desc }
func (f *fakeTool) Parameters() *jsonschema.Schema { return nil }
func (f *fakeTool) Run(_ context.Context, args map[string]any) (string, error) {
	f.gotArgs = args
	return f.out, f.err
}

func TestToolManager_DescribeAllKeepsInsertionOrder(t *testing.T) {
	m := NewToolManager()
	m.RegisterTool(&fakeTool{name: "zeta", desc: "last letter"})
	m.RegisterTool(&fakeTool{name: "alpha", desc: "first letter"})
	m.RegisterTool(&fakeTool{name: "mid", desc: "somewhere"})

	assert.Equal(t, "- zeta: last letter\n- alpha: first letter\n- mid: somewhere", m.DescribeAll())
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Names())
	assert.Equal(t, 3, m.Len())
}

func TestToolManager_RegisterOverwritesInPlace(t *testing.T) {
	m := NewToolManager()
	m.RegisterTool(&fakeTool{name: "a", desc: "old", out: "old"})
	m.RegisterTool(&fakeTool{name: "b", desc: "b"})
	m.RegisterTool(&fakeTool{name: "a", desc: "new", out: "new"})

	require.Equal(t, []string{"a", "b"}, m.Names())
	out, err := m.Invoke(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", out)
	assert.Equal(t, "- a: new\n- b: b", m.DescribeAll())
}

func TestToolManager_InvokeUnknownTool(t *testing.T) {
	m := NewToolManager()
	_, err := m.Invoke(context.Background(), "nonexistent", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)

	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nonexistent", unknown.Name)
	assert.EqualError(t, err, "tool not found: nonexistent")
}

func TestToolManager_InvokePropagatesToolErrors(t *testing.T) {
	boom := errors.New("boom")
	m := NewToolManager()
	m.RegisterTool(&fakeTool{name: "broken", err: boom})

	_, err := m.Invoke(context.Background(), "broken", map[string]any{"x": 1})
	assert.ErrorIs(t, err, boom)
}

func TestToolManager_InvokePassesArguments(t *testing.T) {
	ft := &fakeTool{name: "echo", out: "ok"}
	m := NewToolManager()
	m.RegisterTool(ft)

	_, err := m.Invoke(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.NotNil(t, ft.gotArgs)

	_, err = m.Invoke(context.Background(), "echo", map[string]any{"q": "v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"q": "v"}, ft.gotArgs)
}

func TestToolManager_OpenAITools(t *testing.T) {
	m := NewToolManager()
	m.RegisterTool(NewCalculatorTool())
	m.RegisterTool(&fakeTool{name: "bare", desc: "no schema"})

	defs := m.OpenAITools()
	require.Len(t, defs, 2)

	assert.Equal(t, CalculatorName, defs[0].Function.Name)
	schema, ok := defs[0].Function.Parameters.(*jsonschema.Schema)
	require.True(t, ok)
	assert.Contains(t, schema.Properties, "expression")
	assert.Contains(t, schema.Required, "expression")

	assert.Equal(t, "bare", defs[1].Function.Name)
	assert.Same(t, emptyObjectSchema, defs[1].Function.Parameters)
}
