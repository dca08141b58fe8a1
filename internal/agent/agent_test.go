package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/comigor/cidion/internal/config"
	"github.com/comigor/cidion/internal/history"
	"github.com/comigor/cidion/internal/llm"
	"github.com/comigor/cidion/pkg/tools"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	err      error         // returned by every call when set
	failAt   map[int]error // per call index
	requests []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	idx := len(m.requests)
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if err, ok := m.failAt[idx]; ok {
		return openai.ChatCompletionResponse{}, err
	}
	if len(m.calls) == 0 {
		return openai.ChatCompletionResponse{}, fmt.Errorf("mockLLM: no more responses configured for request %d", idx)
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func text(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	}}}
}

func toolCalls(content string, calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content, ToolCalls: calls},
	}}}
}

func call(id, name, args string) openai.ToolCall {
	return openai.ToolCall{ID: id, Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: name, Arguments: args}}
}

func testConfig(dispatch string) *config.Config {
	return &config.Config{
		LLM:     config.LLMConfig{Model: "gpt", PlanTemperature: 0.1, ExecuteTemperature: 0.2, SynthesisTemperature: 0.3},
		History: config.HistoryConfig{MaxMessages: 50, ContextMessages: 5},
		Agent:   config.AgentConfig{Dispatch: dispatch, MaxToolResultLength: 2000},
	}
}

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestToolManager() *tools.ToolManager {
	m := tools.NewToolManager()
	m.RegisterTool(tools.NewCalculatorTool())
	m.RegisterTool(tools.NewReadFileTool(afero.NewMemMapFs(), 2000))
	return m
}

func newTestAgent(t *testing.T, mock *mockLLM, dispatch string) (*Agent, *history.Store) {
	t.Helper()
	store := newTestStore(t)
	a := New(llm.NewCompleter(mock, "gpt", 0), newTestToolManager(), store, testConfig(dispatch))
	return a, store
}

func lastMessage(t *testing.T, store *history.Store, sessionID string) history.Message {
	t.Helper()
	msgs, err := store.History(context.Background(), sessionID, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

// TestProcessMessage_RespondsDirectly covers a turn where no tool is called.
func TestProcessMessage_RespondsDirectly(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		text("1. Greet the user\n\n2. Offer help\n"),
		text("Hello, I am a helpful AI."),
	}}
	a, store := newTestAgent(t, mock, config.DispatchFunctionCalling)

	resp, err := a.ProcessMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello, I am a helpful AI.", resp.Content)
	assert.Equal(t, []string{"1. Greet the user", "2. Offer help"}, resp.ThoughtProcess)
	assert.Empty(t, resp.ToolsUsed)
	assert.Empty(t, resp.ExecutionSteps)
	require.Len(t, mock.requests, 2)

	plan := mock.requests[0]
	require.Len(t, plan.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleSystem, plan.Messages[0].Role)
	assert.Contains(t, plan.Messages[0].Content, "- calculate: Perform mathematical calculations safely")
	assert.Contains(t, plan.Messages[0].Content, "User's request: hi")
	assert.InDelta(t, 0.1, plan.Temperature, 1e-6)
	assert.Empty(t, plan.Tools)

	exec := mock.requests[1]
	assert.Len(t, exec.Tools, 2)
	assert.Equal(t, "auto", exec.ToolChoice)
	assert.InDelta(t, 0.2, exec.Temperature, 1e-6)
	assert.Contains(t, exec.Messages[0].Content, "Your plan:\n1. Greet the user")

	msgs, err := store.History(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, history.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, history.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello, I am a helpful AI.", msgs[1].Content)
	assert.Nil(t, msgs[1].Metadata)
}

// TestProcessMessage_FunctionCalling covers plan, tool call and synthesis.
func TestProcessMessage_FunctionCalling(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		text("1. Use the calculator"),
		toolCalls("", call("call_1", tools.CalculatorName, `{"expression": "10 * 5"}`)),
		text("10 times 5 is 50."),
	}}
	a, store := newTestAgent(t, mock, config.DispatchFunctionCalling)

	resp, err := a.ProcessMessage(context.Background(), "s1", "What is 10 * 5?")
	require.NoError(t, err)

	assert.Equal(t, "10 times 5 is 50.", resp.Content)
	require.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, tools.CalculatorName, resp.ToolsUsed[0].Name)
	assert.Equal(t, map[string]any{"expression": "10 * 5"}, resp.ToolsUsed[0].Args)
	assert.Equal(t, "10 * 5 = 50", resp.ToolsUsed[0].Result)
	assert.Equal(t, []string{"Using calculate tool"}, resp.ExecutionSteps)

	require.Len(t, mock.requests, 3)
	synth := mock.requests[2]
	assert.InDelta(t, 0.3, synth.Temperature, 1e-6)
	assert.Empty(t, synth.Tools)
	n := len(synth.Messages)
	require.GreaterOrEqual(t, n, 2)
	assert.Len(t, synth.Messages[n-2].ToolCalls, 1)
	assert.Equal(t, openai.ChatMessageRoleTool, synth.Messages[n-1].Role)
	assert.Equal(t, "call_1", synth.Messages[n-1].ToolCallID)
	assert.Equal(t, "10 * 5 = 50", synth.Messages[n-1].Content)

	reply := lastMessage(t, store, "s1")
	assert.Equal(t, "10 times 5 is 50.", reply.Content)
	require.Contains(t, reply.Metadata, "tools_used")
}

func TestProcessMessage_PlanningFailureUsesFallback(t *testing.T) {
	mock := &mockLLM{
		failAt: map[int]error{0: errors.New("rate limited")},
		calls:  []openai.ChatCompletionResponse{text("Sure.")},
	}
	a, _ := newTestAgent(t, mock, config.DispatchFunctionCalling)

	resp, err := a.ProcessMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Sure.", resp.Content)
	assert.Equal(t, splitPlan(fallbackPlan), resp.ThoughtProcess)
	assert.Contains(t, mock.requests[1].Messages[0].Content, fallbackPlan)
}

func TestProcessMessage_SynthesisFailureKeepsContent(t *testing.T) {
	tests := []struct {
		name        string
		execContent string
		want        string
	}{
		{name: "pre-synthesis content", execContent: "Let me calculate.", want: "Let me calculate."},
		{name: "rendered results", execContent: "", want: "[calculate]\n2 + 3 = 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockLLM{
				failAt: map[int]error{2: errors.New("timeout")},
				calls: []openai.ChatCompletionResponse{
					text("1. add"),
					toolCalls(tt.execContent, call("c1", tools.CalculatorName, `{"expression":"2 + 3"}`)),
				},
			}
			a, store := newTestAgent(t, mock, config.DispatchFunctionCalling)

			resp, err := a.ProcessMessage(context.Background(), "s1", "add 2 and 3")
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content)
			assert.Len(t, resp.ToolsUsed, 1)
			assert.Equal(t, tt.want, lastMessage(t, store, "s1").Content)
		})
	}
}

func TestProcessMessage_UnknownToolIsContained(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		text("1. call something"),
		toolCalls("", call("c1", "nonexistent", `{}`)),
	}}
	a, store := newTestAgent(t, mock, config.DispatchFunctionCalling)

	resp, err := a.ProcessMessage(context.Background(), "s1", "do it")
	require.NoError(t, err)
	assert.Equal(t, "I encountered an error: tool not found: nonexistent", resp.Content)
	assert.Equal(t, []string{"Error occurred during processing"}, resp.ThoughtProcess)
	assert.Empty(t, resp.ToolsUsed)
	assert.Equal(t, resp.Content, lastMessage(t, store, "s1").Content)
}

func TestProcessMessage_CompletionServiceAlwaysFails(t *testing.T) {
	mock := &mockLLM{err: context.DeadlineExceeded}
	a, store := newTestAgent(t, mock, config.DispatchFunctionCalling)

	resp, err := a.ProcessMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, strings.HasPrefix(resp.Content, "I encountered an error"), resp.Content)
	assert.Contains(t, resp.Content, llm.ErrCompletion.Error())

	msgs, err := store.History(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, history.RoleAssistant, msgs[1].Role)
	assert.Equal(t, resp.Content, msgs[1].Content)
}

func TestProcessMessage_HistoryExcludesInboundMessage(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{text("1. answer"), text("Paris again.")}}
	a, store := newTestAgent(t, mock, config.DispatchFunctionCalling)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", history.RoleUser, "Capital of France?", nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, "s1", history.RoleAssistant, "Paris.", nil)
	require.NoError(t, err)

	_, err = a.ProcessMessage(ctx, "s1", "Say it again")
	require.NoError(t, err)

	exec := mock.requests[1].Messages
	require.Len(t, exec, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, exec[0].Role)
	assert.Equal(t, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "Capital of France?"}, exec[1])
	assert.Equal(t, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Paris."}, exec[2])
	assert.Equal(t, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "Say it again"}, exec[3])

	assert.Contains(t, mock.requests[0].Messages[0].Content, "assistant: Paris.")
}

func TestProcessMessage_KeywordDispatch(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		text("1. compute"),
		text("I will calculate that for you."),
		text("The result is 50."),
	}}
	a, store := newTestAgent(t, mock, config.DispatchKeyword)

	resp, err := a.ProcessMessage(context.Background(), "s1", "What is 10 * 5?")
	require.NoError(t, err)

	assert.Equal(t, "The result is 50.", resp.Content)
	require.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, tools.CalculatorName, resp.ToolsUsed[0].Name)
	assert.Equal(t, "10 * 5 = 50", resp.ToolsUsed[0].Result)
	assert.Equal(t, []string{"Using calculate tool"}, resp.ExecutionSteps)

	require.Len(t, mock.requests, 3)
	assert.Empty(t, mock.requests[1].Tools, "keyword dispatch never offers function calling")
	synth := mock.requests[2].Messages
	require.Len(t, synth, 1)
	assert.Contains(t, synth[0].Content, "The user asked: What is 10 * 5?")
	assert.Contains(t, synth[0].Content, "10 * 5 = 50")

	assert.Equal(t, "The result is 50.", lastMessage(t, store, "s1").Content)
}

func TestProcessMessage_KeywordDispatchSwallowsToolFailures(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		text("1. read it"),
		text("Let me read the file missing.txt for you."),
	}}
	a, _ := newTestAgent(t, mock, config.DispatchKeyword)

	resp, err := a.ProcessMessage(context.Background(), "s1", "Show me missing.txt")
	require.NoError(t, err)
	assert.Equal(t, "Let me read the file missing.txt for you.", resp.Content)
	assert.Empty(t, resp.ToolsUsed)
	assert.Empty(t, resp.ExecutionSteps)
	assert.Len(t, mock.requests, 2, "no synthesis without tool results")
}

type failingStore struct {
	*history.Store
	failRole string
}

func (f *failingStore) Append(ctx context.Context, sessionID, role, content string, md history.Metadata) (history.Message, error) {
	if role == f.failRole {
		return history.Message{}, fmt.Errorf("%w: disk full", history.ErrStorage)
	}
	return f.Store.Append(ctx, sessionID, role, content, md)
}

func TestProcessMessage_StorageFailureIsReported(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{text("1. reply"), text("Hi!")}}
	store := &failingStore{Store: newTestStore(t), failRole: history.RoleAssistant}
	a := New(llm.NewCompleter(mock, "gpt", 0), newTestToolManager(), store, testConfig(config.DispatchFunctionCalling))

	resp, err := a.ProcessMessage(context.Background(), "s1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrStorage)
	require.NotNil(t, resp)
	assert.True(t, strings.HasPrefix(resp.Content, "I encountered an error"), resp.Content)
}
