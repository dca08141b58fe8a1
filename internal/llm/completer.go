package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrCompletion wraps every failure of the completion service: transport,
// auth, rate limits, timeouts and empty replies alike.
var ErrCompletion = errors.New("completion service failure")

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Reply is the outcome of a completion that offered tools to the model.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
	// Message is the raw assistant message, kept so tool results can be
	// appended after it in a follow-up request.
	Message openai.ChatCompletionMessage
}

// Completer issues bounded completion requests against a single model.
type Completer struct {
	client  Client
	model   string
	timeout time.Duration
}

// NewCompleter wraps client. A non-positive timeout disables the per-call bound.
func NewCompleter(client Client, model string, timeout time.Duration) *Completer {
	return &Completer{client: client, model: model, timeout: timeout}
}

// Model returns the configured model name.
func (c *Completer) Model() string { return c.model }

// Generate returns the text of a plain completion.
func (c *Completer) Generate(ctx context.Context, messages []openai.ChatCompletionMessage, temperature float32) (string, error) {
	msg, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// GenerateWithTools offers tools to the model and decodes any function calls it makes.
func (c *Completer) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool, toolChoice any, temperature float32) (Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = toolChoice
	}

	msg, err := c.complete(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	reply := Reply{Content: msg.Content, Message: msg}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return Reply{}, fmt.Errorf("decode arguments for %s: %w", tc.Function.Name, err)
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return reply, nil
}

func (c *Completer) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: no choices returned", ErrCompletion)
	}
	return resp.Choices[0].Message, nil
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content}
}

// ToolMessage builds the result message for a tool call.
func ToolMessage(callID, name, content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    content,
		ToolCallID: callID,
		Name:       name,
	}
}
