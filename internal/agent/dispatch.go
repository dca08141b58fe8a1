package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/comigor/cidion/internal/config"
	"github.com/comigor/cidion/internal/history"
	"github.com/comigor/cidion/internal/llm"
	"github.com/comigor/cidion/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// dispatchFunc runs the execution stage: it asks the model what to do,
// invokes the tools it settles on and prepares the synthesis request.
type dispatchFunc func(ctx context.Context, r *run) error

func (a *Agent) dispatcher(strategy string) dispatchFunc {
	if strategy == config.DispatchKeyword {
		return a.dispatchKeyword
	}
	return a.dispatchFunctionCalling
}

// executionMessages is the system prompt, the last few history messages and
// the user's message.
func (a *Agent) executionMessages(r *run) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		llm.SystemMessage(executionPrompt(a.systemPrompt, r.plan, a.tools.DescribeAll())),
	}
	for _, m := range lastN(r.history, a.contextMessages) {
		role := openai.ChatMessageRoleUser
		if m.Role == history.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, llm.UserMessage(r.message))
}

// dispatchFunctionCalling runs exactly the tools the model calls, with the
// arguments it supplies. Tool errors abort the request.
func (a *Agent) dispatchFunctionCalling(ctx context.Context, r *run) error {
	msgs := a.executionMessages(r)
	reply, err := a.completer.GenerateWithTools(ctx, msgs, a.tools.OpenAITools(), "auto", a.temps.execute)
	if err != nil {
		return err
	}
	r.content = reply.Content
	if len(reply.ToolCalls) == 0 {
		return nil
	}

	msgs = append(msgs, reply.Message)
	for _, call := range reply.ToolCalls {
		logger.L.Info("executing tool", "tool", call.Name, "arguments", call.Arguments, "session_id", r.sessionID)
		r.steps = append(r.steps, fmt.Sprintf("Using %s tool", call.Name))

		out, err := a.tools.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			return err
		}
		r.used = append(r.used, ToolInvocation{Name: call.Name, Args: call.Arguments, Result: out})
		msgs = append(msgs, llm.ToolMessage(call.ID, call.Name, out))
	}
	r.synthesis = msgs
	return nil
}

// dispatchKeyword asks for a plain reply and derives tool calls from it with
// Classify. Failing invocations are dropped.
func (a *Agent) dispatchKeyword(ctx context.Context, r *run) error {
	text, err := a.completer.Generate(ctx, a.executionMessages(r), a.temps.execute)
	if err != nil {
		return err
	}
	r.content = text

	for _, intent := range Classify(text, r.message) {
		name, args := intent.Tool()
		out, err := a.tools.Invoke(ctx, name, args)
		if err != nil || failedResult(out) {
			logger.L.Debug("keyword tool call dropped", "tool", name, "arguments", args, "error", err, "result", out)
			continue
		}
		logger.L.Info("executed tool", "tool", name, "arguments", args, "session_id", r.sessionID)
		r.steps = append(r.steps, fmt.Sprintf("Using %s tool", name))
		r.used = append(r.used, ToolInvocation{Name: name, Args: args, Result: out})
	}

	if len(r.used) > 0 {
		r.synthesis = []openai.ChatCompletionMessage{llm.UserMessage(synthesisPrompt(r.message, r.used))}
	}
	return nil
}

// failedResult reports tool output that describes a failure rather than a result.
func failedResult(out string) bool {
	return strings.HasPrefix(out, "Error:") || strings.HasPrefix(out, "File not found:")
}

func lastN(msgs []history.Message, n int) []history.Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}
