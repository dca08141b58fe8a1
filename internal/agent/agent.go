package agent

import (
	"context"
	"fmt"

	"github.com/comigor/cidion/internal/config"
	"github.com/comigor/cidion/internal/history"
	"github.com/comigor/cidion/internal/llm"
	"github.com/comigor/cidion/internal/logger"

	"github.com/sashabaranov/go-openai"

	"github.com/qmuntal/stateless" // FSM library
)

// FSM States
const (
	StateReceived     = "Received"
	StatePlanning     = "Planning"
	StateExecuting    = "Executing"
	StateSynthesizing = "Synthesizing"
	StateAnswered     = "Answered" // Terminal: successful completion
	StateFailed       = "Failed"   // Terminal: error state
)

// FSM Triggers
const (
	TriggerStart       = "Start"
	TriggerPlanned     = "Planned"
	TriggerToolsRan    = "ToolsRan"
	TriggerAnswered    = "Answer"
	TriggerErrorOccurs = "ErrorOccurred"
)

// Completer is the completion service as seen by the agent.
type Completer interface {
	Generate(ctx context.Context, messages []openai.ChatCompletionMessage, temperature float32) (string, error)
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool, toolChoice any, temperature float32) (llm.Reply, error)
}

// Toolbox is the tool registry as seen by the agent.
type Toolbox interface {
	DescribeAll() string
	OpenAITools() []openai.Tool
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Store is the conversation store as seen by the agent.
type Store interface {
	Append(ctx context.Context, sessionID, role, content string, metadata history.Metadata) (history.Message, error)
	History(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
}

// ToolInvocation records one tool call made while answering.
type ToolInvocation struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result"`
}

// Response is the outcome of one processed message.
type Response struct {
	Content        string           `json:"content"`
	ThoughtProcess []string         `json:"thought_process"`
	ToolsUsed      []ToolInvocation `json:"tools_used"`
	ExecutionSteps []string         `json:"execution_steps"`
}

type temperatures struct {
	plan, execute, synthesis float32
}

// Agent answers messages by planning, dispatching tools and synthesizing.
type Agent struct {
	completer       Completer
	tools           Toolbox
	store           Store
	dispatch        dispatchFunc
	systemPrompt    string
	maxMessages     int
	contextMessages int
	temps           temperatures
}

// run is the state carried through one request.
type run struct {
	sessionID string
	message   string
	history   []history.Message

	plan      string
	content   string
	used      []ToolInvocation
	steps     []string
	synthesis []openai.ChatCompletionMessage

	lastError error
}

// New creates an agent. The dispatch strategy is fixed by cfg.Agent.Dispatch.
func New(completer Completer, toolbox Toolbox, store Store, cfg *config.Config) *Agent {
	a := &Agent{
		completer:       completer,
		tools:           toolbox,
		store:           store,
		systemPrompt:    cfg.LLM.SystemPrompt,
		maxMessages:     cfg.History.MaxMessages,
		contextMessages: cfg.History.ContextMessages,
		temps: temperatures{
			plan:      cfg.LLM.PlanTemperature,
			execute:   cfg.LLM.ExecuteTemperature,
			synthesis: cfg.LLM.SynthesisTemperature,
		},
	}
	a.dispatch = a.dispatcher(cfg.Agent.Dispatch)
	logger.L.Info("agent ready", "dispatch", cfg.Agent.Dispatch, "context_messages", a.contextMessages)
	return a
}

// ProcessMessage records message, answers it and records the answer. Every
// failure becomes an apologetic Response that is itself recorded. The error is
// non-nil only when that final reply could not be stored.
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, message string) (*Response, error) {
	inbound, err := a.store.Append(ctx, sessionID, history.RoleUser, message, nil)
	if err != nil {
		return a.fail(ctx, sessionID, err)
	}

	past, err := a.store.History(ctx, sessionID, a.maxMessages)
	if err != nil {
		return a.fail(ctx, sessionID, err)
	}
	prior := make([]history.Message, 0, len(past))
	for _, m := range past {
		if m.ID != inbound.ID {
			prior = append(prior, m)
		}
	}

	r := &run{sessionID: sessionID, message: message, history: prior}
	if err := a.runStages(ctx, r); err != nil {
		return a.fail(ctx, sessionID, err)
	}

	resp := &Response{
		Content:        r.content,
		ThoughtProcess: splitPlan(r.plan),
		ToolsUsed:      r.used,
		ExecutionSteps: r.steps,
	}
	if resp.ToolsUsed == nil {
		resp.ToolsUsed = []ToolInvocation{}
	}
	if resp.ExecutionSteps == nil {
		resp.ExecutionSteps = []string{}
	}

	var meta history.Metadata
	if len(r.used) > 0 {
		meta = history.Metadata{"tools_used": r.used}
	}
	if _, err := a.store.Append(context.WithoutCancel(ctx), sessionID, history.RoleAssistant, resp.Content, meta); err != nil {
		return a.fail(ctx, sessionID, err)
	}
	return resp, nil
}

// fail builds the apology for err and records it as the assistant reply.
func (a *Agent) fail(ctx context.Context, sessionID string, err error) (*Response, error) {
	logger.L.Error("error processing message", "session_id", sessionID, "error", err)
	resp := &Response{
		Content:        fmt.Sprintf("I encountered an error: %v", err),
		ThoughtProcess: []string{"Error occurred during processing"},
		ToolsUsed:      []ToolInvocation{},
		ExecutionSteps: []string{},
	}
	if _, serr := a.store.Append(context.WithoutCancel(ctx), sessionID, history.RoleAssistant, resp.Content, nil); serr != nil {
		logger.L.Error("failed to store error reply", "session_id", sessionID, "error", serr)
		return resp, fmt.Errorf("store error reply: %w", serr)
	}
	return resp, nil
}

// runStages drives r through the request state machine and returns the
// error that sent it to Failed, if any.
func (a *Agent) runStages(ctx context.Context, r *run) error {
	fsm := stateless.NewStateMachineWithMode(StateReceived, stateless.FiringQueued)

	fsm.Configure(StateReceived).
		Permit(TriggerStart, StatePlanning)

	// State: Planning
	// Action: ask for a plan; a failed call falls back to a canned plan.
	fsm.Configure(StatePlanning).
		OnEntry(func(ctx context.Context, args ...any) error {
			a.plan(ctx, r)
			return fsm.FireCtx(ctx, TriggerPlanned)
		}).
		Permit(TriggerPlanned, StateExecuting)

	// State: Executing
	// Action: dispatch tools with the configured strategy.
	fsm.Configure(StateExecuting).
		OnEntry(func(ctx context.Context, args ...any) error {
			if err := a.dispatch(ctx, r); err != nil {
				r.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurs)
			}
			if len(r.synthesis) > 0 {
				return fsm.FireCtx(ctx, TriggerToolsRan)
			}
			return fsm.FireCtx(ctx, TriggerAnswered)
		}).
		Permit(TriggerToolsRan, StateSynthesizing).
		Permit(TriggerAnswered, StateAnswered).
		Permit(TriggerErrorOccurs, StateFailed)

	// State: Synthesizing
	// Action: fold tool results into the final answer, keeping the earlier
	// content when the call fails.
	fsm.Configure(StateSynthesizing).
		OnEntry(func(ctx context.Context, args ...any) error {
			a.synthesize(ctx, r)
			return fsm.FireCtx(ctx, TriggerAnswered)
		}).
		Permit(TriggerAnswered, StateAnswered)

	fsm.Configure(StateAnswered)
	fsm.Configure(StateFailed)

	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		return fmt.Errorf("request state machine: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return fmt.Errorf("request state machine: %w", err)
	}
	logger.L.Debug("request finished", "session_id", r.sessionID, "state", state)

	switch state {
	case StateAnswered:
		return nil
	case StateFailed:
		return r.lastError
	default:
		return fmt.Errorf("request ended in unexpected state %v", state)
	}
}

func (a *Agent) plan(ctx context.Context, r *run) {
	prompt := planningPrompt(r.message, a.tools.DescribeAll(), lastN(r.history, a.contextMessages))
	plan, err := a.completer.Generate(ctx, []openai.ChatCompletionMessage{llm.SystemMessage(prompt)}, a.temps.plan)
	if err != nil {
		logger.L.Warn("planning failed; using fallback plan", "session_id", r.sessionID, "error", err)
		plan = fallbackPlan
	}
	logger.L.Info("agent plan", "session_id", r.sessionID, "plan", plan)
	r.plan = plan
}

func (a *Agent) synthesize(ctx context.Context, r *run) {
	content, err := a.completer.Generate(ctx, r.synthesis, a.temps.synthesis)
	if err != nil {
		logger.L.Warn("synthesis failed; keeping pre-synthesis content", "session_id", r.sessionID, "error", err)
		if r.content == "" {
			r.content = renderResults(r.used)
		}
		return
	}
	r.content = content
}
