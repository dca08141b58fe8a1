package agent

import (
	"fmt"
	"strings"

	"github.com/comigor/cidion/internal/history"
)

const fallbackPlan = "1. Understand the user's request\n2. Answer it directly, using tools only if clearly needed"

func planningPrompt(message, toolsDesc string, recent []history.Message) string {
	var b strings.Builder
	b.WriteString("You are an intelligent AI agent with access to various tools. Your task is to analyze the user's request and create a clear plan of action.\n\n")
	fmt.Fprintf(&b, "Available tools:\n%s\n\n", toolsDesc)
	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User's request: %s\n\n", message)
	b.WriteString(`Create a step-by-step plan to address this request. Consider:
1. What information do you need?
2. Which tools might be helpful?
3. What's the logical sequence of actions?
4. How will you present the final result?

Provide a clear, numbered plan.`)
	return b.String()
}

func executionPrompt(systemPrompt, plan, toolsDesc string) string {
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "You are an intelligent AI agent executing a plan to help the user.\n\nYour plan:\n%s\n\nAvailable tools:\n%s\n\n", plan, toolsDesc)
	b.WriteString(`Instructions:
1. Follow your plan step by step
2. Use tools when they can provide value
3. Be thorough but efficient
4. Provide clear explanations of your actions
5. Give a comprehensive final answer

Execute your plan now to address the user's request.`)
	return b.String()
}

func synthesisPrompt(message string, used []ToolInvocation) string {
	return fmt.Sprintf(`The user asked: %s

You used tools and got these results:
%s

Using these results, give the user a clear and complete answer to their question.`, message, renderResults(used))
}

// renderResults lists tool outputs, one block per invocation.
func renderResults(used []ToolInvocation) string {
	blocks := make([]string, 0, len(used))
	for _, u := range used {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", u.Name, u.Result))
	}
	return strings.Join(blocks, "\n\n")
}

// splitPlan turns the plan into thought process lines, dropping blank ones.
func splitPlan(plan string) []string {
	lines := []string{}
	for _, l := range strings.Split(plan, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimRight(l, " \r\t"))
		}
	}
	return lines
}
