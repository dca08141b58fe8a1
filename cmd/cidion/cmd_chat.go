package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/comigor/cidion/internal/agent"
)

// ChatCmd runs an interactive chat on stdin/stdout.
type ChatCmd struct {
	Session string `short:"s" help:"Continue the given session instead of starting a new one"`
	Verbose bool   `short:"v" help:"Print the plan and tool calls of every reply"`
}

func (c *ChatCmd) Run(kctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli, "text")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := c.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	fmt.Fprintf(os.Stdout, "session %s (empty line or ctrl-d to quit)\n", sessionID)

	return chatLoop(ctx, a.agent, sessionID, os.Stdin, os.Stdout, c.Verbose)
}

// messageProcessor is the part of the agent the chat loop needs.
type messageProcessor interface {
	ProcessMessage(ctx context.Context, sessionID, message string) (*agent.Response, error)
}

func chatLoop(ctx context.Context, p messageProcessor, sessionID string, in io.Reader, out io.Writer, verbose bool) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}

		resp, err := p.ProcessMessage(ctx, sessionID, line)
		if resp == nil {
			return err
		}
		if verbose {
			printDetails(out, resp)
		}
		fmt.Fprintln(out, resp.Content)
		if err != nil {
			fmt.Fprintf(out, "(reply was not saved: %v)\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printDetails(out io.Writer, resp *agent.Response) {
	for _, step := range resp.ThoughtProcess {
		fmt.Fprintf(out, "  plan: %s\n", step)
	}
	for _, used := range resp.ToolsUsed {
		fmt.Fprintf(out, "  tool: %s %v\n", used.Name, used.Args)
	}
}
