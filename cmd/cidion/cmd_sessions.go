package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/comigor/cidion/internal/history"
)

// SessionsCmd lists recent sessions from the conversation store.
type SessionsCmd struct {
	Limit int `short:"n" default:"10" help:"Maximum number of sessions to show"`
}

func (s *SessionsCmd) Run(kctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli, "text")
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	sessions, err := store.RecentSessions(ctx, s.Limit)
	if err != nil {
		return err
	}
	stats := make([]history.Stats, len(sessions))
	for i, sess := range sessions {
		if stats[i], err = store.Stats(ctx, sess.SessionID); err != nil {
			return err
		}
	}
	return printSessions(os.Stdout, sessions, stats)
}

func printSessions(out io.Writer, sessions []history.Session, stats []history.Stats) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(out, "No sessions yet.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMESSAGES\tLAST ACTIVE\tTITLE")
	for i, sess := range sessions {
		title := "-"
		if sess.Title != nil {
			title = *sess.Title
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			sess.SessionID, stats[i].MessageCount, humanize.Time(sess.LastActivity), title)
	}
	return w.Flush()
}
