package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `type:"path" help:"Path to the config file (defaults to ./config.yaml)"`
	LogLevel string `help:"Override the configured log level"`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Start the HTTP API (default)"`
	Chat     ChatCmd     `cmd:"" help:"Chat with the agent from the terminal"`
	Sessions SessionsCmd `cmd:"" help:"List recent conversation sessions"`
	Tools    ToolsCmd    `cmd:"" help:"List the tools available to the agent"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cidion"),
		kong.Description("Tool-using conversational agent"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
