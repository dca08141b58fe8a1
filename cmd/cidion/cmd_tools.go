package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/comigor/cidion/pkg/tools"
)

// ToolsCmd prints every registered tool, including MCP ones.
type ToolsCmd struct {
	NoMCP bool `help:"Skip connecting to the configured MCP servers"`
}

func (t *ToolsCmd) Run(kctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli, "text")
	if err != nil {
		return err
	}

	tm, err := tools.NewDefaultToolManager(cfg, nil)
	if err != nil {
		return err
	}
	if !t.NoMCP {
		for _, c := range tools.ConnectMCPServers(context.Background(), tm, cfg.MCPServers) {
			defer c.Close()
		}
	}

	fmt.Fprintln(os.Stdout, tm.DescribeAll())
	return nil
}
