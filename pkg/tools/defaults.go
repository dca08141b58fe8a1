package tools

import (
	"fmt"

	"github.com/comigor/cidion/internal/config"
	"github.com/comigor/cidion/pkg/tools/search"
	"github.com/spf13/afero"
)

// NewDefaultToolManager registers the builtin tools in their canonical order.
// File tools operate on fs; a nil fs means the configured workspace.
func NewDefaultToolManager(cfg *config.Config, fs afero.Fs) (*ToolManager, error) {
	if fs == nil {
		fs = WorkspaceFs(cfg.Tools.WorkspaceDir)
	}

	provider, err := search.New(cfg.Tools.Search.Provider, cfg.Tools.Search.SearXNGURL, cfg.Tools.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	m := NewToolManager()
	m.RegisterTool(NewCalculatorTool())
	m.RegisterTool(NewReadFileTool(fs, cfg.Agent.MaxToolResultLength))
	m.RegisterTool(NewWriteFileTool(fs))
	m.RegisterTool(NewListFilesTool(fs))
	m.RegisterTool(NewWebSearchTool(provider, cfg.Tools.Search.MaxResults))
	m.RegisterTool(NewScrapeTool(NewHTTPClient(cfg.Tools.HTTPTimeout), cfg.Tools.Scrape.MaxLength))
	return m, nil
}
