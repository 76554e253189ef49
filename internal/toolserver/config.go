// Package toolserver exposes agentmem's knowledge store as an MCP stdio
// server: the nine tools a host assistant calls to save, recall, and
// inspect project memory (spec §4.7/§6). Grounded on the teacher's
// internal/hivemind/service/mcp Config->Complete->New module idiom
// (internal/hivemind/service/mcp/module.go), generalized from an MCP
// *client* that connects outward to other servers into an MCP *server*
// exposing agentmem's own tools, built on the same mark3labs/mcp-go
// dependency the teacher already carries for its client side.
package toolserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kiosk404/agentmem/internal/llm"
	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/store"
)

const (
	serverName    = "agentmem"
	serverVersion = "0.1.0"
)

// Config carries everything the tool handlers need to resolve a request
// against the right project's database.
type Config struct {
	DB          *store.DB
	ProjectHash string
	LLMClient   *llm.Client
}

// CompletedConfig is the validated configuration ready to build a Module.
type CompletedConfig struct {
	*Config
}

// Complete validates the configuration, matching the teacher's
// Config.Complete() signature even though there are no optional fields to
// default here.
func (c *Config) Complete() (CompletedConfig, error) {
	if c.DB == nil {
		return CompletedConfig{}, fmt.Errorf("toolserver: nil database")
	}
	if c.ProjectHash == "" {
		return CompletedConfig{}, fmt.Errorf("toolserver: empty project hash")
	}
	return CompletedConfig{c}, nil
}

// Module wraps the constructed MCP server and its registered tool handlers.
type Module struct {
	mcp *server.MCPServer
	h   *handlers
}

// New builds the Module, registering all nine tools.
func (c CompletedConfig) New(ctx context.Context) (*Module, error) {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(true))
	h := newHandlers(c.Config)
	h.registerAll(s)
	logging.Info("toolserver: module initialized (project %s)", c.ProjectHash)
	return &Module{mcp: s, h: h}, nil
}

// Serve blocks, speaking MCP over stdio until the process's stdin closes or
// ctx is canceled.
func (m *Module) Serve(ctx context.Context) error {
	return server.ServeStdio(m.mcp)
}
