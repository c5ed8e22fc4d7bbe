// Package mcp connects agents to tool services speaking the Model Context
// Protocol. Each configured server is a tool namespace: the tool call
// "search" of an agent whose tool service is "indexer@main" runs the
// "search" tool of the server registered as "indexer".
package mcp

import (
	"context"
	"os/exec"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ServerConfig describes one tool server. Local servers are started from
// Command; remote servers are reached at URL.
type ServerConfig struct {
	ID      string            `toml:"id"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	URL     string            `toml:"url"`
	// Transport is "sse" (default) or "streamable-http" for remote servers.
	Transport string            `toml:"transport"`
	Headers   map[string]string `toml:"headers"`
}

// Remote reports whether the server is reached over the network.
func (c ServerConfig) Remote() bool { return c.URL != "" }

// Caller is the part of an MCP client the bus needs.
type Caller interface {
	CallTool(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)
}

// Server is a started tool server.
type Server struct {
	ID      string
	Caller  Caller
	Tools   []mcptypes.Tool
	Remote  bool
	process *exec.Cmd
	closer  func() error
}

func (s *Server) tool(name string) *mcptypes.Tool {
	for i := range s.Tools {
		if s.Tools[i].Name == name {
			return &s.Tools[i]
		}
	}
	return nil
}
