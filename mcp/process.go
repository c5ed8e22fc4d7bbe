package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ProcessManager starts, tracks and stops tool servers.
type ProcessManager struct {
	servers map[string]*Server
	logger  *log.Logger
	mu      sync.RWMutex
}

func NewProcessManager(logger *log.Logger) *ProcessManager {
	if logger == nil {
		logger = log.Default()
	}
	return &ProcessManager{
		servers: make(map[string]*Server),
		logger:  logger.WithPrefix("mcp"),
	}
}

// Start connects to a server, runs the MCP handshake and lists its tools.
func (pm *ProcessManager) Start(ctx context.Context, cfg ServerConfig) (*Server, error) {
	pm.mu.RLock()
	_, running := pm.servers[cfg.ID]
	pm.mu.RUnlock()
	if running {
		return nil, fmt.Errorf("tool server %s already running", cfg.ID)
	}

	var (
		mcpClient *client.Client
		cmd       *exec.Cmd
		err       error
	)
	if cfg.Remote() {
		mcpClient, err = pm.createRemoteClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to tool server %s: %w", cfg.ID, err)
		}
		pm.logger.Info("connected to remote tool server", "id", cfg.ID, "url", cfg.URL)
	} else {
		mcpClient, cmd, err = pm.createLocalClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to start tool server %s: %w", cfg.ID, err)
		}
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "agentcore",
				Version: "1.0.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize tool server %s: %w", cfg.ID, err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to list tools for %s: %w", cfg.ID, err)
	}

	srv := &Server{
		ID:      cfg.ID,
		Caller:  mcpClient,
		Tools:   toolsResult.Tools,
		Remote:  cfg.Remote(),
		process: cmd,
		closer:  mcpClient.Close,
	}
	pm.Add(srv)
	pm.logger.Debug("tool server ready", "id", cfg.ID, "tools", len(srv.Tools))
	return srv, nil
}

// Add registers an already connected server.
func (pm *ProcessManager) Add(srv *Server) {
	pm.mu.Lock()
	pm.servers[srv.ID] = srv
	pm.mu.Unlock()
}

// Get returns a running server.
func (pm *ProcessManager) Get(id string) (*Server, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	srv, ok := pm.servers[id]
	if !ok {
		return nil, fmt.Errorf("tool server %s not running", id)
	}
	return srv, nil
}

// IDs lists the running servers.
func (pm *ProcessManager) IDs() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	ids := make([]string, 0, len(pm.servers))
	for id := range pm.servers {
		ids = append(ids, id)
	}
	return ids
}

// Stop closes the client of a server and kills its process if the close
// does not complete within a second.
func (pm *ProcessManager) Stop(ctx context.Context, id string) error {
	pm.mu.Lock()
	srv, ok := pm.servers[id]
	if !ok {
		pm.mu.Unlock()
		return fmt.Errorf("tool server %s not found", id)
	}
	// Remove from map immediately so it can't be used
	delete(pm.servers, id)
	pm.mu.Unlock()

	closed := false
	if srv.closer != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- srv.closer()
		}()

		select {
		case err := <-closeDone:
			if err != nil {
				pm.logger.Warn("error closing tool server", "id", id, "err", err)
			} else {
				closed = true
			}
		case <-closeCtx.Done():
			pm.logger.Warn("close timeout, killing tool server", "id", id)
		}
	}

	if !closed && srv.process != nil && srv.process.Process != nil {
		if err := srv.process.Process.Kill(); err != nil {
			pm.logger.Warn("error killing tool server", "id", id, "pid", srv.process.Process.Pid, "err", err)
		}
	}

	pm.logger.Debug("tool server stopped", "id", id)
	return nil
}

// Shutdown stops every server in parallel.
func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	ids := pm.IDs()

	var wg sync.WaitGroup
	errChan := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := pm.Stop(ctx, id); err != nil {
				errChan <- err
			}
		}(id)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// createRemoteClient creates an MCP client for remote servers
func (pm *ProcessManager) createRemoteClient(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
	var (
		mcpClient *client.Client
		err       error
	)

	switch cfg.Transport {
	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		mcpClient, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	case "sse", "":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		mcpClient, err = client.NewSSEMCPClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}

	// Start transport (required before Initialize/ListTools)
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start %s transport: %w", cfg.Transport, err)
	}
	return mcpClient, nil
}

// createLocalClient starts a stdio server and returns its command as well
func (pm *ProcessManager) createLocalClient(cfg ServerConfig) (*client.Client, *exec.Cmd, error) {
	if cfg.Command == "" {
		return nil, nil, fmt.Errorf("tool server %s has neither command nor url", cfg.ID)
	}

	var capturedCmd *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		environ(cfg.Env),
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil {
		pm.logger.Info("started local tool server", "id", cfg.ID, "pid", capturedCmd.Process.Pid)
	}
	return mcpClient, capturedCmd, nil
}

// environ appends the server variables to the current process environment
// so PATH and other system variables are preserved.
func environ(vars map[string]string) []string {
	env := os.Environ()
	for k, v := range vars {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
