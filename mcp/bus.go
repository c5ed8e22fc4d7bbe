package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agentcore/agent"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Routing keys added by agents to every tool payload.
var routingKeys = []string{"id", "callerId", "contextId"}

// Bus routes agent tool commands to the tool servers of a ProcessManager.
type Bus struct {
	servers *ProcessManager
}

func NewBus(servers *ProcessManager) *Bus {
	return &Bus{servers: servers}
}

var _ agent.ToolBus = (*Bus)(nil)

// Dispatch runs "<namespace>.<tool>" on the server registered as namespace.
// Routing keys are forwarded only to tools declaring them in their input
// schema. A result flagged as an error is returned as an error.
func (b *Bus) Dispatch(ctx context.Context, cmd agent.ToolCommand) (any, error) {
	namespace, toolName := parseToolName(cmd.Command)
	if namespace == "" {
		return nil, fmt.Errorf("command %q has no namespace", cmd.Command)
	}

	srv, err := b.servers.Get(namespace)
	if err != nil {
		return nil, err
	}

	result, err := srv.Caller.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      toolName,
			Arguments: arguments(cmd.Payload, srv.tool(toolName)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s failed: %w", cmd.Command, err)
	}

	text, err := resultText(result)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, fmt.Errorf("tool %s returned an error: %s", cmd.Command, text)
	}
	return text, nil
}

func arguments(payload map[string]any, tool *mcptypes.Tool) map[string]any {
	args := make(map[string]any, len(payload))
	for k, v := range payload {
		args[k] = v
	}
	for _, key := range routingKeys {
		if tool != nil {
			if _, declared := tool.InputSchema.Properties[key]; declared {
				continue
			}
		}
		delete(args, key)
	}
	return args
}

// resultText joins the text parts of a result. Results without text are
// returned as their JSON encoding.
func resultText(result *mcptypes.CallToolResult) (string, error) {
	if result == nil || len(result.Content) == 0 {
		return "", nil
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(mcptypes.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n"), nil
	}

	resultBytes, err := json.Marshal(result.Content)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(resultBytes), nil
}

func parseToolName(namespacedName string) (string, string) {
	idx := strings.Index(namespacedName, ".")
	if idx == -1 {
		return "", namespacedName
	}
	return namespacedName[:idx], namespacedName[idx+1:]
}
