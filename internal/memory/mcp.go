package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/grimoire/grimoire-go/internal/config"
	"github.com/grimoire/grimoire-go/internal/logger"
)

// MCPClient is the subset of the MCP client used by the store; it is easy to
// mock in tests.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPStore exposes a vector-memory MCP server as a Store. Search and delete
// are plain tool calls on the configured server.
type MCPStore struct {
	client     MCPClient
	searchTool string
	deleteTool string
}

// NewMCPStore connects to the configured MCP server and initializes it.
func NewMCPStore(cfg config.MemoryConfig) (*MCPStore, error) {
	var mcpC *client.Client
	var err error

	switch cfg.Type {
	case "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		mcpC, err = client.NewSSEMCPClient(cfg.URL, opts...)
	case "streamable_http", "":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		mcpC, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unsupported memory server type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("create memory MCP client: %w", err)
	}

	ctx := context.Background()
	if err := mcpC.Start(ctx); err != nil {
		return nil, fmt.Errorf("start memory MCP transport: %w", err)
	}
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
	}
	if _, err := mcpC.Initialize(ctx, initReq); err != nil {
		if cerr := mcpC.Close(); cerr != nil {
			logger.L.Warn("memory MCP client close error after init failure", "error", cerr)
		}
		return nil, fmt.Errorf("initialize memory MCP client: %w", err)
	}
	logger.L.Info("memory MCP server initialized", "url", cfg.URL)

	return &MCPStore{
		client:     mcpC,
		searchTool: cfg.SearchTool,
		deleteTool: cfg.DeleteTool,
	}, nil
}

func (s *MCPStore) Context(ctx context.Context, conversationID string) ([]map[string]any, error) {
	result, err := s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      s.searchTool,
			Arguments: map[string]any{"conversation_id": conversationID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	if result.IsError {
		return nil, fmt.Errorf("memory search failed: %s", firstText(result))
	}

	text := firstText(result)
	if text == "" {
		return nil, nil
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, fmt.Errorf("memory search returned malformed entries: %w", err)
	}
	return entries, nil
}

// Absorb is a no-op: the MCP server indexes new entries itself.
func (s *MCPStore) Absorb(ctx context.Context, conversationID string, entries []map[string]any) error {
	return nil
}

func (s *MCPStore) Delete(ctx context.Context, conversationID string, ids []string) error {
	result, err := s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: s.deleteTool,
			Arguments: map[string]any{
				"conversation_id": conversationID,
				"ids":             ids,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("memory delete: %w", err)
	}
	if result.IsError {
		return fmt.Errorf("memory delete failed: %s", firstText(result))
	}
	return nil
}

// Close releases the underlying MCP client.
func (s *MCPStore) Close() error {
	return s.client.Close()
}

func firstText(result *mcp.CallToolResult) string {
	for _, item := range result.Content {
		if tc, ok := item.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
