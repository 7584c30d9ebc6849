package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

// This mirrors MCPClient in mcp.go.
type mockMCPClient struct {
	CallToolFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func (m *mockMCPClient) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.CallToolFunc(ctx, req)
}

func (m *mockMCPClient) Close() error { return nil }

func TestMCPStore_Context(t *testing.T) {
	store := &MCPStore{
		client: &mockMCPClient{
			CallToolFunc: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				require.Equal(t, "memory_search", req.Params.Name)
				args, ok := req.Params.Arguments.(map[string]any)
				require.True(t, ok)
				require.Equal(t, "conv-1", args["conversation_id"])
				return &mcp.CallToolResult{
					Content: []mcp.Content{mcp.TextContent{
						Type: "text",
						Text: `[{"id":"m1","fact":"the rogue fears water"}]`,
					}},
				}, nil
			},
		},
		searchTool: "memory_search",
		deleteTool: "memory_delete",
	}

	entries, err := store.Context(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "m1", entries[0]["id"])
}

func TestMCPStore_ContextEmpty(t *testing.T) {
	store := &MCPStore{
		client: &mockMCPClient{
			CallToolFunc: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return &mcp.CallToolResult{}, nil
			},
		},
		searchTool: "memory_search",
	}
	entries, err := store.Context(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Nil(t, entries)
}

func TestMCPStore_DeleteError(t *testing.T) {
	store := &MCPStore{
		client: &mockMCPClient{
			CallToolFunc: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("boom")
			},
		},
		deleteTool: "memory_delete",
	}
	err := store.Delete(context.Background(), "conv-1", []string{"m1"})
	require.Error(t, err)
}

func TestMCPStore_DeleteToolError(t *testing.T) {
	store := &MCPStore{
		client: &mockMCPClient{
			CallToolFunc: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "no such memory"}},
				}, nil
			},
		},
		deleteTool: "memory_delete",
	}
	err := store.Delete(context.Background(), "conv-1", []string{"m1"})
	require.ErrorContains(t, err, "no such memory")
}
