// Package remote defines the transport contract the engine depends on and
// an HTTP implementation of it. The generate call returns the complete,
// order-correct history for the conversation, never a delta.
package remote

import (
	"context"

	"github.com/grimoire/grimoire-go/internal/conversation"
)

// File is a raw upload payload forwarded with a generate call.
type File struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// GenerateResult is the response of a generate call.
type GenerateResult struct {
	// History is the complete authoritative message list after the turn.
	History []conversation.Message `json:"history"`
	// NewVectorMemory holds memory entries extracted from the turn, opaque
	// to the engine.
	NewVectorMemory []map[string]any `json:"new_vector_memory,omitempty"`
	// PendingDeletions lists candidate memory ids the server suggests
	// deleting. The engine never deletes them without explicit confirmation.
	PendingDeletions []string `json:"pending_deletions,omitempty"`
}

// Transport is the remote backend the engine talks to. Implementations own
// timeout semantics; the engine treats a timeout like any other failure.
type Transport interface {
	Generate(ctx context.Context, conversationID, text string, memoryContext []map[string]any, files []File) (*GenerateResult, error)
	EditMessage(ctx context.Context, conversationID, id, newText string) error
	DeleteMessage(ctx context.Context, conversationID, id string) error
	DeleteMemories(ctx context.Context, conversationID string, ids []string) error
	Branch(ctx context.Context, conversationID, fromMessageID string) (newConversationID string, err error)
	GetHistory(ctx context.Context, conversationID string) ([]conversation.Message, error)
}
