// Package conversation holds the message model and the reconciler that keeps
// the locally rendered list consistent with the server's authoritative
// history while allowing optimistic mutations.
package conversation

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleDice is local-only: a pending roll shown before it is folded into
	// the next outgoing turn. It is never persisted server-side.
	RoleDice Role = "dice"
)

const localIDPrefix = "local-"

// Attachment is a media descriptor carried by a message. The payload is
// opaque to the engine.
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Message is the unit of conversation state.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// Pending marks a locally synthesized dice message awaiting absorption
	// into the next outgoing turn.
	Pending bool `json:"pending,omitempty"`
}

// NewLocalID mints a client-generated temporary id. Local ids are retired
// during reconciliation once the server assigns durable ids.
func NewLocalID() string {
	return localIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was minted by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}
