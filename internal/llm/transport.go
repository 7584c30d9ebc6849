package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/grimoire/grimoire-go/internal/config"
	"github.com/grimoire/grimoire-go/internal/conversation"
	"github.com/grimoire/grimoire-go/internal/faults"
	"github.com/grimoire/grimoire-go/internal/logger"
	"github.com/grimoire/grimoire-go/internal/remote"
)

const defaultSystemPrompt = "You are the game master of a tabletop RPG session. Narrate consequences, play the non-player characters, and honor the dice results included in player messages."

// Transport implements remote.Transport against an OpenAI-compatible model,
// holding conversation histories in process. It is the backend used when no
// external game server is configured.
type Transport struct {
	client Client
	cfg    config.LLMConfig

	mu        sync.Mutex
	histories map[string][]conversation.Message
}

// NewTransport wraps an LLM client as the bundled backend.
func NewTransport(client Client, cfg config.LLMConfig) *Transport {
	return &Transport{
		client:    client,
		cfg:       cfg,
		histories: make(map[string][]conversation.Message),
	}
}

func (t *Transport) Generate(ctx context.Context, conversationID, text string, memoryContext []map[string]any, files []remote.File) (*remote.GenerateResult, error) {
	t.mu.Lock()
	history := append([]conversation.Message(nil), t.histories[conversationID]...)
	t.mu.Unlock()

	userMsg := conversation.Message{
		ID:   uuid.NewString(),
		Role: conversation.RoleUser,
		Text: text,
	}

	req := openai.ChatCompletionRequest{
		Model:    t.cfg.Model,
		Messages: t.chatMessages(history, userMsg, memoryContext),
	}
	resp, err := t.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, faults.New(faults.Unclassified, "model returned no choices")
	}

	assistantMsg := conversation.Message{
		ID:   uuid.NewString(),
		Role: conversation.RoleAssistant,
		Text: resp.Choices[0].Message.Content,
	}

	t.mu.Lock()
	t.histories[conversationID] = append(t.histories[conversationID], userMsg, assistantMsg)
	full := append([]conversation.Message(nil), t.histories[conversationID]...)
	t.mu.Unlock()

	logger.L.Debug("generated turn", "conversation", conversationID, "messages", len(full))
	return &remote.GenerateResult{History: full}, nil
}

func (t *Transport) EditMessage(ctx context.Context, conversationID, id, newText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	history := t.histories[conversationID]
	for i := range history {
		if history[i].ID == id {
			history[i].Text = newText
			return nil
		}
	}
	return faults.New(faults.ValidationFailure, fmt.Sprintf("message not found: %s", id))
}

func (t *Transport) DeleteMessage(ctx context.Context, conversationID, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	history := t.histories[conversationID]
	for i := range history {
		if history[i].ID == id {
			t.histories[conversationID] = append(history[:i:i], history[i+1:]...)
			return nil
		}
	}
	// already gone; deletion is idempotent
	return nil
}

func (t *Transport) DeleteMemories(ctx context.Context, conversationID string, ids []string) error {
	return nil
}

func (t *Transport) Branch(ctx context.Context, conversationID, fromMessageID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	history := t.histories[conversationID]
	for i := range history {
		if history[i].ID == fromMessageID {
			newID := uuid.NewString()
			t.histories[newID] = append([]conversation.Message(nil), history[:i+1]...)
			return newID, nil
		}
	}
	return "", faults.New(faults.ValidationFailure, fmt.Sprintf("message not found: %s", fromMessageID))
}

func (t *Transport) GetHistory(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]conversation.Message(nil), t.histories[conversationID]...), nil
}

// chatMessages maps the stored history plus the new user message into the
// chat completion format, with the system prompt and memory context first.
func (t *Transport) chatMessages(history []conversation.Message, userMsg conversation.Message, memoryContext []map[string]any) []openai.ChatCompletionMessage {
	prompt := t.cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	if len(memoryContext) > 0 {
		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\n\nKnown facts from previous sessions:")
		for _, entry := range memoryContext {
			if fact, ok := entry["fact"].(string); ok {
				b.WriteString("\n- ")
				b.WriteString(fact)
			}
		}
		prompt = b.String()
	}

	msgs := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt,
	}}
	for _, m := range append(history, userMsg) {
		role := openai.ChatMessageRoleUser
		if m.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return msgs
}

// classifyOpenAI maps API errors onto the engine's error taxonomy.
func classifyOpenAI(err error) *faults.Fault {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return faults.Wrap(faults.RateLimited, "model rate limit", err)
		case apiErr.Code == "content_policy_violation" || strings.Contains(strings.ToLower(apiErr.Message), "content policy"):
			return faults.Wrap(faults.ModerationRejection, "content rejected by model", err)
		}
	}
	return faults.Classify(err)
}
