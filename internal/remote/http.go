package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/grimoire/grimoire-go/internal/config"
	"github.com/grimoire/grimoire-go/internal/conversation"
	"github.com/grimoire/grimoire-go/internal/faults"
)

// HTTPTransport talks to the game backend over HTTP with bearer auth.
type HTTPTransport struct {
	cfg    config.RemoteConfig
	client *http.Client
}

// NewHTTPTransport creates a transport for the configured backend.
func NewHTTPTransport(cfg config.RemoteConfig) *HTTPTransport {
	return &HTTPTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *HTTPTransport) Generate(ctx context.Context, conversationID, text string, memoryContext []map[string]any, files []File) (*GenerateResult, error) {
	body := map[string]any{
		"text":           text,
		"memory_context": memoryContext,
	}
	if len(files) > 0 {
		body["files"] = files
	}
	var result GenerateResult
	url := fmt.Sprintf("%s/conversations/%s/generate", t.cfg.BaseURL, conversationID)
	if err := t.do(ctx, http.MethodPost, url, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) EditMessage(ctx context.Context, conversationID, id, newText string) error {
	url := fmt.Sprintf("%s/conversations/%s/messages/%s", t.cfg.BaseURL, conversationID, id)
	return t.do(ctx, http.MethodPatch, url, map[string]any{"text": newText}, nil)
}

func (t *HTTPTransport) DeleteMessage(ctx context.Context, conversationID, id string) error {
	url := fmt.Sprintf("%s/conversations/%s/messages/%s", t.cfg.BaseURL, conversationID, id)
	return t.do(ctx, http.MethodDelete, url, nil, nil)
}

func (t *HTTPTransport) DeleteMemories(ctx context.Context, conversationID string, ids []string) error {
	url := fmt.Sprintf("%s/conversations/%s/memories/delete", t.cfg.BaseURL, conversationID)
	return t.do(ctx, http.MethodPost, url, map[string]any{"ids": ids}, nil)
}

func (t *HTTPTransport) Branch(ctx context.Context, conversationID, fromMessageID string) (string, error) {
	url := fmt.Sprintf("%s/conversations/%s/branch", t.cfg.BaseURL, conversationID)
	var result struct {
		NewConversationID string `json:"new_conversation_id"`
	}
	if err := t.do(ctx, http.MethodPost, url, map[string]any{"from_message_id": fromMessageID}, &result); err != nil {
		return "", err
	}
	return result.NewConversationID, nil
}

func (t *HTTPTransport) GetHistory(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	url := fmt.Sprintf("%s/conversations/%s/messages", t.cfg.BaseURL, conversationID)
	var result struct {
		History []conversation.Message `json:"history"`
	}
	if err := t.do(ctx, http.MethodGet, url, nil, &result); err != nil {
		return nil, err
	}
	return result.History, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.cfg.Token))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.NetworkFailure, "backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusFault(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return faults.Wrap(faults.Unclassified, "malformed backend response", err)
		}
	}
	return nil
}

// statusFault maps a non-2xx response to the engine's error taxonomy.
func statusFault(resp *http.Response) *faults.Fault {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(snippet))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return faults.Wrap(faults.RateLimited, "backend rate limit", fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	case http.StatusUnprocessableEntity:
		return faults.Wrap(faults.ModerationRejection, "content rejected by backend", fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	case http.StatusBadRequest:
		return faults.Wrap(faults.ValidationFailure, "backend rejected request", fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	case http.StatusGatewayTimeout, http.StatusBadGateway, http.StatusServiceUnavailable:
		return faults.Wrap(faults.NetworkFailure, "backend unavailable", fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	}
	if strings.Contains(strings.ToLower(detail), "moderation") {
		return faults.Wrap(faults.ModerationRejection, "content rejected by backend", fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	}
	return faults.Wrap(faults.Unclassified, "backend error", fmt.Errorf("status %d: %s", resp.StatusCode, detail))
}
