// Package llm provides the bundled generation backend: a remote.Transport
// implementation that drives an OpenAI-compatible model directly and keeps
// conversation histories in process.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/grimoire/grimoire-go/internal/config"
)

// Client is the minimal subset of openai.Client used by the transport; it is
// easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
