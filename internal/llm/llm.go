// Package llm is the boundary to the chat completion service.
package llm

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/cidion/internal/config"
)

// Client is the part of openai.Client the Completer uses; tests mock it.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates the completion client for cfg.Provider. "azure" uses the
// Azure OpenAI deployment routing at cfg.BaseURL; anything else talks to an
// OpenAI-compatible endpoint.
func NewClient(cfg config.LLMConfig) *openai.Client {
	return openai.NewClientWithConfig(clientConfig(cfg))
}

func clientConfig(cfg config.LLMConfig) openai.ClientConfig {
	if strings.EqualFold(cfg.Provider, config.ProviderAzure) {
		return openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return c
}
