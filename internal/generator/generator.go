// Package generator adapts a chat-model backend to the answer-generation
// capability. Transport failures are mapped to the typed provider error
// taxonomy here, at the boundary, so callers can switch on errors.Is
// without inspecting provider-specific messages.
package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragchat-go/internal/provider"
	"github.com/54b3r/ragchat-go/internal/rag"
)

// ChatGenerator implements rag.Generator on top of an eino ChatModel.
type ChatGenerator struct {
	model    model.ToolCallingChatModel
	provider string
}

// New wraps the given ChatModel. The provider name is carried into error
// values for diagnostics.
func New(m model.ToolCallingChatModel, providerName string) *ChatGenerator {
	return &ChatGenerator{model: m, provider: providerName}
}

// NewFromEnv constructs a generator from the MODEL_PROVIDER environment,
// delegating backend selection to the provider factory.
func NewFromEnv(ctx context.Context) (*ChatGenerator, error) {
	m, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	name := getBackendName()
	return New(m, name), nil
}

// Generate sends the prompt as a single user message and returns the
// model's text response.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", &rag.ProviderError{
			Provider: g.provider + " generator",
			Kind:     rag.ClassifyProviderErr(err),
			Err:      err,
		}
	}
	if msg == nil || msg.Content == "" {
		return "", fmt.Errorf("generator: %s returned an empty response", g.provider)
	}
	return msg.Content, nil
}

func getBackendName() string {
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("MODEL_PROVIDER"))); v != "" {
		return v
	}
	return string(provider.BackendGemini)
}
