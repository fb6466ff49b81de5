// Package embedder provides implementations of the rag.Embedder interface
// for converting text into dense vector embeddings. Gemini goes through the
// official genai SDK; OpenAI/Azure and Ollama talk plain HTTP — no
// additional SDK dependencies are required for those backends.
//
// Every implementation honors the embedding intent: document-time and
// query-time encodings are produced by the same provider, parameterized by
// rag.Intent, so both sides of a collection stay compatible.
package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Gemini task types corresponding to the two embedding intents.
const (
	geminiTaskDocument = "RETRIEVAL_DOCUMENT"
	geminiTaskQuery    = "RETRIEVAL_QUERY"
)

// GeminiEmbedder implements rag.Embedder using the Gemini embedding API.
// It is safe for concurrent use.
type GeminiEmbedder struct {
	// client is the shared genai API client.
	client *genai.Client
	// model is the embedding model name (e.g. "text-embedding-004").
	model string
	// dimensions is the desired output vector length (0 = model default).
	dimensions int
}

// GeminiConfig holds the settings for constructing a GeminiEmbedder.
type GeminiConfig struct {
	// APIKey is the Google AI Studio API key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-004").
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
}

// NewGeminiEmbedder constructs a GeminiEmbedder from the given config.
func NewGeminiEmbedder(ctx context.Context, cfg *GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: create client: %w", err)
	}
	return &GeminiEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// taskType maps an embedding intent to the Gemini task type string.
func taskType(intent rag.Intent) string {
	if intent == rag.IntentQuery {
		return geminiTaskQuery
	}
	return geminiTaskDocument
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string, intent rag.Intent) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{TaskType: taskType(intent)}
	if e.dimensions > 0 {
		dims := int32(e.dimensions) //nolint:gosec // dimensions are bounded
		cfg.OutputDimensionality = &dims
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, &rag.ProviderError{Provider: "gemini embedder", Kind: rag.ClassifyProviderErr(err), Err: err}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedder: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
