package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrProvider marks a failed call to the external embedding service.
// Retry-safe: nothing is cached on failure.
var ErrProvider = errors.New("falha no provedor de embeddings")

// Provider turns free text into a fixed-dimension vector.
type Provider interface {
	Embed(ctx context.Context, texto string) ([]float32, error)
	Modelo() string
}

// GeminiProvider embeds text through Google Generative AI.
type GeminiProvider struct {
	client *genai.Client
	modelo string
}

func NewGeminiProvider(ctx context.Context, apiKey, modelo string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, modelo: modelo}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, texto string) ([]float32, error) {
	model := p.client.EmbeddingModel(p.modelo)
	resp, err := model.EmbedContent(ctx, genai.Text(texto))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrProvider)
	}
	return resp.Embedding.Values, nil
}

func (p *GeminiProvider) Modelo() string { return p.modelo }

func (p *GeminiProvider) Close() error { return p.client.Close() }
