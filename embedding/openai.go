package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultDimensions = 1536

// OpenAIGateway generates embeddings through the OpenAI embeddings API.
type OpenAIGateway struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// OpenAIConfig holds configuration for the OpenAI embedding backend.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // Optional custom endpoint
	Model      string
	Dimensions int
}

// NewOpenAIGateway creates an embedding gateway backed by the OpenAI SDK.
func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for openai embeddings")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &OpenAIGateway{
		client:     &client,
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed implements Gateway.
func (g *OpenAIGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty embedding input")
	}

	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: g.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding data returned", ErrUnavailable)
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions implements Gateway.
func (g *OpenAIGateway) Dimensions() int {
	return g.dimensions
}
