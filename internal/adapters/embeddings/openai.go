package embeddings

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// OpenAIOptions configures the OpenAI embeddings client
type OpenAIOptions struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible servers
	Model   string
	Timeout time.Duration
}

// OpenAIProvider generates embeddings with the official OpenAI SDK
type OpenAIProvider struct {
	client     openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	log        *logger.Logger
}

// NewOpenAIProvider creates an OpenAI embedding provider
func NewOpenAIProvider(opts OpenAIOptions, log *logger.Logger) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}

	model := opts.Model
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAIProvider{
		client:     openai.NewClient(reqOpts...),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensionsOf(model),
		timeout:    timeout,
		log:        log.With("component", "openai_embeddings", "model", model),
	}, nil
}

// GenerateEmbedding embeds a single text
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "text cannot be empty")
	}

	vectors, err := p.embed(ctx, openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)}, 1)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateBatchEmbeddings embeds texts in one API call
func (p *OpenAIProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "texts cannot be empty")
	}
	return p.embed(ctx, openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts}, len(texts))
}

func (p *OpenAIProvider) embed(ctx context.Context, input openai.EmbeddingNewParamsInputUnion, want int) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	response, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: input,
		Model: p.model,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "openai embeddings: %v", err)
	}
	if len(response.Data) != want {
		return nil, errors.Wrapf(errors.ErrInternal, "expected %d embeddings, got %d", want, len(response.Data))
	}

	// pgvector stores float32
	vectors := make([][]float32, len(response.Data))
	for _, data := range response.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= want {
			idx = 0
		}
		vec := make([]float32, len(data.Embedding))
		for j, val := range data.Embedding {
			vec[j] = float32(val)
		}
		vectors[idx] = vec
	}

	p.log.Debugw("Generated embeddings",
		"count", want,
		"tokens_used", response.Usage.TotalTokens,
	)
	return vectors, nil
}

// Dimensions returns the dimensionality of embeddings
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Name returns the model name
func (p *OpenAIProvider) Name() string {
	return string(p.model)
}

func dimensionsOf(model string) int {
	switch model {
	case openai.EmbeddingModelTextEmbedding3Large:
		return 3072
	default:
		return 1536
	}
}
