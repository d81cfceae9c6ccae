package embeddings

import "context"

// Provider generates text embeddings for semantic routing and pattern similarity
type Provider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateBatchEmbeddings embeds several texts in one call, preserving order
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	Name() string
}
