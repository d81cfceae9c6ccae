package embeddings

import (
	"meridian/internal/adapters/config"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// ProviderType defines supported embedding providers
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
)

// NewProvider creates the configured embedding provider
func NewProvider(cfg config.EmbeddingsConfig, log *logger.Logger) (Provider, error) {
	switch ProviderType(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, log)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported embedding provider: %s", cfg.Provider)
	}
}
