package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meridian/internal/adapters/config"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(zap.NewNop())
}

func fakeEmbeddingsServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Input any `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		n := 1
		if list, ok := body.Input.([]any); ok {
			n = len(list)
		}
		data := make([]map[string]any, n)
		// answer out of order to exercise index mapping
		for i := 0; i < n; i++ {
			idx := n - 1 - i
			data[i] = map[string]any{"object": "embedding", "index": idx, "embedding": []float64{float64(idx), 0.5}}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
			"usage":  map[string]any{"prompt_tokens": n, "total_tokens": n},
		})
	}))
}

func TestOpenAIProvider_GenerateEmbedding(t *testing.T) {
	srv := fakeEmbeddingsServer(t)
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIOptions{APIKey: "test", BaseURL: srv.URL + "/v1/"}, testLogger())
	require.NoError(t, err)

	vec, err := p.GenerateEmbedding(context.Background(), "credit spreads")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)

	batch, err := p.GenerateBatchEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, float32(2), batch[2][0])

	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, "text-embedding-3-small", p.Name())
}

func TestOpenAIProvider_Validation(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIOptions{}, testLogger())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	p, err := NewOpenAIProvider(OpenAIOptions{APIKey: "k"}, testLogger())
	require.NoError(t, err)
	_, err = p.GenerateEmbedding(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = p.GenerateBatchEmbeddings(context.Background(), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(config.EmbeddingsConfig{Provider: "cohere", APIKey: "k"}, testLogger())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	p, err := NewProvider(config.EmbeddingsConfig{Provider: "openai", APIKey: "k", Model: "text-embedding-3-large"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 3072, p.Dimensions())
}
