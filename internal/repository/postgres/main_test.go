package postgres

import (
	"testing"

	"github.com/pgvector/pgvector-go"
)

// testEmbedding builds a deterministic vector with the given leading component
func testEmbedding(lead float32) *pgvector.Vector {
	slice := make([]float32, 1536)
	slice[0] = lead
	slice[1] = 1
	v := pgvector.NewVector(slice)
	return &v
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}
