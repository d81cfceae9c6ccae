package insight

import (
	"context"

	"github.com/google/uuid"
)

// Archive persists broadcast insights beyond the lifetime of a request's bus
type Archive interface {
	Append(ctx context.Context, in Insight) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Insight, error)
}
