package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"meridian/internal/domain/insight"
	"meridian/pkg/errors"
)

// Compile-time check
var _ insight.Archive = (*InsightArchive)(nil)

// InsightArchive keeps each request's broadcast insights in a Redis list with a TTL
type InsightArchive struct {
	client *redis.Client
	ttl    time.Duration
}

// NewInsightArchive creates a new insight archive. A zero ttl keeps lists forever.
func NewInsightArchive(client *redis.Client, ttl time.Duration) *InsightArchive {
	return &InsightArchive{client: client, ttl: ttl}
}

// Append pushes an insight onto its request's list and refreshes the TTL
func (a *InsightArchive) Append(ctx context.Context, in insight.Insight) error {
	data, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal insight: request_id=%s", in.RequestID)
	}

	key := a.key(in.RequestID)
	pipe := a.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if a.ttl > 0 {
		pipe.Expire(ctx, key, a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to archive insight: request_id=%s", in.RequestID)
	}
	return nil
}

// ListByRequest returns a request's insights in broadcast order. Unknown requests yield an empty list.
func (a *InsightArchive) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]insight.Insight, error) {
	raw, err := a.client.LRange(ctx, a.key(requestID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read insights: request_id=%s", requestID)
	}

	out := make([]insight.Insight, 0, len(raw))
	for _, item := range raw {
		var in insight.Insight
		if err := json.Unmarshal([]byte(item), &in); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal insight: request_id=%s", requestID)
		}
		out = append(out, in)
	}
	return out, nil
}

func (a *InsightArchive) key(requestID uuid.UUID) string {
	return fmt.Sprintf("meridian:insights:%s", requestID)
}
