package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"stocks-simulator/models"
)

const DefaultQuoteTTL = 5 * time.Minute

// Cached keeps quotes from next in Redis for ttl. Redis failures fall
// through to next.
type Cached struct {
	next Source
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCached(next Source, rdb *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl}
}

func quoteKey(symbol string) string { return fmt.Sprintf("stock:%s:quote", symbol) }

func (c *Cached) Lookup(ctx context.Context, symbol string) (models.Quote, bool, error) {
	key := quoteKey(symbol)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var q models.Quote
		if err := json.Unmarshal(cached, &q); err == nil {
			return q, true, nil
		}
		log.Warn().Str("key", key).Msg("discarding malformed cached quote")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("quote cache read failed")
	}

	q, found, err := c.next.Lookup(ctx, symbol)
	if err != nil || !found {
		return q, found, err
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return q, true, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("quote cache write failed")
	}
	return q, true, nil
}
