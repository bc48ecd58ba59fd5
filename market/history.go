package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"stocks-simulator/database"
	"stocks-simulator/models"
)

const historyTTL = 24 * time.Hour

// DailySource returns daily closing prices, oldest first.
type DailySource interface {
	Daily(ctx context.Context, symbol string) ([]models.StockPrice, error)
}

// History serves daily closes from Redis, falling back to the provider and
// storing fresh series in the database. rdb and db may be nil.
type History struct {
	src DailySource
	rdb *redis.Client
	db  *gorm.DB
}

func NewHistory(src DailySource, rdb *redis.Client, db *gorm.DB) *History {
	return &History{src: src, rdb: rdb, db: db}
}

func historyKey(symbol string) string { return fmt.Sprintf("stock:%s:history", symbol) }

func (h *History) Daily(ctx context.Context, symbol string) ([]models.StockPrice, error) {
	key := historyKey(symbol)
	if h.rdb != nil {
		cached, err := h.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var prices []models.StockPrice
			if err := json.Unmarshal(cached, &prices); err == nil {
				return prices, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("history cache read failed")
		}
	}

	prices, err := h.src.Daily(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return prices, nil
	}

	if h.db != nil {
		if err := database.CreateInBatches(h.db.WithContext(ctx), prices, 100); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("failed to store price history")
		}
	}
	if h.rdb != nil {
		payload, _ := json.Marshal(prices)
		if err := h.rdb.Set(ctx, key, payload, historyTTL).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("history cache write failed")
		}
	}
	return prices, nil
}
