package market

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"stocks-simulator/models"
)

// Recorder stores every quote returned by next as a StockPrice row.
type Recorder struct {
	next Source
	db   *gorm.DB
	now  func() time.Time
}

func NewRecorder(next Source, db *gorm.DB) *Recorder {
	return &Recorder{next: next, db: db, now: time.Now}
}

func (r *Recorder) Lookup(ctx context.Context, symbol string) (models.Quote, bool, error) {
	q, found, err := r.next.Lookup(ctx, symbol)
	if err != nil || !found {
		return q, found, err
	}

	entry := models.StockPrice{Symbol: q.Symbol, Price: q.Price, Timestamp: r.now()}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("symbol", q.Symbol).Msg("failed to record quote")
	}
	return q, true, nil
}
