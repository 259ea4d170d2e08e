package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TracePin marks a trace as worth keeping around, with an optional note.
// The trace data itself stays in the query backend; only the reference is
// persisted.
type TracePin struct {
	gorm.Model
	PinID       string `gorm:"uniqueIndex;not null"`
	TraceID     string `gorm:"uniqueIndex;not null"`
	ServiceName string
	Title       string
	Note        string
	// DurationMicros is the trace duration at pin time, kept so pinned
	// traces can be listed without refetching them.
	DurationMicros int64
	// StartTimeMicros is the trace start in epoch microseconds.
	StartTimeMicros int64
}

// SearchQuery records a search so the UI can offer recent queries.
type SearchQuery struct {
	gorm.Model
	Service   string
	Operation string
	Limit     int
}

func (c *Client) CreatePin(ctx context.Context, pin *TracePin) error {
	if pin.PinID == "" {
		pin.PinID = uuid.New().String()
	}
	if err := c.db.WithContext(ctx).Create(pin).Error; err != nil {
		log.Error("failed to create trace pin", "error", err)
		return err
	}
	return nil
}

func (c *Client) GetPin(ctx context.Context, traceID string) (*TracePin, error) {
	var pin TracePin
	if err := c.db.WithContext(ctx).Where("trace_id = ?", traceID).First(&pin).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get trace pin", "error", err)
		}
		return nil, err
	}
	return &pin, nil
}

func (c *Client) ListPins(ctx context.Context) ([]TracePin, error) {
	var pins []TracePin
	if err := c.db.WithContext(ctx).Order("created_at DESC").Find(&pins).Error; err != nil {
		log.Error("failed to list trace pins", "error", err)
		return nil, err
	}
	return pins, nil
}

func (c *Client) DeletePin(ctx context.Context, traceID string) error {
	if err := c.db.WithContext(ctx).Where("trace_id = ?", traceID).Delete(&TracePin{}).Error; err != nil {
		log.Error("failed to delete trace pin", "error", err)
		return err
	}
	return nil
}

// DeletePinsOlderThan removes pins created before the cutoff and returns how
// many were deleted.
func (c *Client) DeletePinsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&TracePin{})
	if res.Error != nil {
		log.Error("failed to prune trace pins", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (c *Client) RecordSearch(ctx context.Context, search *SearchQuery) error {
	if err := c.db.WithContext(ctx).Create(search).Error; err != nil {
		log.Error("failed to record search", "error", err)
		return err
	}
	return nil
}

func (c *Client) RecentSearches(ctx context.Context, limit int) ([]SearchQuery, error) {
	var searches []SearchQuery
	if err := c.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&searches).Error; err != nil {
		log.Error("failed to list recent searches", "error", err)
		return nil, err
	}
	return searches, nil
}
