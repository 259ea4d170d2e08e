// Package database persists user-created trace annotations. Traces themselves
// live in the query backend and are never stored here.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

// DB is the persistence interface used by the engine.
type DB interface {
	CreatePin(ctx context.Context, pin *TracePin) error
	GetPin(ctx context.Context, traceID string) (*TracePin, error)
	ListPins(ctx context.Context) ([]TracePin, error)
	DeletePin(ctx context.Context, traceID string) error
	DeletePinsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	RecordSearch(ctx context.Context, search *SearchQuery) error
	RecentSearches(ctx context.Context, limit int) ([]SearchQuery, error)
}

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New creates a new database connection and performs migrations.
func New(dbpath string) (*Client, error) {
	db, err := gorm.Open(sqlite.Open(dbpath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(
		&TracePin{},
		&SearchQuery{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Client{db: db}, nil
}
