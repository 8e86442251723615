package store

import (
	"context"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// StoryRecord is a persisted story with the route it was written for.
type StoryRecord struct {
	Route     *model.Route      `json:"route"`
	Story     *model.AudioStory `json:"story"`
	Cursor    int               `json:"cursor"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StorySummary is a list entry without segment text.
type StorySummary struct {
	ID           string           `json:"id"`
	StartAddress string           `json:"start_address"`
	EndAddress   string           `json:"end_address"`
	Style        model.StoryStyle `json:"style"`
	Total        int              `json:"total"`
	Buffered     int              `json:"buffered"`
	Cursor       int              `json:"cursor"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StoryStore handles story persistence.
type StoryStore interface {
	SaveStory(ctx context.Context, rec *StoryRecord) error
	GetStory(ctx context.Context, id string) (*StoryRecord, error)
	ListStories(ctx context.Context, limit int) ([]StorySummary, error)
	DeleteStory(ctx context.Context, id string) error
}

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
