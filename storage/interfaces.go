package storage

import (
	"context"

	"review-scraper/models"
)

// Store loads and saves one durable value. Load returns the store's default
// when nothing has been saved yet; Save replaces the value atomically.
type Store[T any] interface {
	Load() (T, error)
	Save(v T) error
}

// ResultWriter rewrites the primary output file with the full result set.
type ResultWriter interface {
	WriteResults(results []*models.RestaurantResult) error
}

// ResultSink receives the final result set at the end of a run.
type ResultSink interface {
	Write(ctx context.Context, results []*models.RestaurantResult) error
	Close() error
}
