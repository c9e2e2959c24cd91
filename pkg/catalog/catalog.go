// Package catalog defines the catalog records and backend source contracts
// shared by the estimator, the paginator and the backend client.
package catalog

import (
	"context"
	"fmt"
)

// SlugRecord is one indexable catalog entry as delivered by the listing endpoint.
type SlugRecord struct {
	// Slug is the unique URL identifier of the entry
	Slug string `json:"slug"`

	Title       string `json:"title"`
	ConsoleName string `json:"consoleName"`
	Genre       string `json:"genre"`
}

// FetchCursor is the skip/limit pair sent to the listing endpoint.
type FetchCursor struct {
	Skip  int
	Limit int
}

// Next returns the cursor for the following batch.
// Limit never changes within a pagination run.
func (c FetchCursor) Next() FetchCursor {
	return FetchCursor{Skip: c.Skip + c.Limit, Limit: c.Limit}
}

// Validate checks the cursor invariants (skip >= 0, limit > 0).
func (c FetchCursor) Validate() error {
	if c.Skip < 0 {
		return fmt.Errorf("cursor skip must be >= 0 (got %d)", c.Skip)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("cursor limit must be > 0 (got %d)", c.Limit)
	}
	return nil
}

// CountSource reports the current catalog size.
type CountSource interface {
	FetchCount(ctx context.Context) (int, error)
}

// ListingSource returns one batch of slug records for a cursor.
// An empty batch means the listing is exhausted.
type ListingSource interface {
	FetchSlugs(ctx context.Context, cursor FetchCursor) ([]SlugRecord, error)
}

// Source is a backend able to serve both catalog endpoints.
type Source interface {
	CountSource
	ListingSource
}
