// Package storage defines the persistence interface for search history.
package storage

import (
	"context"

	"github.com/hyperjump/hondana/internal/models"
)

// History records applied searches. It stores query texts and counts only,
// never result contents.
type History interface {
	// Record inserts entry, assigning ID and CreatedAt when empty.
	Record(ctx context.Context, entry *models.HistoryEntry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*models.HistoryEntry, error)
	Count(ctx context.Context) (int64, error)
	// Prune keeps the newest keep entries and returns how many were removed.
	Prune(ctx context.Context, keep int) (int64, error)
	Clear(ctx context.Context) error

	Close() error
}
