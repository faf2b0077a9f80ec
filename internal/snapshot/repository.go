// Package snapshot implements the point-in-time persistence service: one
// relational table of per-city weather rows with append, read and delete.
package snapshot

import (
	"context"

	"github.com/ardaweather/weather-dashboard/internal/models"
)

// Repository is the storage contract for weather snapshots.
type Repository interface {
	// Insert appends a snapshot row and returns its generated id.
	Insert(ctx context.Context, s models.Snapshot) (int64, error)
	// ListByCity returns all rows for city, newest first.
	ListByCity(ctx context.Context, city string) ([]models.Snapshot, error)
	// DeleteByCity removes all rows for city and returns how many were removed.
	DeleteByCity(ctx context.Context, city string) (int64, error)
	Close() error
}
