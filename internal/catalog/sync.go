package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/finplan/internal/models"
)

// RateStore is the persistence the catalog mirrors into.
type RateStore interface {
	UpsertRate(ctx context.Context, r *models.Rate) error
	GetRate(ctx context.Context, id string) (*models.Rate, error)
	DeleteRate(ctx context.Context, id string) error
	RateChecksums(ctx context.Context, source models.RateSource) (map[string]string, error)
}

// Change kinds reported by Sync.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Change is one rate record touched by a sync.
type Change struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Sync brings the store's catalog records in line with the file:
//   - new/changed entries are upserted
//   - entries removed from the file are deleted from the store
//
// Reference feed records are never touched, and a file entry reusing
// ReferenceRateID is skipped. A file that fails to parse leaves the store
// unchanged.
func Sync(ctx context.Context, db RateStore, file *File, logger *slog.Logger) ([]Change, error) {
	rates, err := file.Load()
	if err != nil {
		return nil, err
	}

	checksums, err := db.RateChecksums(ctx, models.SourceCatalog)
	if err != nil {
		return nil, err
	}

	var changes []Change
	inFile := make(map[string]struct{}, len(rates))
	now := time.Now().UTC()
	for i := range rates {
		r := &rates[i]
		if r.ID == ReferenceRateID {
			logger.Warn("catalog sync: skipping reserved id", slog.String("id", r.ID))
			continue
		}
		inFile[r.ID] = struct{}{}

		old, known := checksums[r.ID]
		if known && old == r.Checksum {
			continue
		}
		r.UpdatedAt = now
		if err := db.UpsertRate(ctx, r); err != nil {
			logger.Warn("catalog sync: upsert failed", slog.String("id", r.ID), slog.String("error", err.Error()))
			continue
		}
		kind := ChangeUpdated
		if !known {
			kind = ChangeCreated
		}
		logger.Debug("catalog sync: upserted", slog.String("id", r.ID), slog.String("op", kind))
		changes = append(changes, Change{Kind: kind, ID: r.ID})
	}

	for id := range checksums {
		if _, ok := inFile[id]; ok {
			continue
		}
		if err := db.DeleteRate(ctx, id); err != nil {
			logger.Warn("catalog sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("catalog sync: removed stale", slog.String("id", id))
		changes = append(changes, Change{Kind: ChangeDeleted, ID: id})
	}

	return changes, nil
}
