package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/models"
)

// Catalog applies admin edits to the catalog file and mirrors them into the store.
type Catalog struct {
	mu     sync.Mutex
	file   *File
	db     RateStore
	logger *slog.Logger
}

// New returns a Catalog over file and db.
func New(file *File, db RateStore, logger *slog.Logger) *Catalog {
	return &Catalog{file: file, db: db, logger: logger}
}

// File returns the underlying catalog file.
func (c *Catalog) File() *File {
	return c.file
}

// Sync reloads the file into the store.
func (c *Catalog) Sync(ctx context.Context) ([]Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Sync(ctx, c.db, c.file, c.logger)
}

// Create adds a new rate to the catalog.
func (c *Catalog) Create(ctx context.Context, r models.Rate) (*models.Rate, error) {
	return c.edit(ctx, r, func(rates []models.Rate, idx int) ([]models.Rate, error) {
		if idx >= 0 {
			return nil, fmt.Errorf("rate %q: %w", r.ID, apperr.ErrAlreadyExists)
		}
		return append(rates, r), nil
	})
}

// Update replaces an existing catalog rate.
func (c *Catalog) Update(ctx context.Context, r models.Rate) (*models.Rate, error) {
	return c.edit(ctx, r, func(rates []models.Rate, idx int) ([]models.Rate, error) {
		if idx < 0 {
			return nil, fmt.Errorf("rate %q: %w", r.ID, apperr.ErrNotFound)
		}
		rates[idx] = r
		return rates, nil
	})
}

// Delete removes a rate from the catalog. Reference records cannot be deleted here.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rates, err := c.file.Load()
	if err != nil {
		return err
	}
	idx := indexOf(rates, id)
	if idx < 0 {
		return fmt.Errorf("rate %q: %w", id, apperr.ErrNotFound)
	}
	rates = append(rates[:idx], rates[idx+1:]...)
	if err := c.file.Save(rates); err != nil {
		return err
	}
	_, err = Sync(ctx, c.db, c.file, c.logger)
	return err
}

func (c *Catalog) edit(ctx context.Context, r models.Rate, apply func([]models.Rate, int) ([]models.Rate, error)) (*models.Rate, error) {
	r.Source = models.SourceCatalog
	if err := r.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}
	if r.ID == ReferenceRateID {
		return nil, fmt.Errorf("rate %q is reserved for the reference feed: %w", r.ID, apperr.ErrAlreadyExists)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rates, err := c.file.Load()
	if err != nil {
		return nil, err
	}
	rates, err = apply(rates, indexOf(rates, r.ID))
	if err != nil {
		return nil, err
	}
	if err := c.file.Save(rates); err != nil {
		return nil, err
	}
	if _, err := Sync(ctx, c.db, c.file, c.logger); err != nil {
		return nil, err
	}
	return c.db.GetRate(ctx, r.ID)
}

func indexOf(rates []models.Rate, id string) int {
	for i := range rates {
		if rates[i].ID == id {
			return i
		}
	}
	return -1
}
