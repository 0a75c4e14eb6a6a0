package store

import (
	"context"
	"errors"

	"santa.share/internal/models"
)

var (
	ErrNotFound = errors.New("match not found")
	ErrExpired  = errors.New("match has expired")
)

// Store holds sealed matches for stored-mode links. Take is the only read:
// it returns an entry and removes it in one step, so concurrent callers for
// the same id see exactly one success.
type Store interface {
	Save(ctx context.Context, id string, entry *models.Entry) error
	Take(ctx context.Context, id string) (*models.Entry, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
