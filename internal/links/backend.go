package links

import (
	"context"
	"errors"
	"fmt"
	"time"

	"santa.share/internal/models"
	"santa.share/internal/store"
)

// Backend is the storage boundary seen by stored links: a batch upload and a
// single-use take. Take returns ErrGone for ids that are absent, already
// taken, or past retention.
type Backend interface {
	Put(ctx context.Context, matches []models.StoredMatch) error
	Take(ctx context.Context, id string) (models.StoredMatch, error)
}

// StoreBackend serves a Backend straight from a store.Store.
type StoreBackend struct {
	Store     store.Store
	Retention time.Duration
	Now       func() time.Time
}

var _ Backend = (*StoreBackend)(nil)

func NewStoreBackend(s store.Store, retention time.Duration) *StoreBackend {
	return &StoreBackend{Store: s, Retention: retention, Now: time.Now}
}

// Put saves every match or none: on failure the matches already saved are
// deleted again.
func (b *StoreBackend) Put(ctx context.Context, matches []models.StoredMatch) error {
	now := b.Now()
	saved := make([]string, 0, len(matches))

	for _, m := range matches {
		if m.ID == "" {
			b.rollback(ctx, saved)
			return fmt.Errorf("%w: match without id", ErrMalformedLink)
		}

		entry := &models.Entry{
			Match:     models.StoredMatch{EncryptedMatch: m.EncryptedMatch, IV: m.IV},
			CreatedAt: now,
			ExpiresAt: now.Add(b.Retention),
		}
		if err := b.Store.Save(ctx, m.ID, entry); err != nil {
			b.rollback(ctx, saved)
			return fmt.Errorf("saving match: %w", err)
		}
		saved = append(saved, m.ID)
	}

	return nil
}

func (b *StoreBackend) Take(ctx context.Context, id string) (models.StoredMatch, error) {
	entry, err := b.Store.Take(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			return models.StoredMatch{}, ErrGone
		}
		return models.StoredMatch{}, err
	}
	return entry.Match, nil
}

func (b *StoreBackend) rollback(ctx context.Context, ids []string) {
	for _, id := range ids {
		_ = b.Store.Delete(ctx, id)
	}
}
