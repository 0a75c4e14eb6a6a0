package links

import (
	"context"
	"errors"
	"fmt"

	"santa.share/internal/crypto"
	"santa.share/internal/models"
)

// Stored links look like <base>/reveal/<id>#<key>. The sealed match lives in
// the backend until the first reveal takes it.
type Stored struct {
	BaseURL string
	Backend Backend
}

var _ Protocol = (*Stored)(nil)

func (s *Stored) Mode() Mode { return ModeStored }

func (s *Stored) Publish(ctx context.Context, records []models.PairingRecord) error {
	matches := make([]models.StoredMatch, 0, len(records))
	for _, r := range records {
		matches = append(matches, models.StoredMatch{
			ID:             r.ID,
			EncryptedMatch: crypto.EncodeBase64URL(r.Ciphertext),
			IV:             crypto.EncodeBase64URL(r.IV),
		})
	}
	return s.Backend.Put(ctx, matches)
}

func (s *Stored) Link(rec models.PairingRecord) string {
	return revealURL(s.BaseURL, rec.ID) + "#" + crypto.EncodeBase64URL(rec.Key)
}

func (s *Stored) Fetch(ctx context.Context, req Request) (Sealed, error) {
	if req.ID == "" {
		return Sealed{}, fmt.Errorf("%w: missing id", ErrMalformedLink)
	}

	m, err := s.Backend.Take(ctx, req.ID)
	if err != nil {
		if errors.Is(err, ErrGone) {
			return Sealed{}, ErrGone
		}
		return Sealed{}, fmt.Errorf("fetching match: %w", err)
	}

	return decodeSealed(m.EncryptedMatch, m.IV)
}

func decodeSealed(e, i string) (Sealed, error) {
	if e == "" || i == "" {
		return Sealed{}, fmt.Errorf("%w: incomplete envelope", ErrMalformedLink)
	}

	ciphertext, err := crypto.DecodeBase64URL(e)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}

	iv, err := crypto.DecodeBase64URL(i)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}

	return Sealed{Ciphertext: ciphertext, IV: iv}, nil
}
