package pairing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"santa.share/internal/crypto"
	"santa.share/internal/models"
)

// DefaultTTL is how long a sealed match stays readable after generation.
const DefaultTTL = time.Minute

var (
	ErrValidation         = errors.New("invalid participants")
	ErrTooFewParticipants = fmt.Errorf("%w: you need at least 2 participants with names", ErrValidation)
	ErrDuplicateName      = fmt.Errorf("%w: all names must be unique", ErrValidation)
	ErrBlankName          = fmt.Errorf("%w: every participant needs a name", ErrValidation)
)

// Normalize trims names and emails and drops participants with blank names.
func Normalize(participants []models.Participant) []models.Participant {
	out := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		p.Name = strings.TrimSpace(p.Name)
		p.Email = strings.TrimSpace(p.Email)
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Validate checks a normalized participant list: at least two entries,
// non-blank names and pairwise distinct names (case-sensitive).
func Validate(participants []models.Participant) error {
	if len(participants) < 2 {
		return ErrTooFewParticipants
	}

	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return ErrBlankName
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q appears more than once", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
	}

	return nil
}

// Engine turns a participant list into sealed per-giver records.
type Engine struct {
	Source *crypto.Source
	TTL    time.Duration
	Now    func() time.Time
}

func NewEngine(ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{
		Source: crypto.Default,
		TTL:    ttl,
		Now:    time.Now,
	}
}

// Generate deranges the participants and seals each giver's receiver under a
// fresh key. Records come back in input order. Generate performs no I/O.
func (e *Engine) Generate(participants []models.Participant) ([]models.PairingRecord, error) {
	if err := Validate(participants); err != nil {
		return nil, err
	}

	perm, err := crypto.Derange(e.Source, len(participants))
	if err != nil {
		return nil, err
	}

	expiry := e.Now().Add(e.TTL)
	records := make([]models.PairingRecord, 0, len(participants))

	for i, giver := range participants {
		receiver := participants[perm[i]]

		id, err := crypto.GenerateID(e.Source)
		if err != nil {
			return nil, err
		}

		key, err := crypto.NewKey(e.Source)
		if err != nil {
			return nil, err
		}

		iv, ciphertext, err := crypto.Seal(e.Source, crypto.Payload{
			Text:   receiver.DisplayName(),
			Expiry: expiry,
		}, key)
		if err != nil {
			return nil, fmt.Errorf("sealing match for %s: %w", giver.Name, err)
		}

		records = append(records, models.PairingRecord{
			ID:         id,
			GiverName:  giver.Name,
			GiverEmail: giver.Email,
			Key:        key,
			Ciphertext: ciphertext,
			IV:         iv,
		})
	}

	return records, nil
}
