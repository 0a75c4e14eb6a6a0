package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"santa.share/internal/models"
)

// Mode selects how sealed matches reach their recipient.
type Mode string

const (
	// ModeStored uploads the sealed match and burns it on first read.
	ModeStored Mode = "stored"
	// ModeStateless carries the sealed match inside the link itself.
	ModeStateless Mode = "stateless"
)

var (
	ErrMissingKey    = errors.New("invalid link: missing encryption key fragment")
	ErrMalformedLink = errors.New("malformed link")
	ErrGone          = errors.New("this match has already been viewed or does not exist")
	ErrUnknownMode   = errors.New("unknown link mode")
)

// Sealed is an envelope as obtained for a reveal, still encrypted.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
}

// Request is a parsed reveal link. Key comes from the fragment and is never
// sent anywhere.
type Request struct {
	ID      string
	Data    string
	HasData bool
	Key     string
}

// Protocol turns pairing records into shareable links and gets the sealed
// envelope back for a reveal request.
type Protocol interface {
	Mode() Mode
	// Publish makes records reachable through their links. Keys are never
	// part of what is published.
	Publish(ctx context.Context, records []models.PairingRecord) error
	Link(rec models.PairingRecord) string
	Fetch(ctx context.Context, req Request) (Sealed, error)
}

// New returns the protocol for mode. backend is required for ModeStored.
func New(mode Mode, baseURL string, backend Backend) (Protocol, error) {
	switch mode {
	case ModeStored:
		if backend == nil {
			return nil, errors.New("stored links need a storage backend")
		}
		return &Stored{BaseURL: baseURL, Backend: backend}, nil
	case ModeStateless:
		return &Stateless{BaseURL: baseURL}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Parse splits a reveal link into id, data and key. A missing fragment is not
// an error here; the resolver denies it.
func Parse(rawURL string) (Request, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}

	path := strings.TrimSuffix(u.Path, "/")
	i := strings.LastIndex(path, "/reveal/")
	if i < 0 {
		return Request{}, fmt.Errorf("%w: not a reveal link", ErrMalformedLink)
	}

	id := path[i+len("/reveal/"):]
	if id == "" || strings.Contains(id, "/") {
		return Request{}, fmt.Errorf("%w: bad id", ErrMalformedLink)
	}

	q := u.Query()
	return Request{
		ID:      id,
		Data:    q.Get("data"),
		HasData: q.Has("data"),
		Key:     u.Fragment,
	}, nil
}

func revealURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/reveal/" + id
}
