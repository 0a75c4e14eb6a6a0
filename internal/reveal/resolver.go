package reveal

import (
	"context"
	"errors"
	"time"

	"santa.share/internal/crypto"
	"santa.share/internal/links"
)

// State of a reveal.
type State string

const (
	StatePending  State = "pending"
	StateRevealed State = "revealed"
	StateDenied   State = "denied"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonMissingKey  Reason = "missing_key"
	ReasonMalformed   Reason = "malformed"
	ReasonGone        Reason = "gone"
	ReasonInvalid     Reason = "invalid"
	ReasonExpired     Reason = "expired"
	ReasonUnavailable Reason = "unavailable"
)

// Messages shown to the viewer. Invalid and malformed links share one message
// so a wrong key can't be told apart from a tampered envelope, and gone
// doesn't say whether the match was viewed or never existed.
var messages = map[Reason]string{
	ReasonMissingKey:  "Invalid link. Missing encryption key fragment.",
	ReasonMalformed:   "This link is invalid or expired.",
	ReasonInvalid:     "This link is invalid or expired.",
	ReasonGone:        "This match has already been viewed or does not exist.",
	ReasonExpired:     "This link has expired.",
	ReasonUnavailable: "The match could not be fetched right now. Please try again later.",
}

// Outcome is where a reveal ended up.
type Outcome struct {
	State  State
	Reason Reason
	Text   string
	Err    error
}

// Message is the viewer-facing text for a denial.
func (o Outcome) Message() string {
	return messages[o.Reason]
}

func denied(reason Reason, err error) Outcome {
	return Outcome{State: StateDenied, Reason: reason, Err: err}
}

// Resolver opens reveal links. Stateless is used for links that carry a
// data parameter and Stored for the rest; either may be nil when the
// deployment does not support that mode.
type Resolver struct {
	Stored    links.Protocol
	Stateless links.Protocol
	Now       func() time.Time
}

func NewResolver(stored, stateless links.Protocol) *Resolver {
	return &Resolver{Stored: stored, Stateless: stateless, Now: time.Now}
}

// Begin is the state entered on navigation: pending when the link has a key
// fragment, denied otherwise. It does not touch storage.
func (r *Resolver) Begin(req links.Request) Outcome {
	if req.Key == "" {
		return denied(ReasonMissingKey, links.ErrMissingKey)
	}
	return Outcome{State: StatePending}
}

// Resolve performs the user-triggered reveal. For stored links the first
// call consumes the match whatever the later steps decide.
func (r *Resolver) Resolve(ctx context.Context, req links.Request) Outcome {
	if o := r.Begin(req); o.State == StateDenied {
		return o
	}

	key, err := crypto.DecodeBase64URL(req.Key)
	if err != nil || len(key) != crypto.KeySize {
		// Checked before fetching so a mistyped fragment doesn't burn the
		// stored match.
		return denied(ReasonInvalid, crypto.ErrInvalidKey)
	}

	proto := r.Stored
	if req.HasData {
		proto = r.Stateless
	}
	if proto == nil {
		return denied(ReasonMalformed, links.ErrMalformedLink)
	}

	sealed, err := proto.Fetch(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, links.ErrGone):
		return denied(ReasonGone, err)
	case errors.Is(err, links.ErrMalformedLink):
		return denied(ReasonMalformed, err)
	default:
		return denied(ReasonUnavailable, err)
	}

	plaintext, err := crypto.Open(sealed.Ciphertext, key, sealed.IV)
	if err != nil {
		return denied(ReasonInvalid, err)
	}

	payload := crypto.ParsePayload(plaintext)
	if err := crypto.CheckExpiry(payload, r.now()); err != nil {
		return denied(ReasonExpired, err)
	}

	return Outcome{State: StateRevealed, Text: payload.Text}
}

// ResolveURL parses rawURL and resolves it.
func (r *Resolver) ResolveURL(ctx context.Context, rawURL string) Outcome {
	req, err := links.Parse(rawURL)
	if err != nil {
		return denied(ReasonMalformed, err)
	}
	return r.Resolve(ctx, req)
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
