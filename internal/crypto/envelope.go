package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard nonce size
	IDSize    = 16
)

var (
	ErrDecryption = errors.New("decryption failed")
	ErrExpired    = errors.New("envelope has expired")
	ErrInvalidKey = errors.New("invalid key")
)

// Payload is the plaintext sealed for one recipient. A zero Expiry means the
// payload never expires, which is how legacy bare-text payloads decode.
type Payload struct {
	Text   string
	Expiry time.Time
}

// wirePayload matches the JSON written by browsers: expiry is milliseconds
// since the Unix epoch.
type wirePayload struct {
	Text   *string `json:"text"`
	Expiry *int64  `json:"expiry,omitempty"`
}

// inboundPayload accepts any JSON value for expiry. Browsers may write it as
// a fraction or in exponent form.
type inboundPayload struct {
	Text   *string         `json:"text"`
	Expiry json.RawMessage `json:"expiry"`
}

// maxExpiryMillis keeps far-future expiries inside time.Time's range.
const maxExpiryMillis = 1e15

// GenerateID returns a random 128-bit record id, base64url encoded.
func GenerateID(src *Source) (string, error) {
	b, err := src.Bytes(IDSize)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(b), nil
}

// NewKey returns a fresh raw AES-256 key.
func NewKey(src *Source) ([]byte, error) {
	return src.Bytes(KeySize)
}

// MarshalPayload renders p in its canonical JSON form.
func MarshalPayload(p Payload) ([]byte, error) {
	text := p.Text
	w := wirePayload{Text: &text}
	if !p.Expiry.IsZero() {
		ms := p.Expiry.UnixMilli()
		w.Expiry = &ms
	}
	return json.Marshal(w)
}

// Seal encrypts p under key with a fresh nonce and returns (iv, ciphertext).
// The ciphertext carries the 16-byte GCM tag.
func Seal(src *Source, p Payload, key []byte) ([]byte, []byte, error) {
	plaintext, err := MarshalPayload(p)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding payload: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv, err := src.Bytes(NonceSize)
	if err != nil {
		return nil, nil, fmt.Errorf("nonce generation failed: %w", err)
	}

	return iv, gcm.Seal(nil, iv, plaintext, nil), nil
}

// Open authenticates and decrypts ciphertext. Any failure, including a bad
// key or a tag mismatch, is reported as ErrDecryption with no partial output.
func Open(ciphertext, key, iv []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	if len(iv) != NonceSize {
		return nil, fmt.Errorf("%w: bad iv length %d", ErrDecryption, len(iv))
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

// ParsePayload decodes a decrypted payload. Anything that is not a JSON
// object with a string "text" field is legacy bare text with no expiry.
func ParsePayload(b []byte) Payload {
	var in inboundPayload
	if err := json.Unmarshal(b, &in); err != nil || in.Text == nil {
		return Payload{Text: string(b)}
	}
	return Payload{Text: *in.Text, Expiry: parseExpiry(in.Expiry)}
}

// parseExpiry reads milliseconds since the epoch from a JSON number or a
// numeric string. Absent, null, zero and non-numeric values mean no expiry.
func parseExpiry(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		if ms, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return time.Time{}
		}
	}
	if ms == 0 || math.IsNaN(ms) {
		return time.Time{}
	}

	ms = math.Max(-maxExpiryMillis, math.Min(maxExpiryMillis, ms))
	return time.UnixMicro(int64(ms * 1000))
}

// CheckExpiry returns ErrExpired when p has an expiry strictly before now.
func CheckExpiry(p Payload, now time.Time) error {
	if p.Expiry.IsZero() || !now.After(p.Expiry) {
		return nil
	}
	return fmt.Errorf("%w at %s", ErrExpired, p.Expiry.UTC().Format(time.RFC3339))
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}

	return gcm, nil
}
