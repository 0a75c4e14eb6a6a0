package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// Source draws uniform integers and raw bytes from a cryptographically strong
// reader.
type Source struct {
	r io.Reader
}

// Default reads from crypto/rand.
var Default = NewSource(rand.Reader)

// NewSource wraps r. Tests pass deterministic readers; everything else should
// use Default.
func NewSource(r io.Reader) *Source {
	return &Source{r: r}
}

func (s *Source) Read(p []byte) (int, error) {
	return io.ReadFull(s.r, p)
}

// Bytes returns n fresh random bytes.
func (s *Source) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := s.Read(b); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return b, nil
}

// Intn returns a uniform integer in [0, n). Draws above the largest multiple
// of n that fits in 32 bits are rejected, so the result carries no modulo bias.
func (s *Source) Intn(n int) (int, error) {
	if n <= 0 || uint64(n) > 1<<32 {
		return 0, fmt.Errorf("intn: invalid bound %d", n)
	}

	bound := uint64(n)
	limit := (1 << 32) - (1<<32)%bound

	var buf [4]byte
	for {
		if _, err := s.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("reading random bytes: %w", err)
		}
		x := uint64(binary.BigEndian.Uint32(buf[:]))
		if x < limit {
			return int(x % bound), nil
		}
	}
}
