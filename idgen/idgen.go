// Package idgen provides the identifier strategies used across pagewright.
//
// Two families exist: globally unique IDs (UUIDv7, NanoID) for projects,
// batches and stored automation entities, and Sequence, a monotonic
// prefix-scoped counter used for node identities inside one document.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Used for short-lived tokens such as OAuth state values.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7: time-sortable and globally unique.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}

// Sequence hands out "<prefix><n>" identifiers with n strictly increasing.
// A value is never handed out twice, even after Observe moves the counter.
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

// NewSequence creates a Sequence whose first identifier is prefix+"1".
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Prefix returns the sequence prefix.
func (s *Sequence) Prefix() string { return s.prefix }

// Next returns the next identifier.
func (s *Sequence) Next() string {
	return s.prefix + strconv.FormatUint(s.n.Add(1), 10)
}

// Observe raises the counter past an identifier that already exists
// (e.g. one read back from a persisted document). Foreign identifiers
// are ignored.
func (s *Sequence) Observe(id string) {
	rest, ok := strings.CutPrefix(id, s.prefix)
	if !ok {
		return
	}
	v, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return
	}
	for {
		cur := s.n.Load()
		if v <= cur || s.n.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Last returns the highest counter value handed out or observed.
func (s *Sequence) Last() uint64 { return s.n.Load() }

// Generator adapts the sequence to the Generator signature.
func (s *Sequence) Generator() Generator {
	return s.Next
}
