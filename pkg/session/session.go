// Package session carries the anonymous browsing-session id used to count views.
//
// A session id is a random base-36 token. It identifies a browser tab for view
// de-duplication only and is never used as a credential.
package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"strings"
)

type ctxKey struct{}

// idWords is the number of random 64-bit words in a session id.
const idWords = 2

// NewID returns a fresh random base-36 session id.
func NewID() string {
	var buf [8 * idWords]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("session: crypto/rand failed: " + err.Error())
	}
	var b strings.Builder
	for i := 0; i < idWords; i++ {
		b.WriteString(strconv.FormatUint(binary.BigEndian.Uint64(buf[i*8:]), 36))
	}
	return b.String()
}

// Valid reports whether id looks like a session id: 1 to 64 characters of [0-9a-z].
func Valid(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}

// WithID returns a context carrying the session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the session id stored in ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
