package uuidx

import (
	"crypto/rand"
	"encoding/base32"

	"github.com/google/uuid"
)

// New generates a new UUID using the version 7 format and returns it.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new UUID using the version 7 format and returns it as a string.
// It utilizes the New function to create the UUID and then converts it to a string.
func NewString() string {
	return New().String()
}

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewToken returns a short random lowercase token. Tokens serve as the
// provisional identity of a freshly attached participant until it sends an
// identify frame, so they only need to be unique among live connections.
func NewToken() string {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	tok := make([]byte, tokenEncoding.EncodedLen(len(buf)))
	tokenEncoding.Encode(tok, buf[:])
	for i, c := range tok {
		if 'A' <= c && c <= 'Z' {
			tok[i] = c + ('a' - 'A')
		}
	}
	return string(tok)
}
