package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	// Test that New() returns a valid UUID
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version(), "UUID should be version 7")
	assert.Equal(t, uuid.RFC4122, id.Variant(), "UUID should have RFC4122 variant")

	// Test uniqueness
	id2 := New()
	assert.NotEqual(t, id, id2, "Generated UUIDs should be unique")
}

func TestNewString(t *testing.T) {
	// Test that NewString() returns a valid UUID string
	idStr := NewString()
	id, err := uuid.Parse(idStr)
	assert.NoError(t, err, "NewString should return a valid UUID string")
	assert.Equal(t, uuid.Version(7), id.Version(), "UUID should be version 7")
	assert.Equal(t, uuid.RFC4122, id.Variant(), "UUID should have RFC4122 variant")

	// Test uniqueness
	idStr2 := NewString()
	assert.NotEqual(t, idStr, idStr2, "Generated UUID strings should be unique")
}

func TestNewToken(t *testing.T) {
	tok := NewToken()
	assert.Regexp(t, "^[a-z2-7]{8}$", tok, "tokens are short lowercase base32")

	seen := make(map[string]struct{})
	for range 100 {
		seen[NewToken()] = struct{}{}
	}
	assert.Len(t, seen, 100, "tokens should not collide in practice")
}
