package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	require.Len(t, id, sessionIDLength)
	for _, r := range id {
		assert.True(t, strings.ContainsRune(idAlphabet, r), "unexpected character %q in session id", r)
	}
}

func TestGeneratePassword(t *testing.T) {
	password := GeneratePassword()
	require.Len(t, password, passwordLength)
	for _, r := range password {
		assert.True(t, strings.ContainsRune(passwordAlphabet, r), "unexpected character %q in password", r)
	}
}

func TestIdentifiersAreNotConstant(t *testing.T) {
	// Random tokens can collide, but 32 in a row all equal means broken.
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		seen[GenerateID()] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestColorWheelRoundRobin(t *testing.T) {
	wheel := &ColorWheel{}

	first := make([]string, PaletteSize())
	for i := range first {
		first[i] = wheel.Next()
	}

	// All palette entries handed out before any repeats.
	unique := make(map[string]bool)
	for _, c := range first {
		unique[c] = true
	}
	assert.Len(t, unique, PaletteSize())

	// The wheel wraps around in the same order.
	assert.Equal(t, first[0], wheel.Next())
	assert.Equal(t, first[1], wheel.Next())
}
