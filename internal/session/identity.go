package session

import (
	"crypto/rand"
	"math/big"
)

const (
	// sessionIDLength is the number of characters in a session id.
	sessionIDLength = 6

	// passwordLength is the number of characters in a session password.
	passwordLength = 12
)

// idAlphabet avoids characters that are easy to misread over a shoulder or a
// phone call (no 0/O, 1/I/L).
const idAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// passwordAlphabet is broader; passwords are pasted, not read aloud.
const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateID generates a short human-shareable session id. The id is
// display-only and not security-bearing; collisions are not checked.
func GenerateID() string {
	return randomString(idAlphabet, sessionIDLength)
}

// GeneratePassword generates the session's shared secret. It is compared for
// equality on join, never hashed or rate-limited.
func GeneratePassword() string {
	return randomString(passwordAlphabet, passwordLength)
}

func randomString(alphabet string, length int) string {
	out := make([]byte, length)
	for i := range out {
		out[i] = alphabet[pickIndex(len(alphabet))]
	}
	return string(out)
}

func pickIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// Fallback: just use the first element (should never happen)
		return 0
	}
	return int(v.Int64())
}
