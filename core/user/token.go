package user

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeResetToken generates a random password reset token.
// The token is persisted on the User row together with its expiry.
func MakeResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
