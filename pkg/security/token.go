package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const inviteTokenBytes = 32

// GenerateInviteToken returns a 64-character hex token for invitation links.
func GenerateInviteToken() (string, error) {
	raw := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
