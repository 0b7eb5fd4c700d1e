package bling

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	stateLength = 32
	StateTTL    = 10 * time.Minute
)

func GenerateState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
