package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Verify reports whether header carries the hex HMAC-SHA256 of body under
// secret. The "sha256=" prefix is optional. Malformed headers yield false.
func Verify(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if len(header) >= len(signaturePrefix) && strings.EqualFold(header[:len(signaturePrefix)], signaturePrefix) {
		header = header[len(signaturePrefix):]
	}

	got, err := hex.DecodeString(header)
	if err != nil || len(got) != sha256.Size {
		return false
	}

	return hmac.Equal(got, mac(body, secret))
}

// Sign returns the header value a sender would attach to body.
func Sign(body []byte, secret string) string {
	return signaturePrefix + hex.EncodeToString(mac(body, secret))
}

func mac(body []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return h.Sum(nil)
}
