package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// VerifyHMACSHA256 checks a hex HMAC-SHA256 signature of body, optionally
// prefixed with "sha256=".
func VerifyHMACSHA256(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return ErrMissingSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyToken compares a shared-secret token header in constant time.
func VerifyToken(secret, token string) error {
	if secret == "" {
		return nil
	}
	if token == "" {
		return ErrMissingSignature
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
