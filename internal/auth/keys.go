package auth

import (
	"crypto/hmac"
	"crypto/sha256"
)

// DeriveKey returns a 32-byte key for one purpose, so SECRET_KEY is never
// used directly by more than one signer.
func DeriveKey(secret, purpose string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("vipra-store." + purpose))
	return mac.Sum(nil)
}
