package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// APIKeyPrefix marks gateway API keys
const APIKeyPrefix = "sk-"

// APIKeyIssuer generates API key secrets and derives their stored digest.
// Digests are keyed BLAKE2b-256 so a leaked table cannot be brute-forced
// without the server-side pepper.
type APIKeyIssuer struct {
	key []byte
}

// NewAPIKeyIssuer creates a new issuer. Peppers longer than the BLAKE2b key
// limit are compressed first.
func NewAPIKeyIssuer(pepper []byte) *APIKeyIssuer {
	key := pepper
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &APIKeyIssuer{key: append([]byte(nil), key...)}
}

// NewSecret returns a fresh raw key
func (i *APIKeyIssuer) NewSecret() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return APIKeyPrefix + id.String(), nil
}

// Hash returns the hex digest stored for a raw key
func (i *APIKeyIssuer) Hash(secret string) string {
	h, err := blake2b.New256(i.key)
	if err != nil {
		// key length is bounded in NewAPIKeyIssuer
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// LooksLikeAPIKey performs a cheap shape check before any store lookup
func LooksLikeAPIKey(raw string) bool {
	return strings.HasPrefix(raw, APIKeyPrefix) && len(raw) > len(APIKeyPrefix)
}
