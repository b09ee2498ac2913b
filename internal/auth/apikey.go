package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidAPIKey is returned when a presented API key matches no configured key.
var ErrInvalidAPIKey = errors.New("invalid api key")

// APIKeySet holds SHA-256 digests of the accepted API keys. Plaintext keys
// are not retained after construction.
type APIKeySet struct {
	digests [][sha256.Size]byte
}

// NewAPIKeySet builds a set from plaintext keys. Blank entries are ignored.
func NewAPIKeySet(keys []string) *APIKeySet {
	set := &APIKeySet{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		set.digests = append(set.digests, sha256.Sum256([]byte(k)))
	}
	return set
}

// Len returns the number of configured keys.
func (s *APIKeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.digests)
}

// Verify reports the principal name for key, or ErrInvalidAPIKey.
// Every configured digest is compared so timing does not reveal which one matched.
func (s *APIKeySet) Verify(key string) (string, error) {
	if s == nil || key == "" {
		return "", ErrInvalidAPIKey
	}
	presented := sha256.Sum256([]byte(key))
	matched := 0
	for i := range s.digests {
		matched |= subtle.ConstantTimeCompare(presented[:], s.digests[i][:])
	}
	if matched != 1 {
		return "", ErrInvalidAPIKey
	}
	return APIKeySubject(key), nil
}

// APIKeySubject names an API key principal by a short digest prefix so the
// key itself never reaches logs.
func APIKeySubject(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "api-key:" + hex.EncodeToString(sum[:4])
}
