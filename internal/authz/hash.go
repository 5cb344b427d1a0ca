package authz

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations matches the cost the token provisioning tool used to
// mint existing rows; changing it only affects newly hashed tokens, never
// invalidates old ones since Iterations travels with each row.
const DefaultIterations = 10000

const keyLen = 32

// HashToken derives a PBKDF2-SHA256 digest of token under a fresh random
// salt, returning both in base64 for storage.
func HashToken(token string) (hash, salt string, iterations int, err error) {
	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", 0, fmt.Errorf("authz: generating salt: %w", err)
	}
	digest := pbkdf2.Key([]byte(token), saltBytes, DefaultIterations, keyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(digest),
		base64.StdEncoding.EncodeToString(saltBytes),
		DefaultIterations, nil
}

// Verify reports whether token hashes to rec's stored digest under rec's
// salt/iterations, in constant time.
func Verify(token, hash, salt string, iterations int) bool {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	got := pbkdf2.Key([]byte(token), saltBytes, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
