package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ScryptParams are the cost parameters shared by hashing and verification.
// Changing them invalidates every stored hash.
type ScryptParams struct {
	N       int
	R       int
	P       int
	KeyLen  int
	SaltLen int
}

var defaultParams = ScryptParams{
	N:       16384,
	R:       8,
	P:       1,
	KeyLen:  64,
	SaltLen: 16,
}

// HashPassword derives a key from password and a fresh random salt and returns
// hex(key) + "." + hex(salt).
func HashPassword(password string) (string, error) {
	return HashPasswordWithParams(password, defaultParams)
}

func HashPasswordWithParams(password string, params ScryptParams) (string, error) {
	raw := make([]byte, params.SaltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	key, err := deriveKey(password, salt, params)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(key) + "." + salt, nil
}

// ComparePasswords reports whether supplied matches the stored hash. Malformed
// stored values never match.
func ComparePasswords(supplied, stored string) bool {
	return comparePasswordsWithParams(supplied, stored, defaultParams)
}

func comparePasswordsWithParams(supplied, stored string, params ScryptParams) bool {
	hashHex, salt, ok := strings.Cut(stored, ".")
	if !ok || hashHex == "" || salt == "" {
		return false
	}

	expected, err := hex.DecodeString(hashHex)
	if err != nil || len(expected) != params.KeyLen {
		return false
	}

	computed, err := deriveKey(supplied, salt, params)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(expected, computed) == 1
}

// The hex salt string, not its decoded bytes, is the KDF salt.
func deriveKey(password, salt string, params ScryptParams) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), params.N, params.R, params.P, params.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return key, nil
}
