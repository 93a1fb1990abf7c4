// Package crypto provides session token generation and password hashing.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("crypto: invalid password hash encoding")

// Argon2id parameters. Stored alongside each hash so they can be raised
// later without invalidating existing records.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// GenerateSessionToken generates a random 128-bit session token encoded
// as 32 hex characters.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("crypto: generate session token: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}

// HashPassword hashes a password with Argon2id under a fresh random salt
// and returns the encoded string to store.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("crypto: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return encodeHash(salt, key), nil
}

// VerifyPassword reports whether the password matches the encoded hash.
// The derived keys are compared in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	salt, key, timeCost, memory, threads, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

// encodeHash produces the standard Argon2id string encoding:
// $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<b64 salt>$<b64 key>
func encodeHash(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decodeHash(encoded string) (salt, key []byte, timeCost, memory uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	return salt, key, timeCost, memory, threads, nil
}
