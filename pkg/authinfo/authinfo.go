// Package authinfo handles EPP authorization codes. Codes are stored only as
// bcrypt hashes; a transfer request proves knowledge of the code by
// presenting the cleartext, which is verified against the stored hash.
package authinfo

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const generatedLen = 16

// Generate returns a fresh random authorization code.
func Generate() (string, error) {
	buf := make([]byte, generatedLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate auth info: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the bcrypt hash of a cleartext authorization code.
func Hash(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash auth info: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether code matches the stored hash.
func Verify(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// MustHash is a test/seed helper that panics on hashing failure.
func MustHash(code string) string {
	h, err := Hash(code)
	if err != nil {
		panic(err)
	}
	return h
}
