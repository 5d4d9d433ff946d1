package utils

import (
	"crypto/rand"
	"fmt"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// IDLength is the length of generated primary keys.
const IDLength = 21

// GenerateID returns a random alphanumeric identifier drawn from the system
// CSPRNG. Bytes that would bias the alphabet are rejected.
func GenerateID() (string, error) {
	const maxUnbiased = 256 - 256%len(idAlphabet)

	out := make([]byte, 0, IDLength)
	buf := make([]byte, IDLength*2)
	for len(out) < IDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == IDLength {
				break
			}
		}
	}
	return string(out), nil
}

// MustGenerateID panics when the CSPRNG fails.
func MustGenerateID() string {
	id, err := GenerateID()
	if err != nil {
		panic(err)
	}
	return id
}
