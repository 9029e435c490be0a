// Package idgen generates the short random identifiers used for rooms and
// claims when the caller does not choose one.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Length is the number of random characters after the prefix.
const Length = 12

// MaxPrefix is the longest prefix that keeps an id within the 32-byte
// limit on address seeds.
const MaxPrefix = 32 - Length

// Lowercase only, so ids survive case-insensitive paths and filenames.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// New returns prefix followed by Length random characters.
func New(prefix string) (string, error) {
	if len(prefix) > MaxPrefix {
		return "", fmt.Errorf("idgen: prefix %q exceeds %d bytes", prefix, MaxPrefix)
	}
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
