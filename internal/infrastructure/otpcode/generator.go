package otpcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	DefaultLength = 6
	MinLength     = 4
	MaxLength     = 10
	Digits        = "0123456789"
)

// Generator produces fixed-length numeric codes from a cryptographic source
type Generator struct {
	length int
	source io.Reader
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator(length int) (*Generator, error) {
	return NewGeneratorWithSource(length, rand.Reader)
}

// NewGeneratorWithSource creates a generator reading randomness from source (for testing)
func NewGeneratorWithSource(length int, source io.Reader) (*Generator, error) {
	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("code length must be between %d and %d, got %d", MinLength, MaxLength, length)
	}
	return &Generator{length: length, source: source}, nil
}

// Length returns the number of digits per code
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a new uniformly distributed numeric code, leading zeros included
func (g *Generator) Generate() (string, error) {
	var sb strings.Builder
	sb.Grow(g.length)
	ten := big.NewInt(int64(len(Digits)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(g.source, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		sb.WriteByte(Digits[n.Int64()])
	}
	return sb.String(), nil
}

// IsCodeFormat checks that code is exactly length ASCII digits
func IsCodeFormat(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
