// Package credential generates buyer secrets and hashes them for storage.
package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Alphabet is the set of characters a generated secret is drawn from.
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length is the number of characters in a generated secret.
	Length = 12
)

// Generator produces secrets and their storable hashes.
type Generator struct {
	length int
	cost   int
}

// NewGenerator returns a Generator for Length-character secrets hashed with
// bcrypt.DefaultCost.
func NewGenerator() *Generator {
	return &Generator{length: Length, cost: bcrypt.DefaultCost}
}

// NewGeneratorWithCost is NewGenerator with an explicit bcrypt cost.
func NewGeneratorWithCost(cost int) *Generator {
	return &Generator{length: Length, cost: cost}
}

// Generate returns a random secret. An exhausted or broken randomness source
// is not recoverable, so Generate panics instead of returning an error.
func (g *Generator) Generate() string {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, g.length)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("credential: randomness source failed: %v", err))
		}
		b[i] = Alphabet[idx.Int64()]
	}
	return string(b)
}

// Hash returns the salted bcrypt hash of secret.
func (g *Generator) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), g.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}
