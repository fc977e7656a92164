// Where: internal/credential/credential.go
// What: API key material generation and secret hashing.
// Why: Produce credentials in the appliance's format and store only a hash of the secret.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Raw byte lengths before base64 encoding. The encoded secret must stay
	// within bcrypt's 72 byte input limit.
	keyLen    = 60
	secretLen = 48
)

// Pair is a freshly generated plaintext key and secret.
type Pair struct {
	Key    string
	Secret string
}

// Generator produces credential pairs from a randomness source.
type Generator struct {
	Rand io.Reader
	Cost int
}

// Default uses crypto/rand and bcrypt's default cost.
var Default = Generator{Rand: rand.Reader, Cost: bcrypt.DefaultCost}

// Generate returns a new pair using the default generator.
func Generate() (Pair, error) {
	return Default.Generate()
}

// Generate returns a new random key and secret, both standard base64.
func (g Generator) Generate() (Pair, error) {
	key, err := g.random(keyLen)
	if err != nil {
		return Pair{}, fmt.Errorf("credential: generate key: %w", err)
	}
	secret, err := g.random(secretLen)
	if err != nil {
		return Pair{}, fmt.Errorf("credential: generate secret: %w", err)
	}
	return Pair{Key: key, Secret: secret}, nil
}

// Hash returns the bcrypt hash of a plaintext secret.
func (g Generator) Hash(secret string) (string, error) {
	cost := g.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("credential: hash secret: %w", err)
	}
	return string(hash), nil
}

// Hash hashes with the default generator.
func Hash(secret string) (string, error) {
	return Default.Hash(secret)
}

// Verify reports whether secret matches a hash produced by Hash.
func Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func (g Generator) random(n int) (string, error) {
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
