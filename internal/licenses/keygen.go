package licenses

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyByteLength     = 16
	maxKeyGenAttempts = 5
)

type keyExistenceChecker interface {
	KeyExists(ctx context.Context, key string) (bool, error)
}

// KeyGenerator produces high-entropy license keys, pre-checking the store
// for collisions. The pre-check is an optimization only; the unique
// constraint on licenses.key is the authoritative guarantee.
type KeyGenerator struct {
	repo keyExistenceChecker
}

// NewKeyGenerator wires the generator to an existence checker.
func NewKeyGenerator(repo keyExistenceChecker) (*KeyGenerator, error) {
	if repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	return &KeyGenerator{repo: repo}, nil
}

// GenerateKey returns a 32-character uppercase hex key not currently present
// in the store, regenerating on the (negligible) chance of a collision.
func (g *KeyGenerator) GenerateKey(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxKeyGenAttempts; attempt++ {
		key, err := randomKey()
		if err != nil {
			return "", err
		}
		exists, err := g.repo.KeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check key uniqueness: %w", err)
		}
		if !exists {
			return key, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique license key after %d attempts", maxKeyGenAttempts)
}

func randomKey() (string, error) {
	buf := make([]byte, keyByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
