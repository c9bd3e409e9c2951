package crypto

import (
	"encoding/base64"
	"fmt"
	"os"

	"vellum/internal/verr"
)

// KeySize is the AES-256 key size in bytes.
const KeySize = 32

// KeyEnvVar is the environment variable holding the base64-standard
// encoded 32-byte AES-256 key. The daemon refuses to start without it.
const KeyEnvVar = "VELLUM_KEY"

// LoadKey reads and decodes the key from VELLUM_KEY. It fails with
// verr.ErrCryptoKey if the variable is unset or does not decode to exactly
// KeySize bytes.
func LoadKey() ([]byte, error) {
	raw := os.Getenv(KeyEnvVar)
	if raw == "" {
		return nil, fmt.Errorf("%s not set: %w", KeyEnvVar, verr.ErrCryptoKey)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyEnvVar, verr.ErrCryptoKey)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d: %w", KeyEnvVar, KeySize, len(key), verr.ErrCryptoKey)
	}
	return key, nil
}
