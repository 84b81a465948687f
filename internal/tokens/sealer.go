package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "v1:"

// ErrSealedValue is returned when a sealed secret cannot be opened
var ErrSealedValue = errors.New("tokens: cannot open sealed value")

// Sealer protects token material at rest
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// NewSealer derives an XChaCha20-Poly1305 key from secret.
// An empty secret stores values as-is.
func NewSealer(secret string) (Sealer, error) {
	if secret == "" {
		return plainSealer{}, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("signflow provider token v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}
	return &aeadSealer{aead: aead}, nil
}

type plainSealer struct{}

func (plainSealer) Seal(plaintext string) (string, error) { return plaintext, nil }

func (plainSealer) Open(stored string) (string, error) {
	if strings.HasPrefix(stored, sealedPrefix) {
		return "", fmt.Errorf("%w: TOKEN_ENCRYPTION_KEY is not configured", ErrSealedValue)
	}
	return stored, nil
}

type aeadSealer struct {
	aead interface {
		NonceSize() int
		Overhead() int
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

func (s *aeadSealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *aeadSealer) Open(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	// rows written before encryption was enabled
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedValue, err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", fmt.Errorf("%w: value too short", ErrSealedValue)
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedValue, err)
	}
	return string(plaintext), nil
}
