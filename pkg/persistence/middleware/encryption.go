package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// EncryptedPrefix marks a text stored as base64 AES-GCM ciphertext.
const EncryptedPrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.ArtifactSink
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts the content of every generated
// text with AES-GCM. Hint names and diagnostics stay readable so the sink can index them.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.ArtifactSink) ports.ArtifactSink {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Publish(ctx context.Context, report *domain.PassReport) error {
	sealed := *report
	sealed.Texts = slices.Clone(report.Texts)
	for i, t := range sealed.Texts {
		ciphertext, err := encrypt([]byte(t.Text), m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt %q: %w", t.HintName, err)
		}
		sealed.Texts[i].Text = EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext)
	}
	return m.next.Publish(ctx, &sealed)
}

func (m *encryptionMiddleware) Latest(ctx context.Context, session string) (*domain.PassReport, error) {
	sealed, err := m.next.Latest(ctx, session)
	if err != nil {
		return nil, err
	}

	report := *sealed
	report.Texts = slices.Clone(sealed.Texts)
	for i, t := range report.Texts {
		encoded, ok := strings.CutPrefix(t.Text, EncryptedPrefix)
		if !ok {
			// Fail secure: a configured key means every text is expected to be sealed.
			return nil, fmt.Errorf("text %q is missing the encryption envelope", t.HintName)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ciphertext of %q: %w", t.HintName, err)
		}
		plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %q: %w", t.HintName, err)
		}
		report.Texts[i].Text = string(plain)
	}
	return &report, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, session string) error {
	return m.next.Delete(ctx, session)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
