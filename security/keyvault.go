package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/MrWiki15/server-party-polaris/core"
)

// ivSize is the trailing nonce length of every sealed payload.
const ivSize = 16

// KeyVault encrypts custodial private keys with AES-256-GCM under a single
// process-wide key. The at-rest layout is base64(sealed ‖ iv) with the
// 16-byte random iv appended after the sealed bytes, so the payload is
// self-contained and authenticated: a flipped bit anywhere fails decryption
// instead of yielding garbled key material.
type KeyVault struct {
	key []byte
}

// NewKeyVault accepts the hex-encoded 256-bit encryption secret. The secret
// is validated eagerly so a misconfigured process refuses to start instead
// of failing on the first encrypt.
func NewKeyVault(hexSecret string) (*KeyVault, error) {
	if err := core.ValidateEncryptionSecret(hexSecret); err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(hexSecret))
	if err != nil {
		return nil, fmt.Errorf("%w: secret is not valid hex", core.ErrInvalidSecretKey)
	}
	return &KeyVault{key: key}, nil
}

func (v *KeyVault) Encrypt(_ context.Context, plaintextKey string) (core.EncryptedSecret, error) {
	if v == nil || len(v.key) == 0 {
		return "", fmt.Errorf("%w: vault is not configured", core.ErrInvalidSecretKey)
	}
	if strings.TrimSpace(plaintextKey) == "" {
		return "", fmt.Errorf("security: plaintext key is required")
	}

	sealer, err := v.sealer()
	if err != nil {
		return "", err
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("security: iv generation failed: %w", err)
	}

	sealed := sealer.Seal(nil, iv, []byte(plaintextKey), nil)
	payload := append(sealed, iv...)
	return core.EncryptedSecret(base64.StdEncoding.EncodeToString(payload)), nil
}

func (v *KeyVault) Decrypt(_ context.Context, secret core.EncryptedSecret) (string, error) {
	if v == nil || len(v.key) == 0 {
		return "", fmt.Errorf("%w: vault is not configured", core.ErrInvalidSecretKey)
	}
	if secret.IsZero() {
		return "", fmt.Errorf("%w: empty payload", core.ErrInvalidCiphertext)
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(secret)))
	if err != nil {
		return "", fmt.Errorf("%w: payload is not valid base64", core.ErrInvalidCiphertext)
	}
	if len(payload) <= ivSize {
		return "", fmt.Errorf("%w: payload shorter than iv", core.ErrInvalidCiphertext)
	}
	sealed, iv := payload[:len(payload)-ivSize], payload[len(payload)-ivSize:]

	sealer, err := v.sealer()
	if err != nil {
		return "", err
	}
	plaintext, err := sealer.Open(nil, iv, sealed, nil)
	if err != nil {
		// Wrong key and tampered payload are indistinguishable here; both
		// must fail closed without leaking partial plaintext.
		return "", fmt.Errorf("%w: %v", core.ErrDecryptionFailure, err)
	}
	return string(plaintext), nil
}

func (v *KeyVault) sealer() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	sealer, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return sealer, nil
}

var _ core.SecretVault = (*KeyVault)(nil)
