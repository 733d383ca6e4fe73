package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"phone-auth-service/internal/config"
	"phone-auth-service/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

const (
	localPrefix = "v1."
	kmsPrefix   = "v1k."
	hkdfInfo    = "phone-auth/phone-cipher/v1"
)

// PhoneCipher is the reversible half of the phone identity layer. Decrypt
// reports false for anything it cannot open instead of failing the caller.
type PhoneCipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, bool)
}

// KMSAPI is the subset of the KMS client used for envelope encryption.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type EncryptionManager struct {
	kmsClient KMSAPI
	keyID     string
	localKey  []byte
	keyCache  sync.Map // encrypted DEK (base64) -> plaintext DEK
}

// NewEncryptionManager picks KMS envelope encryption when enabled and falls
// back to a key derived from APP_KEY otherwise.
func NewEncryptionManager(cfg *config.Config, kmsClient KMSAPI) (*EncryptionManager, error) {
	if cfg.KMS.Enabled {
		if kmsClient == nil {
			return nil, errors.New("kms enabled but no kms client configured")
		}
		return NewKMSEncryptionManager(kmsClient, cfg.KMS.KeyID), nil
	}
	appKey, err := cfg.AppKeyBytes()
	if err != nil {
		return nil, err
	}
	return NewLocalEncryptionManager(appKey)
}

func NewLocalEncryptionManager(appKey []byte) (*EncryptionManager, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, appKey, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive local key: %w", err)
	}
	return &EncryptionManager{localKey: key}, nil
}

func NewKMSEncryptionManager(kmsClient KMSAPI, keyID string) *EncryptionManager {
	return &EncryptionManager{kmsClient: kmsClient, keyID: keyID}
}

// Encrypt seals plaintext under a fresh random nonce, so equal phones never
// produce equal ciphertexts.
func (em *EncryptionManager) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if em.kmsClient == nil {
		sealed, err := seal(em.localKey, []byte(plaintext), []byte(localPrefix))
		if err != nil {
			return "", err
		}
		return localPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
	}

	out, err := em.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(em.keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return "", fmt.Errorf("%w: generate data key: %v", ErrEncryptionFailed, err)
	}

	sealed, err := seal(out.Plaintext, []byte(plaintext), []byte(kmsPrefix))
	if err != nil {
		return "", err
	}

	wrapped := base64.RawURLEncoding.EncodeToString(out.CiphertextBlob)
	em.keyCache.Store(wrapped, out.Plaintext)

	return kmsPrefix + wrapped + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt returns ("", false) for corrupt, truncated or foreign input.
func (em *EncryptionManager) Decrypt(ctx context.Context, ciphertext string) (string, bool) {
	plaintext, err := em.decrypt(ctx, ciphertext)
	if err != nil {
		util.Debug("Phone ciphertext could not be decrypted", zap.Error(err))
		return "", false
	}
	return plaintext, true
}

func (em *EncryptionManager) decrypt(ctx context.Context, ciphertext string) (string, error) {
	switch {
	case strings.HasPrefix(ciphertext, localPrefix):
		if em.localKey == nil {
			return "", fmt.Errorf("%w: no local key", ErrDecryptionFailed)
		}
		sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, localPrefix))
		if err != nil {
			return "", fmt.Errorf("%w: invalid ciphertext format", ErrDecryptionFailed)
		}
		return open(em.localKey, sealed, []byte(localPrefix))

	case strings.HasPrefix(ciphertext, kmsPrefix):
		wrapped, body, ok := strings.Cut(strings.TrimPrefix(ciphertext, kmsPrefix), ".")
		if !ok {
			return "", fmt.Errorf("%w: missing data key", ErrDecryptionFailed)
		}
		dek, err := em.dataKey(ctx, wrapped)
		if err != nil {
			return "", err
		}
		sealed, err := base64.RawURLEncoding.DecodeString(body)
		if err != nil {
			return "", fmt.Errorf("%w: invalid ciphertext format", ErrDecryptionFailed)
		}
		return open(dek, sealed, []byte(kmsPrefix))
	}
	return "", fmt.Errorf("%w: unknown envelope", ErrDecryptionFailed)
}

func (em *EncryptionManager) dataKey(ctx context.Context, wrapped string) ([]byte, error) {
	if cached, ok := em.keyCache.Load(wrapped); ok {
		return cached.([]byte), nil
	}
	if em.kmsClient == nil {
		return nil, fmt.Errorf("%w: kms disabled", ErrDecryptionFailed)
	}
	blob, err := base64.RawURLEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid DEK format", ErrDecryptionFailed)
	}
	out, err := em.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt DEK: %v", ErrDecryptionFailed, err)
	}
	em.keyCache.Store(wrapped, out.Plaintext)
	return out.Plaintext, nil
}

func seal(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func open(key, sealed, aad []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, aad)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ClearCache drops cached data keys.
func (em *EncryptionManager) ClearCache() {
	em.keyCache.Range(func(key, _ interface{}) bool {
		em.keyCache.Delete(key)
		return true
	})
}

// GetCacheSize returns the number of cached DEKs
func (em *EncryptionManager) GetCacheSize() int {
	count := 0
	em.keyCache.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
