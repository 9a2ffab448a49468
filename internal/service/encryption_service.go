package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"accounting-sync/internal/core/domain"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for deriving the AES-256 key.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLen       = 32
	minSaltBytes = 16
)

// AESEncryptionService implements ports.EncryptionService using AES-256-GCM
// with a key derived by scrypt.
type AESEncryptionService struct {
	aead cipher.AEAD
}

// NewAESEncryptionService derives the key from secret and the hex-encoded
// per-install salt. Both are required.
func NewAESEncryptionService(secret, hexSalt string) (*AESEncryptionService, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}
	salt, err := hex.DecodeString(hexSalt)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption salt: %w", err)
	}
	if len(salt) < minSaltBytes {
		return nil, fmt.Errorf("encryption salt must be at least %d bytes, got %d", minSaltBytes, len(salt))
	}

	key, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &AESEncryptionService{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh 12-byte nonce.
// The empty string maps to empty EncryptedData.
func (s *AESEncryptionService) Encrypt(plaintext string) (domain.EncryptedData, error) {
	if plaintext == "" {
		return domain.EncryptedData{}, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return domain.EncryptedData{}, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - s.aead.Overhead()

	return domain.EncryptedData{
		Encrypted: hex.EncodeToString(sealed[:split]),
		IV:        hex.EncodeToString(nonce),
		Tag:       hex.EncodeToString(sealed[split:]),
	}, nil
}

// Decrypt opens data and verifies its tag.
func (s *AESEncryptionService) Decrypt(data domain.EncryptedData) (string, error) {
	if data.IsEmpty() {
		return "", nil
	}

	ciphertext, err := hex.DecodeString(data.Encrypted)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	nonce, err := hex.DecodeString(data.IV)
	if err != nil {
		return "", fmt.Errorf("decoding iv: %w", err)
	}
	tag, err := hex.DecodeString(data.Tag)
	if err != nil {
		return "", fmt.Errorf("decoding tag: %w", err)
	}
	if len(nonce) != s.aead.NonceSize() {
		return "", fmt.Errorf("iv must be %d bytes, got %d", s.aead.NonceSize(), len(nonce))
	}
	if len(tag) != s.aead.Overhead() {
		return "", fmt.Errorf("tag must be %d bytes, got %d", s.aead.Overhead(), len(tag))
	}

	plaintext, err := s.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}

	return string(plaintext), nil
}

// EncryptJSON marshals v and seals the JSON text.
func (s *AESEncryptionService) EncryptJSON(v any) (domain.EncryptedData, error) {
	if v == nil {
		return domain.EncryptedData{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return domain.EncryptedData{}, fmt.Errorf("marshaling value: %w", err)
	}
	return s.Encrypt(string(raw))
}

// DecryptJSON opens data and unmarshals the JSON text into dst.
func (s *AESEncryptionService) DecryptJSON(data domain.EncryptedData, dst any) error {
	plaintext, err := s.Decrypt(data)
	if err != nil {
		return err
	}
	if plaintext == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(plaintext), dst); err != nil {
		return fmt.Errorf("unmarshaling decrypted value: %w", err)
	}
	return nil
}
