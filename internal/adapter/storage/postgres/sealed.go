package postgres

import (
	"encoding/json"
	"fmt"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"
)

// sealer converts sensitive column values to and from their encrypted JSONB
// form. A NULL column reads back as the zero value.
type sealer struct {
	enc ports.EncryptionService
}

func (s sealer) sealString(column, plaintext string) ([]byte, error) {
	data, err := s.enc.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealing %s: %w: %w", column, domain.ErrEncryption, err)
	}
	return marshalSealed(column, data)
}

func (s sealer) openString(column string, raw []byte) (string, error) {
	data, err := unmarshalSealed(column, raw)
	if err != nil || data.IsEmpty() {
		return "", err
	}
	plaintext, err := s.enc.Decrypt(data)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w: %w", column, domain.ErrEncryption, err)
	}
	return plaintext, nil
}

// sealJSON encrypts the JSON encoding of v. A nil v is stored as the empty value.
func (s sealer) sealJSON(column string, v any) ([]byte, error) {
	data, err := s.enc.EncryptJSON(v)
	if err != nil {
		return nil, fmt.Errorf("sealing %s: %w: %w", column, domain.ErrEncryption, err)
	}
	return marshalSealed(column, data)
}

func (s sealer) openJSON(column string, raw []byte, dst any) error {
	data, err := unmarshalSealed(column, raw)
	if err != nil || data.IsEmpty() {
		return err
	}
	if err := s.enc.DecryptJSON(data, dst); err != nil {
		return fmt.Errorf("opening %s: %w: %w", column, domain.ErrEncryption, err)
	}
	return nil
}

func marshalSealed(column string, data domain.EncryptedData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", column, err)
	}
	return raw, nil
}

func unmarshalSealed(column string, raw []byte) (domain.EncryptedData, error) {
	var data domain.EncryptedData
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decoding %s: %w: %w", column, domain.ErrEncryption, err)
	}
	return data, nil
}
