package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"accounting-sync/internal/core/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// entityRef identifies the row an UPDATE or DELETE targets.
type entityRef struct {
	ID      uuid.UUID `json:"id"`
	Version *int64    `json:"version"`
}

// decodeStrict decodes data into dst, rejecting unknown fields, then runs
// struct validation.
func decodeStrict(entity domain.EntityType, data json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return &domain.ValidationError{Entity: entity, Reason: "data is required"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Entity: entity, Reason: err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &domain.ValidationError{Entity: entity, Reason: "trailing data after object"}
	}

	if err := validate.Struct(dst); err != nil {
		return &domain.ValidationError{Entity: entity, Reason: describeValidation(err)}
	}
	return nil
}

// decodeRef extracts id and version from any payload shape.
func decodeRef(entity domain.EntityType, data json.RawMessage) (entityRef, error) {
	var ref entityRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return ref, &domain.ValidationError{Entity: entity, Reason: err.Error()}
	}
	if ref.ID == uuid.Nil {
		return ref, &domain.ValidationError{Entity: entity, Reason: "id is required"}
	}
	return ref, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// checkVersion returns a ConflictError when the client names a version the
// server row no longer has.
func checkVersion(entity domain.EntityType, id uuid.UUID, clientVersion *int64, serverVersion int64, server any) error {
	if clientVersion == nil || *clientVersion == serverVersion {
		return nil
	}
	return &domain.ConflictError{
		Entity:        entity,
		ServerID:      id.String(),
		ClientVersion: *clientVersion,
		ServerVersion: serverVersion,
		ServerData:    server,
	}
}

func notFound(entity domain.EntityType, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
}

func versionOf(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
