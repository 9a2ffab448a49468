package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type organizationPayload struct {
	ID           *uuid.UUID     `json:"id"`
	Name         string         `json:"name" validate:"required,max=255"`
	LegalName    string         `json:"legalName" validate:"max=255"`
	TaxID        string         `json:"taxId" validate:"max=64"`
	Address      string         `json:"address" validate:"max=1000"`
	ContactEmail string         `json:"contactEmail" validate:"omitempty,email"`
	Settings     map[string]any `json:"settings"`
	Version      *int64         `json:"version"`
}

// OrganizationService applies ORGANIZATION sync operations.
type OrganizationService struct {
	repo ports.OrganizationRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(repo ports.OrganizationRepository, log zerolog.Logger) *OrganizationService {
	return &OrganizationService{repo: repo, log: log, now: time.Now}
}

func (s *OrganizationService) Entity() domain.EntityType { return domain.EntityOrganization }

func (s *OrganizationService) Create(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	var p organizationPayload
	if err := decodeStrict(domain.EntityOrganization, data, &p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	org := &domain.Organization{
		ID:        uuid.New(),
		CompanyID: scope.CompanyID,
		Version:   1,
		CreatedBy: scope.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.ID != nil {
		org.ID = *p.ID
	}
	p.applyTo(org)

	if err := s.repo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	return &domain.Mutation{ServerID: org.ID.String(), Version: org.Version}, nil
}

func (s *OrganizationService) Update(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	var p organizationPayload
	if err := decodeStrict(domain.EntityOrganization, data, &p); err != nil {
		return nil, err
	}
	if p.ID == nil {
		return nil, &domain.ValidationError{Entity: domain.EntityOrganization, Reason: "id is required"}
	}

	existing, err := s.repo.GetByID(ctx, scope.CompanyID, *p.ID)
	if err != nil {
		return nil, fmt.Errorf("loading organization: %w", err)
	}
	if existing == nil {
		return nil, notFound(domain.EntityOrganization, *p.ID)
	}
	if err := checkVersion(domain.EntityOrganization, existing.ID, p.Version, existing.Version, existing); err != nil {
		return nil, err
	}

	expected := existing.Version
	updated := *existing
	p.applyTo(&updated)
	updated.Version = expected + 1
	updated.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &updated, expected); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, s.raceConflict(ctx, scope.CompanyID, existing.ID, expected)
		}
		return nil, fmt.Errorf("updating organization: %w", err)
	}
	return &domain.Mutation{ServerID: updated.ID.String(), Version: updated.Version}, nil
}

func (s *OrganizationService) Delete(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error) {
	ref, err := decodeRef(domain.EntityOrganization, data)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, scope.CompanyID, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("loading organization: %w", err)
	}
	if existing == nil {
		// Already deleted or never synced: replays succeed.
		return &domain.Mutation{ServerID: ref.ID.String()}, nil
	}
	if err := checkVersion(domain.EntityOrganization, existing.ID, ref.Version, existing.Version, existing); err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, scope.CompanyID, existing.ID, existing.Version); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, s.raceConflict(ctx, scope.CompanyID, existing.ID, existing.Version)
		}
		return nil, fmt.Errorf("deleting organization: %w", err)
	}
	return &domain.Mutation{ServerID: existing.ID.String(), Version: existing.Version + 1}, nil
}

func (s *OrganizationService) ChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.SyncChange, error) {
	orgs, err := s.repo.FindChangedSince(ctx, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("listing changed organizations: %w", err)
	}

	changes := make([]domain.SyncChange, 0, len(orgs))
	for i := range orgs {
		o := orgs[i]
		changes = append(changes, domain.SyncChange{
			Type:   domain.ChangeType(o.CreatedAt, o.DeletedAt, since),
			Entity: domain.EntityOrganization,
			ID:     o.ID.String(),
			Data:   o,
		})
	}
	return changes, nil
}

func (s *OrganizationService) raceConflict(ctx context.Context, companyID, id uuid.UUID, clientVersion int64) error {
	current, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil || current == nil {
		s.log.Warn().Err(err).Str("organization_id", id.String()).Msg("reloading organization after version race")
		return fmt.Errorf("organization %s: %w", id, domain.ErrVersionConflict)
	}
	return &domain.ConflictError{
		Entity:        domain.EntityOrganization,
		ServerID:      id.String(),
		ClientVersion: clientVersion,
		ServerVersion: current.Version,
		ServerData:    current,
	}
}

func (p *organizationPayload) applyTo(o *domain.Organization) {
	o.Name = p.Name
	o.LegalName = p.LegalName
	o.TaxID = p.TaxID
	o.Address = p.Address
	o.ContactEmail = p.ContactEmail
	o.Settings = p.Settings
}
