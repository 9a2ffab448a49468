package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"
	"accounting-sync/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Outcomes recorded per sync operation.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeConflict    = "conflict"
	OutcomeUnsupported = "unsupported"
)

// SyncOptions bounds a sync batch.
type SyncOptions struct {
	MaxOperations  int
	MaxConcurrency int
	BatchTimeout   time.Duration
	LockTTL        time.Duration
	LockWait       time.Duration
	BatchCacheTTL  time.Duration
}

// SyncServiceImpl implements ports.SyncService.
type SyncServiceImpl struct {
	entities map[domain.EntityType]ports.EntityService
	order    []domain.EntityType
	locker   ports.SyncLocker
	cache    ports.IdempotencyCache
	audit    ports.AuditService
	metrics  ports.SyncMetrics
	opts     SyncOptions
	log      zerolog.Logger
	now      func() time.Time
}

// NewSyncService creates a new sync reconciler. Changes are collected in the
// order entity services are given.
func NewSyncService(
	entities []ports.EntityService,
	locker ports.SyncLocker,
	cache ports.IdempotencyCache,
	audit ports.AuditService,
	metrics ports.SyncMetrics,
	opts SyncOptions,
	log zerolog.Logger,
) *SyncServiceImpl {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	s := &SyncServiceImpl{
		entities: make(map[domain.EntityType]ports.EntityService, len(entities)),
		locker:   locker,
		cache:    cache,
		audit:    audit,
		metrics:  metrics,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
	for _, e := range entities {
		s.entities[e.Entity()] = e
		s.order = append(s.order, e.Entity())
	}
	return s
}

// BatchCacheKey builds the replay cache key of a client batch.
func BatchCacheKey(companyID uuid.UUID, batchID string) string {
	return "sync:batch:" + companyID.String() + ":" + batchID
}

// LockKey builds the per-company sync lock key.
func LockKey(companyID uuid.UUID) string {
	return "sync:lock:" + companyID.String()
}

// ProcessSyncOperations applies a client batch best-effort and returns one
// result per operation, in order, plus the server changes since the client's
// last sync.
func (s *SyncServiceImpl) ProcessSyncOperations(ctx context.Context, req ports.SyncRequest, companyID, userID uuid.UUID) (*domain.SyncResponse, error) {
	if s.opts.MaxOperations > 0 && len(req.Operations) > s.opts.MaxOperations {
		return nil, apperror.ErrBatchTooLarge(s.opts.MaxOperations)
	}

	since, err := parseSyncTimestamp(req.LastSyncTimestamp)
	if err != nil {
		return nil, apperror.ErrInvalidSyncTimestamp(err)
	}

	if req.BatchID != "" {
		if cached := s.replay(ctx, companyID, req.BatchID); cached != nil {
			return cached, nil
		}
	}

	release, err := s.lock(ctx, companyID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Taken before any mutation so the client's next sync sees every
	// concurrent change.
	startedAt := s.now().UTC()

	batchCtx := ctx
	if s.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, s.opts.BatchTimeout)
		defer cancel()
	}

	scope := domain.SyncScope{CompanyID: companyID, UserID: userID}
	outcomes := s.apply(batchCtx, scope, req.Operations)

	resp := &domain.SyncResponse{
		Timestamp: startedAt,
		Results:   make([]domain.SyncResult, len(outcomes)),
		Changes:   []domain.SyncChange{},
		Conflicts: []domain.SyncConflict{},
	}
	touched := make(map[string]struct{})
	for i, o := range outcomes {
		resp.Results[i] = o.result
		if o.conflict != nil {
			resp.Conflicts = append(resp.Conflicts, *o.conflict)
		}
		if o.result.Success {
			touched[changeKey(o.result.Entity, o.result.ServerID)] = struct{}{}
		}
	}

	// Committed results are always returned. When the pull cannot run, the
	// timestamp stays at since so the next sync covers the gap.
	if err := batchCtx.Err(); err != nil {
		s.log.Warn().Err(err).Str("company_id", companyID.String()).Msg("sync batch deadline exceeded, skipping changes")
		resp.Timestamp = since
	} else if changes, err := s.collectChanges(batchCtx, companyID, since, touched); err != nil {
		s.log.Error().Err(err).Str("company_id", companyID.String()).Msg("collecting sync changes failed")
		resp.Timestamp = since
	} else {
		resp.Changes = changes
	}

	s.logBatch(ctx, scope, req, resp)

	if req.BatchID != "" {
		s.remember(ctx, companyID, req.BatchID, resp)
	}

	return resp, nil
}

type opOutcome struct {
	result   domain.SyncResult
	conflict *domain.SyncConflict
}

// apply runs every operation with bounded concurrency. Outcomes are stored
// by index so input order is kept.
func (s *SyncServiceImpl) apply(ctx context.Context, scope domain.SyncScope, ops []domain.SyncOperation) []opOutcome {
	outcomes := make([]opOutcome, len(ops))

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrency)
	for i := range ops {
		g.Go(func() error {
			outcomes[i] = s.applyOne(ctx, scope, ops[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *SyncServiceImpl) applyOne(ctx context.Context, scope domain.SyncScope, op domain.SyncOperation) opOutcome {
	result := domain.SyncResult{ClientID: op.ClientID, Entity: op.Entity}

	svc, ok := s.entities[op.Entity]
	if !ok {
		result.Error = fmt.Sprintf("Unsupported entity type: %s", op.Entity)
		s.observe(op, OutcomeUnsupported)
		return opOutcome{result: result}
	}

	var handler func(context.Context, domain.SyncScope, json.RawMessage) (*domain.Mutation, error)
	switch op.Type {
	case domain.OperationCreate:
		handler = svc.Create
	case domain.OperationUpdate:
		handler = svc.Update
	case domain.OperationDelete:
		handler = svc.Delete
	default:
		result.Error = fmt.Sprintf("Unsupported operation type: %s for entity %s", op.Type, op.Entity)
		s.observe(op, OutcomeUnsupported)
		return opOutcome{result: result}
	}

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		s.observe(op, OutcomeFailure)
		return opOutcome{result: result}
	}

	mutation, err := handler(ctx, scope, op.Data)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			result.ServerID = conflict.ServerID
			result.Error = err.Error()
			s.observe(op, OutcomeConflict)
			return opOutcome{
				result: result,
				conflict: &domain.SyncConflict{
					ClientID:      op.ClientID,
					ServerID:      conflict.ServerID,
					Entity:        op.Entity,
					ClientVersion: conflict.ClientVersion,
					ServerVersion: conflict.ServerVersion,
					ServerData:    conflict.ServerData,
				},
			}
		}

		result.Error = s.clientMessage(op, err)
		s.observe(op, OutcomeFailure)
		return opOutcome{result: result}
	}

	result.Success = true
	result.ServerID = mutation.ServerID
	s.observe(op, OutcomeSuccess)
	return opOutcome{result: result}
}

// clientMessage hides storage failures from clients; domain errors pass through.
func (s *SyncServiceImpl) clientMessage(op domain.SyncOperation, err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrImmutable),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return err.Error()
	}

	msg := "internal error"
	if errors.Is(err, domain.ErrEncryption) {
		msg = "encryption failure"
	}
	s.log.Error().Err(err).
		Str("entity", string(op.Entity)).
		Str("type", string(op.Type)).
		Str("client_id", op.ClientID).
		Msg("sync operation failed")
	return msg
}

func (s *SyncServiceImpl) collectChanges(ctx context.Context, companyID uuid.UUID, since time.Time, touched map[string]struct{}) ([]domain.SyncChange, error) {
	changes := []domain.SyncChange{}
	for _, entity := range s.order {
		found, err := s.entities[entity].ChangedSince(ctx, companyID, since)
		if err != nil {
			return nil, fmt.Errorf("changes for %s: %w", entity, err)
		}
		for _, c := range found {
			if _, ok := touched[changeKey(c.Entity, c.ID)]; ok {
				continue
			}
			changes = append(changes, c)
		}
	}
	return changes, nil
}

// lock takes the per-company lock. A Redis failure degrades to running
// unlocked; repository writes stay version-checked.
func (s *SyncServiceImpl) lock(ctx context.Context, companyID uuid.UUID) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := LockKey(companyID)
	token, err := s.locker.Acquire(ctx, key, s.opts.LockTTL, s.opts.LockWait)
	if err != nil {
		if errors.Is(err, ports.ErrLockNotAcquired) {
			return nil, apperror.ErrSyncInProgress()
		}
		if ctx.Err() != nil {
			return nil, apperror.ErrSyncTimeout(ctx.Err())
		}
		s.log.Warn().Err(err).Str("company_id", companyID.String()).Msg("sync lock unavailable, continuing unlocked (degraded mode)")
		return noop, nil
	}

	return func() {
		if err := s.locker.Release(context.Background(), key, token); err != nil {
			s.log.Warn().Err(err).Str("company_id", companyID.String()).Msg("failed to release sync lock")
		}
	}, nil
}

func (s *SyncServiceImpl) replay(ctx context.Context, companyID uuid.UUID, batchID string) *domain.SyncResponse {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, BatchCacheKey(companyID, batchID))
	if err != nil {
		s.log.Warn().Err(err).Str("batch_id", batchID).Msg("batch cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}

	var resp domain.SyncResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.log.Warn().Err(err).Str("batch_id", batchID).Msg("discarding corrupt cached batch")
		return nil
	}
	s.log.Info().Str("batch_id", batchID).Str("company_id", companyID.String()).Msg("replaying cached sync batch")
	return &resp
}

func (s *SyncServiceImpl) remember(ctx context.Context, companyID uuid.UUID, batchID string, resp *domain.SyncResponse) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		s.log.Warn().Err(err).Str("batch_id", batchID).Msg("marshaling batch for cache")
		return
	}
	if err := s.cache.Set(ctx, BatchCacheKey(companyID, batchID), raw, s.opts.BatchCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("batch_id", batchID).Msg("batch cache write failed")
	}
}

func (s *SyncServiceImpl) logBatch(ctx context.Context, scope domain.SyncScope, req ports.SyncRequest, resp *domain.SyncResponse) {
	failed := 0
	for _, r := range resp.Results {
		if !r.Success {
			failed++
		}
	}

	s.log.Info().
		Str("company_id", scope.CompanyID.String()).
		Str("user_id", scope.UserID.String()).
		Str("batch_id", req.BatchID).
		Int("operations", len(req.Operations)).
		Int("failed", failed).
		Int("conflicts", len(resp.Conflicts)).
		Int("changes", len(resp.Changes)).
		Msg("sync batch processed")

	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]interface{}{
		"operations":          len(req.Operations),
		"failed":              failed,
		"conflicts":           len(resp.Conflicts),
		"changes":             len(resp.Changes),
		"last_sync_timestamp": req.LastSyncTimestamp,
	})
	companyID, userID := scope.CompanyID, scope.UserID
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		CompanyID:    &companyID,
		UserID:       &userID,
		Action:       domain.AuditActionSyncBatch,
		ResourceType: "sync_batch",
		ResourceID:   req.BatchID,
		Details:      string(details),
		CreatedAt:    resp.Timestamp,
	})
}

func (s *SyncServiceImpl) observe(op domain.SyncOperation, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op.Entity, op.Type, outcome)
	}
}

func changeKey(entity domain.EntityType, id string) string {
	return string(entity) + "/" + id
}

// parseSyncTimestamp accepts RFC 3339. Empty means a full sync.
func parseSyncTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("lastSyncTimestamp: %w", err)
	}
	return ts.UTC(), nil
}
