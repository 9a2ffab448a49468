package ports

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks accounting-sync/internal/core/ports EncryptionService,TokenService,EntityService,SyncService,SyncLocker,IdempotencyCache,ProcessedEventStore,EventBus,DeadLetterPublisher,EventPublisher,PaymentEventRouter,SubscriptionPaymentService,AuditService,SyncMetrics,PaymentMetrics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"accounting-sync/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService seals and opens field values with AES-256-GCM.
type EncryptionService interface {
	Encrypt(plaintext string) (domain.EncryptedData, error)
	Decrypt(data domain.EncryptedData) (string, error)
	// EncryptJSON marshals v and encrypts the result. A nil v yields empty data.
	EncryptJSON(v any) (domain.EncryptedData, error)
	// DecryptJSON decrypts data and unmarshals it into dst. Empty data leaves dst untouched.
	DecryptJSON(data domain.EncryptedData, dst any) error
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID, companyID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// ErrMissingCompanyClaim is returned by Validate for a well-signed token
// without a company_id claim.
var ErrMissingCompanyClaim = errors.New("missing company_id claim")

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

// --- Sync ---

// EntityService applies sync operations for one entity type.
type EntityService interface {
	Entity() domain.EntityType
	Create(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error)
	Update(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error)
	Delete(ctx context.Context, scope domain.SyncScope, data json.RawMessage) (*domain.Mutation, error)
	// ChangedSince lists rows of the company updated at or after since,
	// soft-deleted rows included.
	ChangedSince(ctx context.Context, companyID uuid.UUID, since time.Time) ([]domain.SyncChange, error)
}

// SyncRequest is one client batch.
type SyncRequest struct {
	Operations        []domain.SyncOperation
	LastSyncTimestamp string
	BatchID           string
}

// SyncService reconciles a client batch against the server state.
type SyncService interface {
	ProcessSyncOperations(ctx context.Context, req SyncRequest, companyID, userID uuid.UUID) (*domain.SyncResponse, error)
}

// ErrLockNotAcquired is returned by SyncLocker when the wait expires.
var ErrLockNotAcquired = errors.New("lock not acquired")

// SyncLocker serializes work on a key across service instances.
type SyncLocker interface {
	// Acquire blocks up to wait for the lock and returns the owner token.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (string, error)
	// Release frees the lock only if token still owns it.
	Release(ctx context.Context, key, token string) error
}

// IdempotencyCache stores replayable responses keyed by idempotency key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SyncMetrics records sync operation outcomes.
type SyncMetrics interface {
	ObserveOperation(entity domain.EntityType, op domain.OperationType, outcome string)
}

// --- Payment events ---

// ProcessedEventStore tracks idempotency keys of routed payment events.
type ProcessedEventStore interface {
	// Claim marks key as processed. Returns false if it already was.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventHandler consumes a normalized payment event from a bus channel.
type EventHandler func(ctx context.Context, event domain.NormalizedPaymentEvent) error

// EventBus is the in-process publish/subscribe channel for payment events.
type EventBus interface {
	Publish(ctx context.Context, channel string, event domain.NormalizedPaymentEvent) error
	Subscribe(channel string, handler EventHandler)
}

// DeadLetter is a message that could not be routed.
type DeadLetter struct {
	Topic    string
	Key      []byte
	Value    []byte
	Error    string
	Attempts int
}

// DeadLetterPublisher parks unroutable messages.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg DeadLetter) error
}

// EventPublisher writes an envelope to a broker topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, envelope domain.EventEnvelope) error
}

// PaymentEventRouter normalizes a raw broker message and emits it on the bus.
type PaymentEventRouter interface {
	RouteMessage(ctx context.Context, topic string, key, raw []byte) error
}

// SubscriptionPaymentService publishes subscription payment lifecycle events.
type SubscriptionPaymentService interface {
	RequestPayment(ctx context.Context, scope domain.SyncScope, payment domain.SubscriptionPayment) (*domain.EventEnvelope, error)
	UpdateStatus(ctx context.Context, scope domain.SyncScope, payment domain.SubscriptionPayment) (*domain.EventEnvelope, error)
}

// PaymentMetrics records what the payment listeners observe.
type PaymentMetrics interface {
	RecordReceived(currency string, amount float64)
	RecordFailure(provider string)
	RecordAnalytics(provider, status string)
}

// AuditService handles audit log creation.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
