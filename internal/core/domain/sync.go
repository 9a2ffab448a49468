package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OperationType is the kind of client mutation in a sync batch.
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// EntityType names the entity a sync operation targets.
type EntityType string

const (
	EntityAccount      EntityType = "ACCOUNT"
	EntityJournalEntry EntityType = "JOURNAL_ENTRY"
	EntityOrganization EntityType = "ORGANIZATION"
)

// SyncOperation is one client-originated mutation. Data is decoded by the
// entity service that owns Entity.
type SyncOperation struct {
	Type     OperationType   `json:"type"`
	Entity   EntityType      `json:"entity"`
	Data     json.RawMessage `json:"data"`
	ClientID string          `json:"clientId,omitempty"`
}

// SyncResult is produced for every SyncOperation, in input order.
type SyncResult struct {
	Success  bool       `json:"success"`
	ClientID string     `json:"clientId,omitempty"`
	ServerID string     `json:"serverId,omitempty"`
	Entity   EntityType `json:"entity"`
	Error    string     `json:"error,omitempty"`
}

// SyncChange is a server-side mutation the client has not seen yet.
type SyncChange struct {
	Type   OperationType `json:"type"`
	Entity EntityType    `json:"entity"`
	ID     string        `json:"id"`
	Data   any           `json:"data"`
}

// SyncConflict reports an operation rejected by the optimistic version check.
// The server copy wins; the client is expected to rebase on ServerData.
type SyncConflict struct {
	ClientID      string     `json:"clientId,omitempty"`
	ServerID      string     `json:"serverId"`
	Entity        EntityType `json:"entity"`
	ClientVersion int64      `json:"clientVersion"`
	ServerVersion int64      `json:"serverVersion"`
	ServerData    any        `json:"serverData"`
}

// SyncResponse is the outcome of one sync batch.
type SyncResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Results   []SyncResult   `json:"results"`
	Changes   []SyncChange   `json:"changes"`
	Conflicts []SyncConflict `json:"conflicts"`
}

// SyncScope identifies who is mutating and on behalf of which company.
type SyncScope struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
}

// Mutation is what an entity service reports after applying an operation.
type Mutation struct {
	ServerID string
	Version  int64
}

// ChangeType picks the replay type for a row modified at or after since.
func ChangeType(createdAt time.Time, deletedAt *time.Time, since time.Time) OperationType {
	switch {
	case deletedAt != nil:
		return OperationDelete
	case !createdAt.Before(since):
		return OperationCreate
	default:
		return OperationUpdate
	}
}
