package models

import (
	"encoding/json"
	"fmt"
)

// StoreName identifies one of the local entity collections.
type StoreName string

const (
	StoreEvents    StoreName = "events"
	StoreSummaries StoreName = "summaries"
	StoreSettings  StoreName = "settings"
)

func (s StoreName) Valid() bool {
	switch s {
	case StoreEvents, StoreSummaries, StoreSettings:
		return true
	}
	return false
}

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Record is any entity that flows through the dual-write path.
type Record interface {
	RecordID() string
	OwnerID() string
	Store() StoreName
}

// SyncQueueItem is a durable intent to mirror one local mutation remotely.
type SyncQueueItem struct {
	ID         string          `json:"id"` // store:operation:target:enqueued_at
	Store      StoreName       `json:"store"`
	Operation  Operation       `json:"operation"`
	TargetID   string          `json:"target_id"`
	Owner      string          `json:"owner"`
	Payload    json.RawMessage `json:"payload,omitempty"` // nil for deletes
	EnqueuedAt int64           `json:"enqueued_at"`       // epoch milliseconds, strictly increasing
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
}

// QueueItemID derives the item id from its identifying fields.
func QueueItemID(store StoreName, op Operation, targetID string, enqueuedAt int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", store, op, targetID, enqueuedAt)
}

// Exhausted reports whether the item has used up its replay attempts.
func (i SyncQueueItem) Exhausted(maxRetries int) bool {
	return i.RetryCount >= maxRetries
}
