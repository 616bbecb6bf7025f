package storage

import "github.com/julianstephens/quitlog/internal/models"

// Provider is the on-device store for events, daily summaries and settings.
// Implementations perform no network I/O; every failure is reported as a
// LocalStorageError and is never retried here.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Put upserts a record by primary key. Writing identical content twice
	// has no additional effect.
	Put(models.Record) error
	// Delete removes a record. Deleting a missing id is a successful no-op.
	Delete(store models.StoreName, id string) error

	// Events
	GetEvent(id string) (models.Event, bool, error)
	EventsByOwner(owner string) ([]models.Event, error)
	EventsByOwnerAndDate(owner, date string) ([]models.Event, error)
	EventsByOwnerAndKind(owner string, kind models.EventKind) ([]models.Event, error)

	// Summaries
	GetSummary(id string) (models.DailySummary, bool, error)
	SummariesByOwner(owner string) ([]models.DailySummary, error)

	// Settings
	GetSettings(owner string) (models.Settings, bool, error)

	// Utils
	GetConfigPath() string
}

// Queue is the durable, oldest-first list of pending remote mirroring
// operations. It references entities by id and carries a payload snapshot
// for replay; it does not own entity data.
type Queue interface {
	// Enqueue records a pending operation and returns its id. Enqueue
	// timestamps are strictly increasing so items order oldest-first.
	Enqueue(store models.StoreName, op models.Operation, targetID, owner string, payload []byte) (string, error)
	// ListPending returns every queued item oldest-first, including items
	// that have exhausted their retries.
	ListPending() ([]models.SyncQueueItem, error)
	GetItem(id string) (models.SyncQueueItem, bool, error)
	// Remove deletes an item after a confirmed replay. Idempotent.
	Remove(id string) error
	// RecordFailure increments the retry count and stores the error. It
	// returns false once the retry cap is reached.
	RecordFailure(id, message string) (bool, error)
	// Deduplicate keeps only the newest item per (store, target) and returns
	// how many older items were discarded.
	Deduplicate() (int, error)
	// RemoveTarget drops items for a target enqueued at or before the given
	// epoch-millisecond time.
	RemoveTarget(store models.StoreName, targetID string, before int64) (int, error)
	HasPendingForTarget(store models.StoreName, targetID string) (bool, error)
	// CountPending counts items that still have retries left.
	CountPending() (int, error)
	// FailedItems returns items that reached the retry cap.
	FailedItems() ([]models.SyncQueueItem, error)
	// ResetFailed gives exhausted items a fresh set of retries.
	ResetFailed() (int, error)
}
