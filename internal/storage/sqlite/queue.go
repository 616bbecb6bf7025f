package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/models"
)

const queueColumns = "id, store, operation, target_id, owner, payload, enqueued_at, retry_count, last_error"

func scanQueueItem(row rowScanner) (models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	var store, op string
	var payload, lastError sql.NullString
	err := row.Scan(&item.ID, &store, &op, &item.TargetID, &item.Owner, &payload,
		&item.EnqueuedAt, &item.RetryCount, &lastError)
	if err != nil {
		return models.SyncQueueItem{}, err
	}
	item.Store = models.StoreName(store)
	item.Operation = models.Operation(op)
	if payload.Valid {
		item.Payload = []byte(payload.String)
	}
	item.LastError = lastError.String
	return item, nil
}

// Enqueue appends an item. enqueued_at is the current time in epoch
// milliseconds, bumped past the newest existing item when the clock has not
// advanced, so ids stay unique and ordering is strict.
func (s *Store) Enqueue(store models.StoreName, op models.Operation, targetID, owner string, payload []byte) (string, error) {
	if !store.Valid() {
		return "", apperrors.Local("enqueue", fmt.Errorf("unknown store %q", store))
	}
	if !op.Valid() {
		return "", apperrors.Local("enqueue", fmt.Errorf("unknown operation %q", op))
	}
	if targetID == "" {
		return "", apperrors.Local("enqueue", fmt.Errorf("target id cannot be empty"))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", apperrors.Local("enqueue", err)
	}
	defer tx.Rollback()

	var latest int64
	if err := tx.QueryRow("SELECT COALESCE(MAX(enqueued_at), 0) FROM sync_queue").Scan(&latest); err != nil {
		return "", apperrors.Local("enqueue", err)
	}
	ts := s.now().UnixMilli()
	if ts <= latest {
		ts = latest + 1
	}

	var payloadArg any
	if op != models.OpDelete && payload != nil {
		payloadArg = string(payload)
	}

	id := models.QueueItemID(store, op, targetID, ts)
	_, err = tx.Exec(`INSERT INTO sync_queue (id, store, operation, target_id, owner, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(store), string(op), targetID, owner, payloadArg, ts)
	if err != nil {
		return "", apperrors.Local("enqueue", err)
	}

	if err := tx.Commit(); err != nil {
		return "", apperrors.Local("enqueue", err)
	}
	return id, nil
}

func (s *Store) queryQueue(op, where string, args ...any) ([]models.SyncQueueItem, error) {
	query := "SELECT " + queueColumns + " FROM sync_queue"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY enqueued_at, seq"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Local(op, err)
	}
	defer rows.Close()

	items := []models.SyncQueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, apperrors.Local(op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Local(op, err)
	}
	return items, nil
}

func (s *Store) ListPending() ([]models.SyncQueueItem, error) {
	return s.queryQueue("list pending", "")
}

func (s *Store) GetItem(id string) (models.SyncQueueItem, bool, error) {
	row := s.db.QueryRow("SELECT "+queueColumns+" FROM sync_queue WHERE id = ?", id)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncQueueItem{}, false, nil
	}
	if err != nil {
		return models.SyncQueueItem{}, false, apperrors.Local("get queue item", err)
	}
	return item, true, nil
}

func (s *Store) Remove(id string) error {
	if _, err := s.db.Exec("DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return apperrors.Local("remove queue item", err)
	}
	return nil
}

// RecordFailure bumps the retry count, never past the cap. It returns false
// when the item has reached the cap or no longer exists.
func (s *Store) RecordFailure(id, message string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, apperrors.Local("record failure", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow("SELECT retry_count FROM sync_queue WHERE id = ?", id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Local("record failure", err)
	}

	if count < s.maxRetries {
		count++
	}
	if _, err := tx.Exec("UPDATE sync_queue SET retry_count = ?, last_error = ? WHERE id = ?", count, message, id); err != nil {
		return false, apperrors.Local("record failure", err)
	}
	if err := tx.Commit(); err != nil {
		return false, apperrors.Local("record failure", err)
	}
	return count < s.maxRetries, nil
}

// Deduplicate drops every item that has a newer item for the same target.
func (s *Store) Deduplicate() (int, error) {
	result, err := s.db.Exec(`
		DELETE FROM sync_queue
		WHERE EXISTS (
			SELECT 1 FROM sync_queue AS newer
			WHERE newer.store = sync_queue.store
			  AND newer.target_id = sync_queue.target_id
			  AND (newer.enqueued_at > sync_queue.enqueued_at
			       OR (newer.enqueued_at = sync_queue.enqueued_at AND newer.seq > sync_queue.seq))
		)`)
	if err != nil {
		return 0, apperrors.Local("deduplicate", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Local("deduplicate", err)
	}
	return int(n), nil
}

func (s *Store) RemoveTarget(store models.StoreName, targetID string, before int64) (int, error) {
	result, err := s.db.Exec("DELETE FROM sync_queue WHERE store = ? AND target_id = ? AND enqueued_at <= ?",
		string(store), targetID, before)
	if err != nil {
		return 0, apperrors.Local("remove target", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Local("remove target", err)
	}
	return int(n), nil
}

func (s *Store) HasPendingForTarget(store models.StoreName, targetID string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue WHERE store = ? AND target_id = ?",
		string(store), targetID).Scan(&n)
	if err != nil {
		return false, apperrors.Local("has pending", err)
	}
	return n > 0, nil
}

func (s *Store) CountPending() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue WHERE retry_count < ?", s.maxRetries).Scan(&n); err != nil {
		return 0, apperrors.Local("count pending", err)
	}
	return n, nil
}

func (s *Store) FailedItems() ([]models.SyncQueueItem, error) {
	return s.queryQueue("failed items", "retry_count >= ?", s.maxRetries)
}

func (s *Store) ResetFailed() (int, error) {
	result, err := s.db.Exec("UPDATE sync_queue SET retry_count = 0 WHERE retry_count >= ?", s.maxRetries)
	if err != nil {
		return 0, apperrors.Local("reset failed", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Local("reset failed", err)
	}
	return int(n), nil
}
