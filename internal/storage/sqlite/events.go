package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/models"
)

const eventColumns = "id, owner, kind, occurred_at, local_date, tags, created_at, updated_at"

var (
	// ErrOwnerMismatch is returned when an upsert would change an event's owner.
	ErrOwnerMismatch = errors.New("event owner is immutable")
	// ErrKindMismatch is returned when an upsert would change an event's kind.
	ErrKindMismatch = errors.New("event kind is immutable")
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (models.Event, error) {
	var e models.Event
	var kind, tags string
	if err := row.Scan(&e.ID, &e.Owner, &kind, &e.OccurredAt, &e.LocalDate, &tags, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return models.Event{}, err
	}
	e.Kind = models.EventKind(kind)
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return models.Event{}, fmt.Errorf("failed to parse tags for event %s: %w", e.ID, err)
	}
	if e.Tags == nil {
		e.Tags = []models.SituationTag{}
	}
	return e, nil
}

func (s *Store) putEvent(e models.Event) error {
	if err := e.Validate(); err != nil {
		return apperrors.Local("put event", err)
	}
	if e.Tags == nil {
		e.Tags = []models.SituationTag{}
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return apperrors.Local("put event", err)
	}

	// Only tags change after creation. A conflicting owner or kind leaves the
	// row untouched and is reported below.
	result, err := s.db.Exec(`
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tags = excluded.tags,
			updated_at = excluded.updated_at
		WHERE events.owner = excluded.owner AND events.kind = excluded.kind`,
		e.ID, e.Owner, string(e.Kind), e.OccurredAt, e.LocalDate, string(tags), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return apperrors.Local("put event", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Local("put event", err)
	}
	if rows == 0 {
		return apperrors.Local("put event", s.immutableConflict(e))
	}
	return nil
}

func (s *Store) immutableConflict(e models.Event) error {
	existing, found, err := s.GetEvent(e.ID)
	if err != nil {
		return err
	}
	if found && existing.Owner == e.Owner {
		return fmt.Errorf("%w: %s is %s", ErrKindMismatch, e.ID, existing.Kind)
	}
	return fmt.Errorf("%w: %s", ErrOwnerMismatch, e.ID)
}

func (s *Store) GetEvent(id string) (models.Event, bool, error) {
	row := s.db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, false, nil
	}
	if err != nil {
		return models.Event{}, false, apperrors.Local("get event", err)
	}
	return e, true, nil
}

func (s *Store) queryEvents(op, where string, args ...any) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT "+eventColumns+" FROM events WHERE "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, apperrors.Local(op, err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.Local(op, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Local(op, err)
	}
	return events, nil
}

func (s *Store) EventsByOwner(owner string) ([]models.Event, error) {
	return s.queryEvents("events by owner", "owner = ?", owner)
}

func (s *Store) EventsByOwnerAndDate(owner, date string) ([]models.Event, error) {
	return s.queryEvents("events by owner and date", "owner = ? AND local_date = ?", owner, date)
}

func (s *Store) EventsByOwnerAndKind(owner string, kind models.EventKind) ([]models.Event, error) {
	return s.queryEvents("events by owner and kind", "owner = ? AND kind = ?", owner, string(kind))
}

// EventDates returns the distinct local dates that have events for an owner.
func (s *Store) EventDates(owner string) ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT local_date FROM events WHERE owner = ? ORDER BY local_date", owner)
	if err != nil {
		return nil, apperrors.Local("event dates", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, apperrors.Local("event dates", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Local("event dates", err)
	}
	return dates, nil
}
