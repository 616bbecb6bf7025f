package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/summary"
	"github.com/julianstephens/quitlog/internal/utils"
)

// RecordEvent logs a new event for owner. The local date is fixed from
// occurredAt in the owner's timezone at this moment and never recomputed.
func (c *Coordinator) RecordEvent(ctx context.Context, owner string, kind models.EventKind, occurredAt time.Time, tags []string) (models.Event, error) {
	settings, err := c.EnsureSettings(ctx, owner)
	if err != nil {
		return models.Event{}, err
	}

	normalized, err := models.NormalizeTags(tags)
	if err != nil {
		return models.Event{}, err
	}

	occurredMs := occurredAt.UnixMilli()
	localDate, err := utils.LocalDate(occurredMs, settings.Timezone)
	if err != nil {
		return models.Event{}, err
	}

	nowMs := c.now().UnixMilli()
	event := models.Event{
		ID:         c.newID(),
		Owner:      owner,
		Kind:       kind,
		OccurredAt: occurredMs,
		LocalDate:  localDate,
		Tags:       normalized,
		CreatedAt:  nowMs,
		UpdatedAt:  nowMs,
	}
	if err := event.Validate(); err != nil {
		return models.Event{}, err
	}

	if _, err := c.Write(ctx, event, models.OpCreate); err != nil {
		return models.Event{}, err
	}
	if _, err := c.refreshSummary(ctx, owner, localDate, settings); err != nil {
		return event, err
	}
	return event, nil
}

// UpdateEventTags replaces an event's situation tags. Tags are the only
// mutable part of an event.
func (c *Coordinator) UpdateEventTags(ctx context.Context, id string, tags []string) (models.Event, error) {
	event, found, err := c.local.GetEvent(id)
	if err != nil {
		return models.Event{}, err
	}
	if !found {
		return models.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}

	normalized, err := models.NormalizeTags(tags)
	if err != nil {
		return models.Event{}, err
	}
	event.Tags = normalized
	event.UpdatedAt = c.now().UnixMilli()

	if _, err := c.Write(ctx, event, models.OpUpdate); err != nil {
		return models.Event{}, err
	}

	settings, err := c.EnsureSettings(ctx, event.Owner)
	if err != nil {
		return event, err
	}
	if _, err := c.refreshSummary(ctx, event.Owner, event.LocalDate, settings); err != nil {
		return event, err
	}
	return event, nil
}

// DeleteEvent removes an event and recomputes its day.
func (c *Coordinator) DeleteEvent(ctx context.Context, id string) error {
	event, found, err := c.local.GetEvent(id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}

	if _, err := c.Write(ctx, event, models.OpDelete); err != nil {
		return err
	}

	settings, err := c.EnsureSettings(ctx, event.Owner)
	if err != nil {
		return err
	}
	_, err = c.refreshSummary(ctx, event.Owner, event.LocalDate, settings)
	return err
}

// refreshSummary recomputes one day from the local event log and writes the
// result through the dual-write path. A day with no events keeps a
// zero-count summary.
func (c *Coordinator) refreshSummary(ctx context.Context, owner, date string, settings models.Settings) (models.DailySummary, error) {
	// Read, project and write as one step per day; the last writer must have
	// seen every event committed before it.
	unlock := c.locks.Lock(projectionKey(owner, date))
	defer unlock()

	events, err := c.local.EventsByOwnerAndDate(owner, date)
	if err != nil {
		return models.DailySummary{}, err
	}
	sum := summary.Project(owner, date, events, settings)

	op := models.OpCreate
	if _, found, err := c.local.GetSummary(sum.ID); err != nil {
		return models.DailySummary{}, err
	} else if found {
		op = models.OpUpdate
	}

	if _, err := c.Write(ctx, sum, op); err != nil {
		return models.DailySummary{}, err
	}
	return sum, nil
}

// RebuildSummaries recomputes every day that has events or an existing
// summary for owner, using the current settings.
func (c *Coordinator) RebuildSummaries(ctx context.Context, owner string) (int, error) {
	settings, err := c.EnsureSettings(ctx, owner)
	if err != nil {
		return 0, err
	}
	events, err := c.local.EventsByOwner(owner)
	if err != nil {
		return 0, err
	}
	existing, err := c.local.SummariesByOwner(owner)
	if err != nil {
		return 0, err
	}

	dates := summary.Dates(owner, events)
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		seen[d] = true
	}
	for _, s := range existing {
		if !seen[s.Date] {
			seen[s.Date] = true
			dates = append(dates, s.Date)
		}
	}

	for _, date := range dates {
		if _, err := c.refreshSummary(ctx, owner, date, settings); err != nil {
			return 0, err
		}
	}
	return len(dates), nil
}
