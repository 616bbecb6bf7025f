package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/remote"
)

// HydrateReport counts what a hydrate pulled into the local store.
type HydrateReport struct {
	Events        int
	Skipped       int // remote events ignored because local state is newer or pending
	Settings      bool
	SummariesDays int
}

// Hydrate pulls remote records for owner that are missing locally, such as
// after a reinstall. Local data is canonical: events already present or with
// a pending queue item are left alone. Summaries are never pulled; the
// touched days are re-projected from the merged event log.
func (c *Coordinator) Hydrate(ctx context.Context, owner string) (HydrateReport, error) {
	var report HydrateReport
	if !c.online() {
		return report, ErrOffline
	}

	if err := c.hydrateSettings(ctx, owner, &report); err != nil {
		return report, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	docs, err := c.remote.QueryDocuments(callCtx, remote.Collection(owner, models.StoreEvents), map[string]string{"owner": owner})
	cancel()
	if err != nil {
		return report, apperrors.Remote("hydrate events", err)
	}

	touched := make(map[string]bool)
	for _, doc := range docs {
		var event models.Event
		if err := json.Unmarshal(doc.Data, &event); err != nil {
			c.log.Warn("Skipping undecodable remote event", "id", doc.ID, "error", err)
			report.Skipped++
			continue
		}
		if event.Owner != owner || event.Validate() != nil {
			report.Skipped++
			continue
		}

		pulled, err := c.pullEvent(event)
		if err != nil {
			return report, err
		}
		if !pulled {
			report.Skipped++
			continue
		}
		report.Events++
		touched[event.LocalDate] = true
	}

	if len(touched) == 0 {
		return report, nil
	}
	settings, err := c.EnsureSettings(ctx, owner)
	if err != nil {
		return report, err
	}
	for date := range touched {
		if _, err := c.refreshSummary(ctx, owner, date, settings); err != nil {
			return report, err
		}
		report.SummariesDays++
	}
	return report, nil
}

// pullEvent stores a remote event locally unless the local side already
// knows about it. It does not mirror back to the remote.
func (c *Coordinator) pullEvent(event models.Event) (bool, error) {
	unlock := c.locks.Lock(entityKey(string(models.StoreEvents), event.ID))
	defer unlock()

	if _, found, err := c.local.GetEvent(event.ID); err != nil {
		return false, err
	} else if found {
		return false, nil
	}
	pending, err := c.queue.HasPendingForTarget(models.StoreEvents, event.ID)
	if err != nil {
		return false, err
	}
	if pending {
		return false, nil
	}
	if event.Tags == nil {
		event.Tags = []models.SituationTag{}
	}
	if err := c.local.Put(event); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Coordinator) hydrateSettings(ctx context.Context, owner string, report *HydrateReport) error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	if _, found, err := c.local.GetSettings(owner); err != nil {
		return err
	} else if found {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	data, found, err := c.remote.GetDocument(callCtx, remote.Collection(owner, models.StoreSettings), owner)
	cancel()
	if err != nil {
		return apperrors.Remote("hydrate settings", err)
	}
	if !found {
		return nil
	}

	var settings models.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to decode remote settings: %w", err)
	}
	settings.Owner = owner
	if err := settings.Validate(); err != nil {
		c.log.Warn("Ignoring invalid remote settings", "owner", owner, "error", err)
		return nil
	}
	if err := c.local.Put(settings); err != nil {
		return err
	}
	report.Settings = true
	return nil
}
