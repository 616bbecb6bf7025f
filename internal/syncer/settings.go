package syncer

import (
	"context"

	"github.com/julianstephens/quitlog/internal/models"
)

// EnsureSettings returns the owner's settings, creating the defaults the
// first time the owner is seen.
func (c *Coordinator) EnsureSettings(ctx context.Context, owner string) (models.Settings, error) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	settings, found, err := c.local.GetSettings(owner)
	if err != nil {
		return models.Settings{}, err
	}
	if found {
		return settings, nil
	}

	settings = models.DefaultSettings(owner)
	settings.UpdatedAt = c.now().UnixMilli()
	if _, err := c.Write(ctx, settings, models.OpCreate); err != nil {
		return models.Settings{}, err
	}
	c.log.Info("Created default settings", "owner", owner)
	return settings, nil
}

// SaveSettings validates and stores settings. Existing summaries keep the
// values they were computed with until RebuildSummaries runs.
func (c *Coordinator) SaveSettings(ctx context.Context, settings models.Settings) (models.Settings, error) {
	if err := settings.Validate(); err != nil {
		return models.Settings{}, err
	}
	if _, err := c.EnsureSettings(ctx, settings.Owner); err != nil {
		return models.Settings{}, err
	}

	settings.UpdatedAt = c.now().UnixMilli()
	if _, err := c.Write(ctx, settings, models.OpUpdate); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}
