package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/quitlog/internal/cli"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting existing database before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			ctx.PerformAutomaticBackup()
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to delete existing database: %w", err)
				}
			}
			ctx.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	ctx.Printf("Initialized quitlog storage at: %s\n", ctx.Store.GetConfigPath())

	settings, err := ctx.Sync.EnsureSettings(ctx.Context(), ctx.Owner)
	if err != nil {
		return fmt.Errorf("failed to create default settings: %w", err)
	}
	ctx.Printf("Settings ready for owner %s (timezone %s)\n", settings.Owner, settings.Timezone)
	return nil
}
