package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/quitlog/internal/backup"
	"github.com/julianstephens/quitlog/internal/cli"
	"github.com/julianstephens/quitlog/internal/constants"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/storage/sqlite"
	"github.com/julianstephens/quitlog/internal/summary"
	"github.com/julianstephens/quitlog/internal/utils"
)

type DoctorCmd struct{}

type check struct {
	name     string
	needsDB  bool
	warnOnly bool
	run      func(*cli.Context) error
}

var checks = []check{
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "Settings", needsDB: true, run: checkSettings},
	{name: "Summary consistency", needsDB: true, warnOnly: true, run: checkSummaries},
	{name: "Sync queue", needsDB: true, warnOnly: true, run: checkQueue},
	{name: "Remote reachable", warnOnly: true, run: checkRemote},
	{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
	{name: "Clock", run: checkClock},
	{name: "Timezone", needsDB: true, run: checkTimezone},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := false

	if err := checkDBReachable(ctx); err != nil {
		ctx.Printf("❌ Database reachable: FAIL\n")
		ctx.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		ctx.Printf("✓ Database reachable: OK\n")
		dbReachable = true
		if store, ok := ctx.Store.(*sqlite.Store); ok {
			if counts, err := store.Counts(); err == nil {
				ctx.Printf("   %d events, %d summaries, %d queued\n", counts["events"], counts["summaries"], counts["sync_queue"])
			}
		}
	}

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			ctx.Printf("⚠ %s: WARNING\n", c.name)
			ctx.Printf("   %v\n", err)
		default:
			ctx.Printf("❌ %s: FAIL\n", c.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	ctx.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	if store, ok := ctx.Store.(*sqlite.Store); ok {
		db := store.GetDB()
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	store, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return nil
	}
	current, latest, err := store.SchemaVersions()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkSettings(ctx *cli.Context) error {
	settings, found, err := ctx.Store.GetSettings(ctx.Owner)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if !found {
		return fmt.Errorf("no settings for owner %s - run 'quitlog init'", ctx.Owner)
	}
	return settings.Validate()
}

// checkSummaries re-projects every stored day and reports drift. Drift is
// expected after a settings change until summaries are rebuilt.
func checkSummaries(ctx *cli.Context) error {
	settings, found, err := ctx.Store.GetSettings(ctx.Owner)
	if err != nil || !found {
		return fmt.Errorf("settings unavailable")
	}
	events, err := ctx.Store.EventsByOwner(ctx.Owner)
	if err != nil {
		return err
	}
	stored, err := ctx.Store.SummariesByOwner(ctx.Owner)
	if err != nil {
		return err
	}

	stale := 0
	for _, s := range stored {
		want := summary.Project(ctx.Owner, s.Date, events, settings)
		if !sameSummary(s, want) {
			stale++
		}
	}
	for _, date := range summary.Dates(ctx.Owner, events) {
		if _, ok, err := ctx.Store.GetSummary(models.SummaryID(ctx.Owner, date)); err == nil && !ok {
			stale++
		}
	}
	if stale > 0 {
		return fmt.Errorf("%d daily summaries are out of date - run 'quitlog summary rebuild'", stale)
	}
	return nil
}

func sameSummary(a, b models.DailySummary) bool {
	if a.Smoked != b.Smoked || a.Urges != b.Urges || a.Resisted != b.Resisted ||
		a.MoneySaved != b.MoneySaved || a.MinutesSaved != b.MinutesSaved ||
		a.GoalMet != b.GoalMet || len(a.TopTags) != len(b.TopTags) {
		return false
	}
	for i := range a.TopTags {
		if a.TopTags[i] != b.TopTags[i] {
			return false
		}
	}
	return true
}

func checkQueue(ctx *cli.Context) error {
	status, err := ctx.Sync.Status()
	if err != nil {
		return err
	}
	if n := len(status.Failed); n > 0 {
		return fmt.Errorf("%d queued changes exhausted their retries - run 'quitlog sync retry'", n)
	}
	if status.Pending > 0 && !status.Remote {
		return fmt.Errorf("%d changes are queued but no remote is configured", status.Pending)
	}
	return nil
}

func checkRemote(ctx *cli.Context) error {
	if ctx.Remote == nil {
		return fmt.Errorf("no remote configured, running in local-only mode")
	}
	pingCtx, cancel := context.WithTimeout(ctx.Context(), constants.DefaultRemoteTimeout)
	defer cancel()
	if err := ctx.Remote.Ping(pingCtx); err != nil {
		return fmt.Errorf("remote unreachable (source: %s): %w", ctx.RemoteSource, err)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'quitlog backup create'")
	}
	return nil
}

func checkClock(*cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

// checkTimezone matters because local dates are fixed from it at write time.
func checkTimezone(ctx *cli.Context) error {
	settings, found, err := ctx.Store.GetSettings(ctx.Owner)
	if err != nil || !found {
		return nil
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("configured timezone %q cannot be loaded", settings.Timezone)
	}
	return nil
}
