package syncing

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/quitlog/internal/cli"
	"github.com/julianstephens/quitlog/internal/connectivity"
	"github.com/julianstephens/quitlog/internal/constants"
	"github.com/julianstephens/quitlog/internal/logger"
	"github.com/julianstephens/quitlog/internal/syncer"
)

var errNoRemote = errors.New("no remote configured. Pass --remote or run 'quitlog keyring set'")

type StatusCmd struct {
	Verbose bool `short:"v" help:"List every queued change."`
}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	status, err := ctx.Sync.Status()
	if err != nil {
		return err
	}
	ctx.Println(cli.SyncLine(status))
	if status.Remote {
		ctx.Printf("Remote source: %s\n", ctx.RemoteSource)
	}

	if !c.Verbose {
		return nil
	}
	items, err := ctx.Queue.ListPending()
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	ctx.Println()
	ctx.Println(cli.HeaderStyle.Render(fmt.Sprintf("%-19s  %-9s  %-6s  %-24s  %-7s  %s", "QUEUED", "STORE", "OP", "TARGET", "RETRIES", "LAST ERROR")))
	for _, item := range items {
		retries := fmt.Sprintf("%d/%d", item.RetryCount, constants.MaxRetries)
		if item.Exhausted(constants.MaxRetries) {
			retries = cli.DangerStyle.Render(retries)
		}
		ctx.Printf("%-19s  %-9s  %-6s  %-24s  %-7s  %s\n",
			time.UnixMilli(item.EnqueuedAt).Format("2006-01-02 15:04:05"),
			item.Store, item.Operation, item.TargetID, retries, item.LastError)
	}
	return nil
}

type DrainCmd struct{}

func (c *DrainCmd) Run(ctx *cli.Context) error {
	if ctx.Remote == nil {
		return errNoRemote
	}
	report, err := ctx.Sync.Drain(ctx.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrOffline) {
			return errors.New("remote is unreachable; changes stay queued")
		}
		return fmt.Errorf("drain failed: %w", err)
	}
	printReport(ctx, report)
	ctx.ReportWrite()
	return nil
}

func printReport(ctx *cli.Context, r syncer.DrainReport) {
	ctx.Printf("✓ Replayed %d", r.Replayed)
	if r.Deduplicated > 0 {
		ctx.Printf(", collapsed %d superseded", r.Deduplicated)
	}
	if r.Failed > 0 {
		ctx.Printf(", %d failed", r.Failed)
	}
	if r.Exhausted > 0 {
		ctx.Printf(", %s", cli.DangerStyle.Render(fmt.Sprintf("%d gave up", r.Exhausted)))
	}
	if r.Skipped > 0 {
		ctx.Printf(", %d skipped (retry with 'quitlog sync retry')", r.Skipped)
	}
	ctx.Println()
	if r.Interrupted {
		ctx.Println(cli.WarningStyle.Render("Connection lost during drain; remaining changes stay queued."))
	}
}

type RetryCmd struct {
	Drain bool `help:"Drain immediately after resetting."`
}

func (c *RetryCmd) Run(ctx *cli.Context) error {
	n, err := ctx.Sync.RetryFailed()
	if err != nil {
		return fmt.Errorf("failed to reset queue items: %w", err)
	}
	ctx.Printf("✓ Reset %d failed change(s)\n", n)
	if c.Drain && n > 0 {
		return (&DrainCmd{}).Run(ctx)
	}
	return nil
}

type HydrateCmd struct{}

func (c *HydrateCmd) Run(ctx *cli.Context) error {
	if ctx.Remote == nil {
		return errNoRemote
	}
	report, err := ctx.Sync.Hydrate(ctx.Context(), ctx.Owner)
	if err != nil {
		if errors.Is(err, syncer.ErrOffline) {
			return errors.New("remote is unreachable")
		}
		return fmt.Errorf("hydrate failed: %w", err)
	}
	ctx.Printf("✓ Pulled %d event(s), skipped %d", report.Events, report.Skipped)
	if report.Settings {
		ctx.Printf(", restored settings")
	}
	ctx.Printf(", re-projected %d day(s)\n", report.SummariesDays)
	return nil
}

// WatchCmd keeps probing the remote and drains whenever it comes back.
type WatchCmd struct {
	Probe    time.Duration `help:"Interval between connectivity probes." default:"15s"`
	Interval time.Duration `help:"Interval between periodic drains." default:"5m"`
}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	if ctx.Remote == nil {
		return errNoRemote
	}
	if c.Probe <= 0 || c.Interval <= 0 {
		return errors.New("intervals must be positive")
	}

	watchCtx, stop := signal.NotifyContext(ctx.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	detach := ctx.Sync.Attach(watchCtx)
	defer detach()
	unsubscribe := ctx.Monitor.Subscribe(func(t connectivity.Transition) {
		logger.Info("Connectivity changed", "online", t.Online)
	})
	defer unsubscribe()

	// Queued changes from earlier offline sessions should not wait for a transition.
	if ctx.Monitor.IsOnline() {
		ctx.Sync.TriggerDrain(watchCtx)
	}

	ctx.Println("Watching connectivity. Press Ctrl+C to stop.")
	go ctx.Sync.RunPeriodic(watchCtx, c.Interval)
	ctx.Monitor.Run(watchCtx, ctx.Remote.Ping, c.Probe, constants.DefaultRemoteTimeout)

	ctx.Sync.Wait()
	ctx.Println("Stopped.")
	return nil
}
