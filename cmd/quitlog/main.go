package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/quitlog/internal/cli"
	"github.com/julianstephens/quitlog/internal/cli/backups"
	"github.com/julianstephens/quitlog/internal/cli/events"
	"github.com/julianstephens/quitlog/internal/cli/settings"
	"github.com/julianstephens/quitlog/internal/cli/syncing"
	"github.com/julianstephens/quitlog/internal/cli/system"
	"github.com/julianstephens/quitlog/internal/connectivity"
	"github.com/julianstephens/quitlog/internal/constants"
	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/keyring"
	"github.com/julianstephens/quitlog/internal/logger"
	"github.com/julianstephens/quitlog/internal/remote"
	"github.com/julianstephens/quitlog/internal/remote/memory"
	"github.com/julianstephens/quitlog/internal/remote/postgres"
	"github.com/julianstephens/quitlog/internal/storage/sqlite"
	"github.com/julianstephens/quitlog/internal/syncer"
	"github.com/julianstephens/quitlog/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

type cliArgs struct {
	Version kong.VersionFlag
	Config  string `help:"Local database path." type:"path" default:"${config}" env:"QUITLOG_DB"`
	Remote  string `help:"PostgreSQL connection string for the remote mirror. Credentials must NOT be embedded; use .pgpass or the OS keyring instead." env:"QUITLOG_REMOTE"`
	Owner   string `help:"Owner id that records are written for." default:"${owner}" env:"QUITLOG_OWNER"`
	Debug   bool   `help:"Log to stderr at debug level." env:"QUITLOG_DEBUG"`
	Offline bool   `help:"Skip remote writes for this invocation; changes are queued."`
	Otel    string `name:"otel-endpoint" help:"OTLP gRPC collector for sync metrics. Export is off when empty." env:"QUITLOG_OTEL_ENDPOINT"`

	Init   system.InitCmd   `cmd:"" help:"Initialize quitlog storage."`
	Doctor system.DoctorCmd `cmd:"" help:"Run health checks and diagnostics."`

	Log   events.LogCmd `cmd:"" help:"Record that you smoked, had an urge, or resisted one."`
	Day   events.DayCmd `cmd:"" help:"Show the summary for a day."`
	Event struct {
		List   events.ListCmd   `cmd:"" help:"List recorded events." default:"1"`
		Tags   events.TagsCmd   `cmd:"" help:"Replace the situation tags on an event."`
		Delete events.DeleteCmd `cmd:"" help:"Delete an event."`
	} `cmd:"" help:"Manage recorded events."`
	Summary struct {
		Rebuild events.RebuildCmd `cmd:"" help:"Recompute every daily summary from the event log."`
	} `cmd:"" help:"Manage daily summaries."`
	Settings settings.SettingsCmd `cmd:"" help:"Manage application settings."`

	Sync struct {
		Status  syncing.StatusCmd  `cmd:"" help:"Show sync state." default:"1"`
		Drain   syncing.DrainCmd   `cmd:"" help:"Replay queued changes against the remote."`
		Retry   syncing.RetryCmd   `cmd:"" help:"Give changes that exhausted their retries another round."`
		Hydrate syncing.HydrateCmd `cmd:"" help:"Pull records that exist remotely but not locally."`
		Watch   syncing.WatchCmd   `cmd:"" help:"Stay running and drain whenever the remote is reachable."`
	} `cmd:"" help:"Inspect and drive remote mirroring."`

	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store the remote connection string in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string (password masked)."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check OS keyring availability."`
	} `cmd:"" help:"Manage the remote connection string in the OS keyring."`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the exit code. Every resource it
// opens is released before it returns.
func run(args []string, stdout, stderr io.Writer) int {
	var opts cliArgs
	parser, err := kong.New(&opts,
		kong.Name(constants.AppName),
		kong.Description("Offline-first smoking cessation tracker"),
		kong.Writers(stdout, stderr),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": constants.Version,
			"config":  constants.DefaultConfigPath,
			"owner":   defaultOwner(),
		},
	)
	if err != nil {
		return apperrors.Report(stderr, err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			_ = parseErr.Context.PrintUsage(true)
		}
		fmt.Fprintln(stderr, apperrors.Format(err))
		return 2
	}

	if err := logger.Init(logger.Config{Debug: opts.Debug, ConfigDir: filepath.Dir(opts.Config)}); err != nil {
		fmt.Fprintf(stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	if strings.TrimSpace(opts.Owner) == "" {
		return apperrors.Report(stderr, errors.New("owner cannot be empty; pass --owner or set QUITLOG_OWNER"))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(runCtx, telemetry.ConfigFromEnv(opts.Otel))
	if err != nil {
		logger.Warn("Failed to initialize metric export", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(flushCtx); err != nil {
			logger.Warn("Failed to flush metrics", "error", err)
		}
	}()

	connStr, source := keyring.ResolveRemote(opts.Remote)
	rs, err := openRemote(connStr, source)
	if err != nil {
		return apperrors.Report(stderr, err)
	}
	if rs != nil {
		defer rs.Close()
	}

	store := sqlite.NewStore(opts.Config)
	defer store.Close()

	monitor := connectivity.NewMonitor(false)
	if rs != nil && !opts.Offline {
		monitor.Check(runCtx, rs.Ping, constants.DefaultRemoteTimeout)
	}
	coordinator := syncer.New(store, store, rs, monitor, syncer.WithMeterProvider(tel.MeterProvider()))

	appCtx := &cli.Context{
		Ctx:          runCtx,
		Store:        store,
		Queue:        store,
		Remote:       rs,
		Monitor:      monitor,
		Sync:         coordinator,
		Owner:        opts.Owner,
		RemoteSource: source,
		Out:          stdout,
	}

	// Init creates the database itself; every other command needs it loaded.
	if ctx.Selected() != nil && ctx.Selected().Name != "init" {
		if err := store.Load(); err != nil {
			return apperrors.Report(stderr, err)
		}
	}

	err = ctx.Run(appCtx)
	coordinator.Wait()
	return apperrors.Report(stderr, err)
}

// openRemote builds the remote mirror for a resolved connection string. An
// empty string means local-only mode.
func openRemote(connStr string, source keyring.Source) (remote.Store, error) {
	switch {
	case connStr == "":
		return nil, nil
	case strings.HasPrefix(connStr, constants.RemoteMemoryScheme):
		return memory.New(), nil
	case postgres.LooksLikeConnString(connStr):
		if _, err := postgres.ValidateConnString(connStr); err != nil {
			// The keyring is encrypted storage; embedded credentials are only
			// rejected when they arrive through a flag or the environment.
			if !errors.Is(err, postgres.ErrEmbeddedCredentials) || source == keyring.SourceExplicit {
				return nil, fmt.Errorf("invalid remote connection string: %w", err)
			}
		}
		return postgres.New(connStr), nil
	default:
		return nil, fmt.Errorf("unsupported remote %q (expected a PostgreSQL connection string)", postgres.MaskPassword(connStr))
	}
}

func defaultOwner() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "default"
}
