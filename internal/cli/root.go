package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/julianstephens/quitlog/internal/backup"
	"github.com/julianstephens/quitlog/internal/connectivity"
	"github.com/julianstephens/quitlog/internal/keyring"
	"github.com/julianstephens/quitlog/internal/logger"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/remote"
	"github.com/julianstephens/quitlog/internal/storage"
	"github.com/julianstephens/quitlog/internal/syncer"
	"github.com/julianstephens/quitlog/internal/utils"
)

// Context is handed to every command's Run method.
type Context struct {
	Ctx     context.Context
	Store   storage.Provider
	Queue   storage.Queue
	Remote  remote.Store // nil in local-only mode
	Monitor *connectivity.Monitor
	Sync    *syncer.Coordinator

	Owner        string
	RemoteSource keyring.Source
	Out          io.Writer
}

// Context returns the command's cancellation context.
func (c *Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.out(), args...)
}

// PerformAutomaticBackup creates a backup and only logs failures.
func (c *Context) PerformAutomaticBackup() {
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ReportWrite prints the advisory sync line that follows a saved change.
func (c *Context) ReportWrite() {
	status, err := c.Sync.Status()
	if err != nil {
		logger.Warn("Failed to read sync status", "error", err)
		return
	}
	c.Println(SyncLine(status))
}

// SyncLine summarizes sync state in one line.
func SyncLine(status syncer.Status) string {
	var b strings.Builder
	switch {
	case !status.Remote:
		b.WriteString(MutedStyle.Render("local only"))
	case status.Online:
		b.WriteString(OKStyle.Render("online"))
	default:
		b.WriteString(WarningStyle.Render("offline"))
	}
	if status.Pending > 0 {
		fmt.Fprintf(&b, " · %d pending sync", status.Pending)
	} else if status.Remote {
		b.WriteString(" · all changes synced")
	}
	if n := len(status.Failed); n > 0 {
		b.WriteString(" · ")
		b.WriteString(DangerStyle.Render(fmt.Sprintf("%d failed", n)))
	}
	return b.String()
}

// FormatEventTime renders an event timestamp as HH:MM in timezone.
func FormatEventTime(e models.Event, timezone string) string {
	loc, err := utils.LoadLocation(timezone)
	if err != nil {
		loc = time.Local
	}
	return e.Time().In(loc).Format("15:04")
}

// FormatTags joins tags for display, or "-" when there are none.
func FormatTags(tags []models.SituationTag) string {
	if len(tags) == 0 {
		return "-"
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// SplitTags accepts tags given as repeated flags or comma-separated lists.
func SplitTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tags = append(tags, part)
			}
		}
	}
	return tags
}
