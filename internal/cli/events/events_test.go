package events

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianstephens/quitlog/internal/cli"
	"github.com/julianstephens/quitlog/internal/connectivity"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/remote/memory"
	"github.com/julianstephens/quitlog/internal/storage/sqlite"
	"github.com/julianstephens/quitlog/internal/syncer"
)

const testOwner = "u1"

func setupTestDB(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})

	settings := models.DefaultSettings(testOwner)
	settings.Timezone = "UTC"
	if err := store.Put(settings); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}

	rs := memory.New()
	monitor := connectivity.NewMonitor(true)
	var out bytes.Buffer
	ctx := &cli.Context{
		Store:   store,
		Queue:   store,
		Remote:  rs,
		Monitor: monitor,
		Sync:    syncer.New(store, store, rs, monitor),
		Owner:   testOwner,
		Out:     &out,
	}
	return ctx, &out
}

func TestLogCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	cmd := &LogCmd{Kind: "smoked", Tag: []string{"coffee,stress"}, At: "2024-01-01T10:00:00Z"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	events, err := ctx.Store.EventsByOwnerAndDate(testOwner, "2024-01-01")
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != models.EventOccurred {
		t.Errorf("expected kind occurred, got %s", events[0].Kind)
	}
	if len(events[0].Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", events[0].Tags)
	}
	if !strings.Contains(out.String(), "Recorded occurred at 10:00 on 2024-01-01") {
		t.Errorf("unexpected output: %q", out.String())
	}
	if !strings.Contains(out.String(), "all changes synced") {
		t.Errorf("expected sync line in output: %q", out.String())
	}
}

func TestLogCmd_InvalidKind(t *testing.T) {
	ctx, _ := setupTestDB(t)

	if err := (&LogCmd{Kind: "vaped"}).Run(ctx); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestLogCmd_InvalidTag(t *testing.T) {
	ctx, _ := setupTestDB(t)

	if err := (&LogCmd{Kind: "urge", Tag: []string{"weather"}}).Run(ctx); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestTagsAndDeleteCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	if err := (&LogCmd{Kind: "urge", At: "2024-01-01T08:00:00Z"}).Run(ctx); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	events, err := ctx.Store.EventsByOwner(testOwner)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one event, got %d (%v)", len(events), err)
	}
	id := events[0].ID

	if err := (&TagsCmd{ID: id, Tags: []string{"work"}}).Run(ctx); err != nil {
		t.Fatalf("tags failed: %v", err)
	}
	updated, _, err := ctx.Store.GetEvent(id)
	if err != nil {
		t.Fatalf("failed to get event: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != models.TagWork {
		t.Errorf("expected [work], got %v", updated.Tags)
	}

	out.Reset()
	if err := (&DeleteCmd{ID: id}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := ctx.Store.GetEvent(id); found {
		t.Error("event should be gone after delete")
	}

	if err := (&DeleteCmd{ID: id}).Run(ctx); err == nil {
		t.Error("expected error deleting an unknown event")
	}
}

func TestListCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	for _, cmd := range []*LogCmd{
		{Kind: "smoked", At: "2024-01-01T09:00:00Z"},
		{Kind: "resisted", At: "2024-01-01T10:00:00Z"},
		{Kind: "smoked", At: "2024-01-02T09:00:00Z"},
	} {
		if err := cmd.Run(ctx); err != nil {
			t.Fatalf("log failed: %v", err)
		}
	}

	out.Reset()
	if err := (&ListCmd{Date: "2024-01-01", Kind: "smoked"}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 row, got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "2024-01-01") || !strings.Contains(lines[1], "occurred") {
		t.Errorf("unexpected row: %q", lines[1])
	}

	out.Reset()
	if err := (&ListCmd{Date: "2023-12-31"}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No events found.") {
		t.Errorf("expected empty message, got %q", out.String())
	}
}

func TestDayCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	if err := (&LogCmd{Kind: "resisted", Tag: []string{"coffee"}, At: "2024-01-01T09:00:00Z"}).Run(ctx); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	out.Reset()
	if err := (&DayCmd{Date: "2024-01-01"}).Run(ctx); err != nil {
		t.Fatalf("day failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Resisted:      1", "Minutes saved: 7", "Top tags:      coffee"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}

	out.Reset()
	if err := (&DayCmd{Date: "2023-06-01"}).Run(ctx); err != nil {
		t.Fatalf("day failed: %v", err)
	}
	if !strings.Contains(out.String(), "No activity recorded") {
		t.Errorf("unexpected output: %q", out.String())
	}

	if err := (&DayCmd{Date: "01/06/2023"}).Run(ctx); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestRebuildCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	if err := (&LogCmd{Kind: "smoked", At: "2024-01-01T09:00:00Z"}).Run(ctx); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := ctx.Store.Delete(models.StoreSummaries, models.SummaryID(testOwner, "2024-01-01")); err != nil {
		t.Fatalf("failed to drop summary: %v", err)
	}

	out.Reset()
	if err := (&RebuildCmd{}).Run(ctx); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if _, found, _ := ctx.Store.GetSummary(models.SummaryID(testOwner, "2024-01-01")); !found {
		t.Error("summary should exist after rebuild")
	}
	if !strings.Contains(out.String(), "Rebuilt 1 daily summaries") {
		t.Errorf("unexpected output: %q", out.String())
	}
}
