package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/quitlog/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testEvent(id, owner string, kind models.EventKind, date string) models.Event {
	return models.Event{
		ID:         id,
		Owner:      owner,
		Kind:       kind,
		OccurredAt: 1704103200000,
		LocalDate:  date,
		Tags:       []models.SituationTag{models.TagCoffee},
		CreatedAt:  1704103200000,
		UpdatedAt:  1704103200000,
	}
}

func TestLoad_Uninitialized(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.db"))
	if err := store.Load(); err == nil {
		t.Fatal("Load() on a missing database should fail")
	}
}

func TestLoad_AfterInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store := NewStore(path)
	if err := store.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	store.Close()

	reopened := NewStore(path)
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load() after Init() failed: %v", err)
	}
	defer reopened.Close()

	if reopened.GetConfigPath() != path {
		t.Errorf("GetConfigPath() = %q, want %q", reopened.GetConfigPath(), path)
	}
}

func TestTableExists(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"events", "summaries", "settings", "sync_queue", "EVENTS"} {
		exists, err := store.tableExists(table)
		if err != nil {
			t.Fatalf("tableExists(%q) error: %v", table, err)
		}
		if !exists {
			t.Errorf("tableExists(%q) = false, want true", table)
		}
	}

	exists, err := store.tableExists("nonexistent_table")
	if err != nil {
		t.Fatalf("tableExists() error: %v", err)
	}
	if exists {
		t.Error("tableExists() = true, want false for nonexistent table")
	}
}

func TestPutEvent_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	e := testEvent("e1", "u1", models.EventOccurred, "2024-01-01")

	for i := 0; i < 2; i++ {
		if err := store.Put(e); err != nil {
			t.Fatalf("Put() #%d failed: %v", i+1, err)
		}
	}

	events, err := store.EventsByOwner("u1")
	if err != nil {
		t.Fatalf("EventsByOwner() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after double put, got %d", len(events))
	}

	got, found, err := store.GetEvent("e1")
	if err != nil || !found {
		t.Fatalf("GetEvent() = found %v, err %v", found, err)
	}
	if got.Kind != models.EventOccurred || got.LocalDate != "2024-01-01" || !got.HasTag(models.TagCoffee) {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestPutEvent_UpdatesTagsOnly(t *testing.T) {
	store := setupTestStore(t)
	e := testEvent("e1", "u1", models.EventUrge, "2024-01-01")
	if err := store.Put(e); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	e.Tags = []models.SituationTag{models.TagStress, models.TagWork}
	e.LocalDate = "2024-02-02"
	e.UpdatedAt++
	if err := store.Put(&e); err != nil {
		t.Fatalf("Put() update failed: %v", err)
	}

	got, _, err := store.GetEvent("e1")
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if len(got.Tags) != 2 || !got.HasTag(models.TagStress) {
		t.Errorf("tags not updated: %v", got.Tags)
	}
	if got.LocalDate != "2024-01-01" {
		t.Errorf("local date changed to %s, want it fixed at creation", got.LocalDate)
	}
}

func TestPutEvent_OwnerImmutable(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Put(testEvent("e1", "u1", models.EventOccurred, "2024-01-01")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := store.Put(testEvent("e1", "u2", models.EventOccurred, "2024-01-01")); err == nil {
		t.Error("expected an error when changing an event's owner")
	}
}

func TestPutEvent_KindImmutable(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Put(testEvent("e1", "u1", models.EventUrge, "2024-01-01")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	changed := testEvent("e1", "u1", models.EventResisted, "2024-01-01")
	changed.Tags = []models.SituationTag{models.TagWork}
	err := store.Put(changed)
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("Put() error = %v, want ErrKindMismatch", err)
	}

	got, _, err := store.GetEvent("e1")
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if got.Kind != models.EventUrge {
		t.Errorf("kind = %s, want %s", got.Kind, models.EventUrge)
	}
	if got.HasTag(models.TagWork) {
		t.Errorf("tags changed by a rejected put: %v", got.Tags)
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	store := setupTestStore(t)
	_, found, err := store.GetEvent("nope")
	if err != nil {
		t.Fatalf("GetEvent() on missing id returned error: %v", err)
	}
	if found {
		t.Error("GetEvent() found = true for missing id")
	}
}

func TestEventQueries(t *testing.T) {
	store := setupTestStore(t)
	fixtures := []models.Event{
		testEvent("e1", "u1", models.EventOccurred, "2024-01-01"),
		testEvent("e2", "u1", models.EventResisted, "2024-01-01"),
		testEvent("e3", "u1", models.EventOccurred, "2024-01-02"),
		testEvent("e4", "u2", models.EventOccurred, "2024-01-01"),
	}
	for _, e := range fixtures {
		if err := store.Put(e); err != nil {
			t.Fatalf("Put(%s) failed: %v", e.ID, err)
		}
	}

	tests := []struct {
		name  string
		query func() ([]models.Event, error)
		want  int
	}{
		{"by owner", func() ([]models.Event, error) { return store.EventsByOwner("u1") }, 3},
		{"by owner and date", func() ([]models.Event, error) { return store.EventsByOwnerAndDate("u1", "2024-01-01") }, 2},
		{"by owner and kind", func() ([]models.Event, error) { return store.EventsByOwnerAndKind("u1", models.EventOccurred) }, 2},
		{"unknown owner", func() ([]models.Event, error) { return store.EventsByOwner("u9") }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query()
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}

	dates, err := store.EventDates("u1")
	if err != nil {
		t.Fatalf("EventDates() failed: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2024-01-01" || dates[1] != "2024-01-02" {
		t.Errorf("EventDates() = %v", dates)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Put(testEvent("e1", "u1", models.EventOccurred, "2024-01-01")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Delete(models.StoreEvents, "e1"); err != nil {
			t.Fatalf("Delete() #%d failed: %v", i+1, err)
		}
	}
	if err := store.Delete(models.StoreSummaries, "never-existed"); err != nil {
		t.Errorf("Delete() of missing summary failed: %v", err)
	}
	if _, found, _ := store.GetEvent("e1"); found {
		t.Error("event still present after delete")
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	sum := models.DailySummary{
		ID:           models.SummaryID("u1", "2024-01-01"),
		Owner:        "u1",
		Date:         "2024-01-01",
		Smoked:       2,
		Resisted:     1,
		MoneySaved:   30,
		MinutesSaved: 7,
		TopTags:      []models.SituationTag{models.TagCoffee},
		GoalMet:      true,
	}
	if err := store.Put(sum); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	sum.Smoked = 3
	sum.GoalMet = false
	if err := store.Put(sum); err != nil {
		t.Fatalf("Put() replace failed: %v", err)
	}

	got, found, err := store.GetSummary(sum.ID)
	if err != nil || !found {
		t.Fatalf("GetSummary() = found %v, err %v", found, err)
	}
	if got.Smoked != 3 || got.GoalMet || got.MoneySaved != 30 || len(got.TopTags) != 1 {
		t.Errorf("unexpected summary: %+v", got)
	}

	all, err := store.SummariesByOwner("u1")
	if err != nil {
		t.Fatalf("SummariesByOwner() failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 summary, got %d", len(all))
	}
}

func TestSettings(t *testing.T) {
	store := setupTestStore(t)

	_, found, err := store.GetSettings("u1")
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	if found {
		t.Fatal("settings found before initialization")
	}

	settings := models.DefaultSettings("u1")
	settings.PricePerPack = 12.5
	settings.DailyTarget = 4
	settings.QuitDate = "2024-03-01"
	settings.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if err := store.Put(settings); err != nil {
		t.Fatalf("Put(settings) failed: %v", err)
	}

	got, found, err := store.GetSettings("u1")
	if err != nil || !found {
		t.Fatalf("GetSettings() = found %v, err %v", found, err)
	}
	if got != settings {
		t.Errorf("GetSettings() = %+v, want %+v", got, settings)
	}

	if err := store.Delete(models.StoreSettings, "u1"); err != nil {
		t.Fatalf("Delete(settings) failed: %v", err)
	}
	if _, found, _ := store.GetSettings("u1"); found {
		t.Error("settings still present after delete")
	}
}

func TestSettings_Invalid(t *testing.T) {
	store := setupTestStore(t)
	settings := models.DefaultSettings("u1")
	settings.PackSize = 0
	if err := store.Put(settings); err == nil {
		t.Error("expected validation error for zero pack size")
	}
}

func TestCounts(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Put(testEvent("e1", "u1", models.EventOccurred, "2024-01-01")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := store.Put(models.DefaultSettings("u1")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	counts, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if counts["events"] != 1 || counts["settings"] != 1 || counts["sync_queue"] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestSchemaVersions(t *testing.T) {
	store := setupTestStore(t)

	current, latest, err := store.SchemaVersions()
	if err != nil {
		t.Fatalf("SchemaVersions() error = %v", err)
	}
	if current != latest {
		t.Errorf("current = %d, latest = %d; want equal after Init", current, latest)
	}
	if latest < 2 {
		t.Errorf("latest = %d, want at least 2", latest)
	}
}
