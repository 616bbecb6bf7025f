package backup

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "quitlog.db")

	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	defer store.Close()

	event := models.Event{
		ID: "e1", Owner: "u1", Kind: models.EventUrge,
		OccurredAt: 1704103200000, LocalDate: "2024-01-01",
		CreatedAt: 1704103200000, UpdatedAt: 1704103200000,
	}
	if err := store.Put(event); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return dbPath
}

func stepClock(mgr *Manager, start time.Time, step time.Duration) {
	current := start
	mgr.now = func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func countEvents(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	return n
}

func TestCreate(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)

	path, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if filepath.Dir(path) != mgr.Dir() {
		t.Errorf("backup written to %s, want dir %s", path, mgr.Dir())
	}
	if err := Verify(path); err != nil {
		t.Errorf("Verify() on fresh backup failed: %v", err)
	}
	if n := countEvents(t, path); n != 1 {
		t.Errorf("backup has %d events, want 1", n)
	}
}

func TestCreate_NoDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(); err == nil {
		t.Error("Create() without a database should fail")
	}
}

func TestCreate_UniqueNames(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	fixed := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	mgr.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		path, err := mgr.Create()
		if err != nil {
			t.Fatalf("Create() #%d failed: %v", i+1, err)
		}
		if seen[path] {
			t.Fatalf("duplicate backup path %s", path)
		}
		seen[path] = true
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(backups) != 3 {
		t.Errorf("List() returned %d backups, want 3", len(backups))
	}
}

func TestRotation(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.keep = 3
	stepClock(mgr, time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local), time.Hour)

	var paths []string
	for i := 0; i < 5; i++ {
		path, err := mgr.Create()
		if err != nil {
			t.Fatalf("Create() #%d failed: %v", i+1, err)
		}
		paths = append(paths, path)
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("expected 3 backups after rotation, got %d", len(backups))
	}
	if backups[0].Path != paths[4] {
		t.Errorf("newest backup = %s, want %s", backups[0].Path, paths[4])
	}
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Error("oldest backup should have been removed")
	}
}

func TestList_IgnoresForeignFiles(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	if _, err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	for _, name := range []string{"notes.txt", "quitlog-garbage.db", "quitlog-20240101-090000-x.db"} {
		if err := os.WriteFile(filepath.Join(mgr.Dir(), name), []byte("x"), 0600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("List() returned %d backups, want 1", len(backups))
	}
}

func TestList_MissingDir(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "quitlog.db"))
	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("List() = %v, want empty", backups)
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"quitlog-20240101-090000.db", true},
		{"quitlog-20240101-090000-2.db", true},
		{"quitlog-20240101.db", false},
		{"otherapp-20240101-090000.db", false},
		{"quitlog-20240101-090000.sqlite", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseName(tt.name); ok != tt.ok {
				t.Errorf("parseName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			}
		})
	}
}

func TestRestore(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	stepClock(mgr, time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local), time.Minute)

	backupPath, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	store := sqlite.NewStore(dbPath)
	if err := store.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := store.Delete(models.StoreEvents, "e1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	store.Close()
	if n := countEvents(t, dbPath); n != 0 {
		t.Fatalf("expected 0 events before restore, got %d", n)
	}

	previous, err := mgr.Restore(backupPath)
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if previous == "" {
		t.Error("Restore() should snapshot the current database first")
	}
	if n := countEvents(t, dbPath); n != 1 {
		t.Errorf("restored database has %d events, want 1", n)
	}
	if n := countEvents(t, previous); n != 0 {
		t.Errorf("pre-restore snapshot has %d events, want 0", n)
	}
}

func TestRestore_RejectsInvalidBackup(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)

	bogus := filepath.Join(t.TempDir(), "bogus.db")
	if err := os.WriteFile(bogus, []byte("not a database"), 0600); err != nil {
		t.Fatalf("failed to write bogus file: %v", err)
	}
	if _, err := mgr.Restore(bogus); err == nil {
		t.Error("Restore() of a corrupt file should fail")
	}

	if _, err := mgr.Restore(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("Restore() of a missing file should fail")
	}

	if n := countEvents(t, dbPath); n != 1 {
		t.Errorf("database changed after failed restore: %d events", n)
	}
}

func TestVerify_ForeignDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE tasks (id TEXT)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	db.Close()

	if err := Verify(path); err == nil {
		t.Error("Verify() should reject a database without quitlog tables")
	}
}
