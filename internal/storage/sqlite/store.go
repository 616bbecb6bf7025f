package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/quitlog/internal/constants"
	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/logger"
	"github.com/julianstephens/quitlog/internal/migration"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/migrations"
)

// Store is the SQLite-backed local store. It implements both
// storage.Provider and storage.Queue over a single database file.
type Store struct {
	path       string
	db         *sql.DB
	now        func() time.Time
	maxRetries int
}

func NewStore(path string) *Store {
	return &Store{
		path:       path,
		now:        time.Now,
		maxRetries: constants.MaxRetries,
	}
}

func (s *Store) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return apperrors.Local("init", fmt.Errorf("failed to create config directory: %w", err))
	}

	if err := s.open(); err != nil {
		return err
	}

	if err := s.runMigrations(); err != nil {
		return apperrors.Local("init", fmt.Errorf("failed to run migrations: %w", err))
	}

	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return apperrors.Local("load", fmt.Errorf("storage not initialized, run 'quitlog init' first"))
	}

	if err := s.open(); err != nil {
		return err
	}

	if err := s.validateSchemaVersion(); err != nil {
		return apperrors.Local("load", err)
	}

	return nil
}

func (s *Store) open() error {
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return apperrors.Local("open", fmt.Errorf("failed to open database: %w", err))
	}
	// One connection serializes writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// tableExists checks if a table exists in the SQLite database.
// The check is case-insensitive to match SQLite's behavior.
func (s *Store) tableExists(tableName string) (bool, error) {
	var count int
	row := s.db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name COLLATE NOCASE = ?", tableName)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) runMigrations() error {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}

	runner := migration.NewRunner(s.db, subFS, migration.DriverSQLite)
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg, "db", s.path)
	})
	return err
}

func (s *Store) validateSchemaVersion() error {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}

	runner := migration.NewRunner(s.db, subFS, migration.DriverSQLite)
	return runner.ValidateVersion()
}

// SchemaVersions reports the applied and the newest embedded schema version.
func (s *Store) SchemaVersions() (current, latest int, err error) {
	if s.db == nil {
		return 0, 0, apperrors.Local("schema", fmt.Errorf("database not open"))
	}
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return 0, 0, err
	}
	runner := migration.NewRunner(s.db, subFS, migration.DriverSQLite)
	if current, err = runner.GetCurrentVersion(); err != nil {
		return 0, 0, err
	}
	if latest, err = runner.GetLatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying database connection, or nil before Init/Load.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Put upserts any supported record.
func (s *Store) Put(rec models.Record) error {
	switch r := rec.(type) {
	case models.Event:
		return s.putEvent(r)
	case *models.Event:
		return s.putEvent(*r)
	case models.DailySummary:
		return s.putSummary(r)
	case *models.DailySummary:
		return s.putSummary(*r)
	case models.Settings:
		return s.putSettings(r)
	case *models.Settings:
		return s.putSettings(*r)
	default:
		return apperrors.Local("put", fmt.Errorf("unsupported record type %T", rec))
	}
}

// Delete removes a record by store and id. Missing ids are not an error.
func (s *Store) Delete(store models.StoreName, id string) error {
	var query string
	switch store {
	case models.StoreEvents:
		query = "DELETE FROM events WHERE id = ?"
	case models.StoreSummaries:
		query = "DELETE FROM summaries WHERE id = ?"
	case models.StoreSettings:
		query = "DELETE FROM settings WHERE owner = ?"
	default:
		return apperrors.Local("delete", fmt.Errorf("unknown store %q", store))
	}
	if _, err := s.db.Exec(query, id); err != nil {
		return apperrors.Local("delete "+string(store), err)
	}
	return nil
}

var countQueries = map[string]string{
	"events":     "SELECT COUNT(*) FROM events",
	"summaries":  "SELECT COUNT(*) FROM summaries",
	"settings":   "SELECT COUNT(DISTINCT owner) FROM settings",
	"sync_queue": "SELECT COUNT(*) FROM sync_queue",
}

// Counts returns the number of records held in each local table.
func (s *Store) Counts() (map[string]int, error) {
	counts := make(map[string]int, len(countQueries))
	for table, query := range countQueries {
		exists, err := s.tableExists(table)
		if err != nil {
			return nil, apperrors.Local("counts", err)
		}
		if !exists {
			counts[table] = 0
			continue
		}
		var n int
		if err := s.db.QueryRow(query).Scan(&n); err != nil {
			return nil, apperrors.Local("counts", err)
		}
		counts[table] = n
	}
	return counts, nil
}
