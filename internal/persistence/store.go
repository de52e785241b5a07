package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// TaskRecord is one stored action result.
type TaskRecord struct {
	Artifact   string
	Action     string
	Status     int
	Output     []byte
	Error      string
	Duration   time.Duration
	RecordedAt time.Time
}

// Run is one stored build run.
type Run struct {
	ID         string
	Root       string
	Artifacts  []string
	LeftOver   []string
	Success    bool
	Finished   bool
	StartedAt  time.Time
	FinishedAt time.Time

	// Populated by GetRun only
	Tasks   []TaskRecord
	Missing []string
}

// Store persists the history of build runs. It is an audit log: the
// scheduler never reads it back.
type Store interface {
	BeginRun(ctx context.Context, root string, artifacts []string) (string, error)
	RecordTask(ctx context.Context, runID string, rec TaskRecord) error
	RecordMissing(ctx context.Context, runID, artifact string) error
	FinishRun(ctx context.Context, runID string, success bool, leftOver []string) error

	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) a history database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates a private in-memory store for tests.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	// A unique name keeps concurrently open stores apart while still letting
	// the pool's connections share one database.
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps the foreign_keys pragma in effect for every query.
	db.SetMaxOpenConns(1)

	// modernc.org/sqlite ignores _foreign_keys in the connection string
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
