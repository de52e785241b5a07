package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BeginRun records the start of a build and returns its generated ID.
func (s *SQLiteStore) BeginRun(ctx context.Context, root string, artifacts []string) (string, error) {
	names, err := encodeNames(artifacts)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, root, artifacts, started_at) VALUES (?, ?, ?, ?)`,
		id, root, names, s.now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// RecordTask appends one action result to a run.
func (s *SQLiteStore) RecordTask(ctx context.Context, runID string, rec TaskRecord) error {
	recorded := rec.RecordedAt
	if recorded.IsZero() {
		recorded = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_results (run_id, artifact, action, status, output, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Artifact, rec.Action, rec.Status, rec.Output, rec.Error,
		rec.Duration.Milliseconds(), recorded.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task result: %w", err)
	}
	return nil
}

// RecordMissing marks an artifact as missing in a run. Repeats are ignored.
func (s *SQLiteStore) RecordMissing(ctx context.Context, runID, artifact string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO missing_artifacts (run_id, artifact, recorded_at) VALUES (?, ?, ?)`,
		runID, artifact, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert missing artifact: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, success bool, leftOver []string) error {
	left, err := encodeNames(leftOver)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET success = ?, finished = 1, left_over = ?, finished_at = ? WHERE id = ?`,
		boolToInt(success), left, s.now().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads a run with its task results and missing artifacts.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, root, artifacts, left_over, success, finished, started_at, finished_at
		 FROM runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	if run.Tasks, err = s.listTasks(ctx, runID); err != nil {
		return nil, err
	}
	if run.Missing, err = s.listMissing(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit below 1 returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, root, artifacts, left_over, success, finished, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) listTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact, action, status, output, error, duration_ms, recorded_at
		 FROM task_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task results: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var (
			rec        TaskRecord
			durationMS int64
			recordedMS int64
		)
		if err := rows.Scan(&rec.Artifact, &rec.Action, &rec.Status, &rec.Output, &rec.Error, &durationMS, &recordedMS); err != nil {
			return nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.RecordedAt = time.UnixMilli(recordedMS)
		tasks = append(tasks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task results: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) listMissing(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact FROM missing_artifacts WHERE run_id = ? ORDER BY artifact`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing artifacts: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan missing artifact: %w", err)
		}
		missing = append(missing, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missing artifacts: %w", err)
	}
	return missing, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		artifacts  string
		leftOver   string
		success    int
		finished   int
		startedMS  int64
		finishedMS sql.NullInt64
	)

	err := row.Scan(&run.ID, &run.Root, &artifacts, &leftOver, &success, &finished, &startedMS, &finishedMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if run.Artifacts, err = decodeNames(artifacts); err != nil {
		return nil, err
	}
	if run.LeftOver, err = decodeNames(leftOver); err != nil {
		return nil, err
	}
	run.Success = success != 0
	run.Finished = finished != 0
	run.StartedAt = time.UnixMilli(startedMS)
	if finishedMS.Valid {
		run.FinishedAt = time.UnixMilli(finishedMS.Int64)
	}
	return &run, nil
}

// Artifact names may contain any character, so lists are stored as JSON.
func encodeNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact names: %w", err)
	}
	return string(data), nil
}

func decodeNames(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("failed to decode artifact names: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
