package queue

import (
	"database/sql"
	"time"

	"github.com/supercheck/core/internal/xerrors"
)

// Store persists Tasks and repeatable entries.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const taskColumns = `id, kind, source, payload, status, run_at, attempts, max_attempts, backoff_base_ms, error, created_at, started_at, completed_at, updated_at`

func (s *Store) CreateTask(t *Task) error {
	const q = `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(q, t.ID, t.Kind, nullString(t.Source), string(t.Payload), t.Status, t.RunAt,
		t.Attempts, t.MaxAttempts, t.BackoffBaseMS, nullString(t.Error), t.CreatedAt, t.StartedAt, t.CompletedAt, t.UpdatedAt)
	if err != nil {
		return xerrors.Wrap(err, "failed to create task")
	}
	return nil
}

func (s *Store) GetTask(id string) (*Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	t, err := scanTask(s.db.QueryRow(q, id))
	if err != nil {
		return nil, xerrors.Wrapf(err, "failed to get task %s", id)
	}
	return t, nil
}

func (s *Store) UpdateTask(t *Task) error {
	const q = `
		UPDATE tasks SET kind = ?, source = ?, payload = ?, status = ?, run_at = ?, attempts = ?,
			max_attempts = ?, backoff_base_ms = ?, error = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.Exec(q, t.Kind, nullString(t.Source), string(t.Payload), t.Status, t.RunAt, t.Attempts,
		t.MaxAttempts, t.BackoffBaseMS, nullString(t.Error), t.StartedAt, t.CompletedAt, t.UpdatedAt, t.ID)
	if err != nil {
		return xerrors.Wrap(err, "failed to update task")
	}
	return nil
}

// DequeueNext claims the oldest visible queued task for kind, returning nil
// if none is ready. "Visible" means run_at <= now, so delayed tasks stay
// invisible until their delay elapses.
func (s *Store) DequeueNext(kind string, now time.Time) (*Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	const selectQ = `SELECT ` + taskColumns + ` FROM tasks WHERE kind = ? AND status = 'queued' AND run_at <= ? ORDER BY created_at ASC LIMIT 1`
	t, err := scanTask(tx.QueryRow(selectQ, kind, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to select next task")
	}

	t.Start(now)
	const updateQ = `UPDATE tasks SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = 'queued'`
	result, err := tx.Exec(updateQ, t.Status, t.StartedAt, t.UpdatedAt, t.ID)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to claim task")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Another worker claimed it between our select and update.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, xerrors.Wrap(err, "failed to commit dequeue")
	}
	return t, nil
}

func (s *Store) ListByStatus(status Status, limit int) ([]*Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE status = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.Query(q, status, limit)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list tasks by status")
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *Store) CountByStatus(status Status) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE status = ?`, status).Scan(&n)
	return n, xerrors.Wrap(err, "failed to count tasks by status")
}

// ActiveCountForKinds returns the combined count of running tasks across the
// given kinds — backs the Capacity admission controller.
func (s *Store) ActiveCountForKinds(kinds []string) (int, error) {
	if len(kinds) == 0 {
		return 0, nil
	}
	q := `SELECT COUNT(*) FROM tasks WHERE status = 'running' AND kind IN (` + placeholders(len(kinds)) + `)`
	args := make([]interface{}, len(kinds))
	for i, k := range kinds {
		args[i] = k
	}
	var n int
	err := s.db.QueryRow(q, args...).Scan(&n)
	return n, xerrors.Wrap(err, "failed to count active tasks")
}

// FindActiveBySource returns a non-terminal task for (kind, source), or nil.
func (s *Store) FindActiveBySource(kind, source string) (*Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE kind = ? AND source = ? AND status IN ('queued','running','paused') LIMIT 1`
	t, err := scanTask(s.db.QueryRow(q, kind, source))
	if err == sql.ErrNoRows || err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to find active task by source")
	}
	return t, nil
}

// CleanupTerminal deletes terminal tasks older than the given retention,
// enforcing the spec §4.2 retention caps (per-status count ceiling plus
// time-based TTL).
func (s *Store) CleanupTerminal(status Status, olderThan time.Duration, cap int) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	// Delete anything past the TTL first.
	result, err := s.db.Exec(`DELETE FROM tasks WHERE status = ? AND completed_at < ?`, status, cutoff)
	if err != nil {
		return 0, xerrors.Wrap(err, "failed to cleanup terminal tasks by ttl")
	}
	deleted, _ := result.RowsAffected()

	// Then trim anything beyond the count cap, oldest first.
	const capQ = `
		DELETE FROM tasks WHERE id IN (
			SELECT id FROM tasks WHERE status = ? ORDER BY completed_at DESC
			LIMIT -1 OFFSET ?
		)
	`
	result2, err := s.db.Exec(capQ, status, cap)
	if err != nil {
		return int(deleted), xerrors.Wrap(err, "failed to cleanup terminal tasks by cap")
	}
	deleted2, _ := result2.RowsAffected()

	return int(deleted + deleted2), nil
}

// --- repeatable entries ---

func (s *Store) UpsertRepeatable(kind, key string, payload []byte, cronExpr string, everyMs int64, nextFireAt time.Time) error {
	const q = `
		INSERT INTO repeatable_entries (key, kind, payload, cron_expr, every_ms, next_fire_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, key) DO UPDATE SET
			payload = excluded.payload,
			cron_expr = excluded.cron_expr,
			every_ms = excluded.every_ms,
			next_fire_at = excluded.next_fire_at,
			updated_at = excluded.updated_at
	`
	var everyMsArg interface{}
	if everyMs > 0 {
		everyMsArg = everyMs
	}
	var cronArg interface{}
	if cronExpr != "" {
		cronArg = cronExpr
	}
	_, err := s.db.Exec(q, key, kind, string(payload), cronArg, everyMsArg, nextFireAt, time.Now().UTC())
	return xerrors.Wrap(err, "failed to upsert repeatable entry")
}

func (s *Store) DeleteRepeatable(kind, key string) error {
	_, err := s.db.Exec(`DELETE FROM repeatable_entries WHERE kind = ? AND key = ?`, kind, key)
	return xerrors.Wrap(err, "failed to delete repeatable entry")
}

type RepeatableEntry struct {
	Key        string
	Kind       string
	Payload    []byte
	CronExpr   string
	EveryMs    int64
	NextFireAt time.Time
}

// DueRepeatables returns repeatable entries whose next_fire_at has passed.
func (s *Store) DueRepeatables(kind string, now time.Time) ([]*RepeatableEntry, error) {
	const q = `SELECT key, kind, payload, cron_expr, every_ms, next_fire_at FROM repeatable_entries WHERE kind = ? AND next_fire_at <= ?`
	rows, err := s.db.Query(q, kind, now)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to query due repeatables")
	}
	defer rows.Close()

	var entries []*RepeatableEntry
	for rows.Next() {
		var e RepeatableEntry
		var payload string
		var cronExpr sql.NullString
		var everyMs sql.NullInt64
		if err := rows.Scan(&e.Key, &e.Kind, &payload, &cronExpr, &everyMs, &e.NextFireAt); err != nil {
			return nil, xerrors.Wrap(err, "failed to scan repeatable entry")
		}
		e.Payload = []byte(payload)
		e.CronExpr = cronExpr.String
		e.EveryMs = everyMs.Int64
		entries = append(entries, &e)
	}
	return entries, xerrors.Wrap(rows.Err(), "error iterating repeatables")
}

func (s *Store) AdvanceRepeatable(kind, key string, nextFireAt time.Time) error {
	_, err := s.db.Exec(`UPDATE repeatable_entries SET next_fire_at = ?, updated_at = ? WHERE kind = ? AND key = ?`,
		nextFireAt, time.Now().UTC(), kind, key)
	return xerrors.Wrap(err, "failed to advance repeatable entry")
}

// --- scan helpers ---

var errNotFound = sql.ErrNoRows

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var source, errStr sql.NullString
	var payload string
	err := row.Scan(&t.ID, &t.Kind, &source, &payload, &t.Status, &t.RunAt, &t.Attempts, &t.MaxAttempts,
		&t.BackoffBaseMS, &errStr, &t.CreatedAt, &t.StartedAt, &t.CompletedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Source = source.String
	t.Error = errStr.String
	t.Payload = []byte(payload)
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, xerrors.Wrap(err, "failed to scan task")
		}
		tasks = append(tasks, t)
	}
	return tasks, xerrors.Wrap(rows.Err(), "error iterating tasks")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
