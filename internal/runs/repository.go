// Package runs persists VQE runs and their evaluation traces.
package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Run statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Schema is the runs database schema, applied via database.DB.Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	uuid           TEXT PRIMARY KEY,
	ansatz         TEXT NOT NULL,
	hamiltonian    TEXT NOT NULL,
	backend        TEXT NOT NULL,
	optimizer      TEXT NOT NULL,
	shots          INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'queued',
	initial_params TEXT NOT NULL,
	final_params   TEXT,
	energy         REAL,
	evaluations    INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	created_at     INTEGER NOT NULL,
	started_at     INTEGER,
	completed_at   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS evaluations (
	run_uuid TEXT NOT NULL REFERENCES runs(uuid) ON DELETE CASCADE,
	seq      INTEGER NOT NULL,
	energy   REAL NOT NULL,
	std_err  REAL NOT NULL DEFAULT 0,
	params   TEXT NOT NULL,
	PRIMARY KEY (run_uuid, seq)
);
`

// Run is a stored VQE run.
type Run struct {
	UUID          string
	Ansatz        string
	Hamiltonian   string
	Backend       string
	Optimizer     string
	Shots         int
	Status        string
	InitialParams []float64
	FinalParams   []float64
	Energy        *float64
	Evaluations   int
	Error         string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Evaluation is one stored objective evaluation of a run.
type Evaluation struct {
	Seq    int       `json:"seq"`
	Energy float64   `json:"energy"`
	StdErr float64   `json:"std_err"`
	Params []float64 `json:"params"`
}

// Repository handles CRUD operations for runs and evaluations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

// Create inserts a new queued run and returns its UUID.
func (r *Repository) Create(run Run) (string, error) {
	if run.UUID == "" {
		run.UUID = uuid.New().String()
	}
	initial, err := json.Marshal(run.InitialParams)
	if err != nil {
		return "", fmt.Errorf("marshal initial params: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO runs (uuid, ansatz, hamiltonian, backend, optimizer, shots, status, initial_params, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.UUID,
		run.Ansatz,
		run.Hamiltonian,
		run.Backend,
		run.Optimizer,
		run.Shots,
		StatusQueued,
		string(initial),
		time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return run.UUID, nil
}

// MarkRunning moves a queued run to running.
func (r *Repository) MarkRunning(runUUID string) error {
	result, err := r.db.Exec(`
		UPDATE runs SET status = ?, started_at = ? WHERE uuid = ? AND status = ?
	`, StatusRunning, time.Now().Unix(), runUUID, StatusQueued)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return requireOneRow(result, runUUID)
}

// MarkCompleted stores the result of a finished run.
func (r *Repository) MarkCompleted(runUUID string, energy float64, finalParams []float64, evaluations int) error {
	final, err := json.Marshal(finalParams)
	if err != nil {
		return fmt.Errorf("marshal final params: %w", err)
	}
	result, err := r.db.Exec(`
		UPDATE runs
		SET status = ?, energy = ?, final_params = ?, evaluations = ?, completed_at = ?
		WHERE uuid = ? AND status = ?
	`, StatusCompleted, energy, string(final), evaluations, time.Now().Unix(), runUUID, StatusRunning)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return requireOneRow(result, runUUID)
}

// MarkFailed stores a run failure.
func (r *Repository) MarkFailed(runUUID string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	result, err := r.db.Exec(`
		UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE uuid = ? AND status IN (?, ?)
	`, StatusFailed, message, time.Now().Unix(), runUUID, StatusQueued, StatusRunning)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireOneRow(result, runUUID)
}

// Get returns a run by UUID.
func (r *Repository) Get(runUUID string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT uuid, ansatz, hamiltonian, backend, optimizer, shots, status,
		       initial_params, final_params, energy, evaluations, error,
		       created_at, started_at, completed_at
		FROM runs WHERE uuid = ?
	`, runUUID)
	return scanRun(row)
}

// List returns runs ordered newest-first, optionally filtered by status.
func (r *Repository) List(status string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT uuid, ansatz, hamiltonian, backend, optimizer, shots, status,
		       initial_params, final_params, energy, evaluations, error,
		       created_at, started_at, completed_at
		FROM runs
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, uuid LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// Delete removes a run and, via the foreign key cascade, its evaluations.
func (r *Repository) Delete(runUUID string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE uuid = ?`, runUUID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return requireOneRow(result, runUUID)
}

// AppendEvaluations stores a batch of evaluations for a run inside one
// transaction.
func (r *Repository) AppendEvaluations(runUUID string, evals []Evaluation) error {
	if len(evals) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO evaluations (run_uuid, seq, energy, std_err, params)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range evals {
		params, err := json.Marshal(e.Params)
		if err != nil {
			return fmt.Errorf("marshal evaluation params: %w", err)
		}
		if _, err := stmt.Exec(runUUID, e.Seq, e.Energy, e.StdErr, string(params)); err != nil {
			return fmt.Errorf("insert evaluation %d: %w", e.Seq, err)
		}
	}
	return tx.Commit()
}

// GetEvaluations returns a run's evaluations in sequence order.
func (r *Repository) GetEvaluations(runUUID string) ([]Evaluation, error) {
	rows, err := r.db.Query(`
		SELECT seq, energy, std_err, params FROM evaluations
		WHERE run_uuid = ? ORDER BY seq
	`, runUUID)
	if err != nil {
		return nil, fmt.Errorf("get evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var e Evaluation
		var params string
		if err := rows.Scan(&e.Seq, &e.Energy, &e.StdErr, &params); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &e.Params); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation params: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes terminal runs whose creation time is before the
// cutoff. Queued and running runs are never touched.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM runs WHERE created_at < ? AND status IN (?, ?)
	`, cutoff.Unix(), StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("cleanup runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Cleaned up old runs")
	}
	return deleted, nil
}

// CountByStatus returns run counts grouped by status, used by the health
// endpoint.
func (r *Repository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var initial string
	var final, errText sql.NullString
	var energy sql.NullFloat64
	var createdAt int64
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(
		&run.UUID, &run.Ansatz, &run.Hamiltonian, &run.Backend, &run.Optimizer,
		&run.Shots, &run.Status, &initial, &final, &energy, &run.Evaluations,
		&errText, &createdAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(initial), &run.InitialParams); err != nil {
		return nil, fmt.Errorf("unmarshal initial params: %w", err)
	}
	if final.Valid && final.String != "" {
		if err := json.Unmarshal([]byte(final.String), &run.FinalParams); err != nil {
			return nil, fmt.Errorf("unmarshal final params: %w", err)
		}
	}
	if energy.Valid {
		run.Energy = &energy.Float64
	}
	if errText.Valid {
		run.Error = errText.String
	}
	run.CreatedAt = time.Unix(createdAt, 0)
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0)
		run.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		run.CompletedAt = &t
	}
	return &run, nil
}

func requireOneRow(result sql.Result, runUUID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found or in wrong status", runUUID)
	}
	return nil
}
