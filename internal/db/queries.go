package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the run history statements.
type Queries struct {
	db DBTX
}

// New binds the queries to a connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Run is one row of the runs table.
type Run struct {
	ID            string
	InputPath     string
	InputFormat   string
	Strategy      string
	Provider      string
	StyleModel    string
	State         string
	TotalSegments sql.NullInt64
	ReportPath    sql.NullString
	SummaryPath   sql.NullString
	ErrorMessage  sql.NullString
	StartedAt     time.Time
	FinishedAt    sql.NullTime
}

// SegmentResult is one stored critique.
type SegmentResult struct {
	RunID         string
	SegmentIndex  int64
	SegmentText   string
	Tokens        int64
	OverlapTokens int64
	Analysis      string
	Diagnosis     string
}

const runColumns = `id, input_path, input_format, strategy, provider, style_model, state,
	total_segments, report_path, summary_path, error_message, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	err := row.Scan(
		&r.ID, &r.InputPath, &r.InputFormat, &r.Strategy, &r.Provider, &r.StyleModel, &r.State,
		&r.TotalSegments, &r.ReportPath, &r.SummaryPath, &r.ErrorMessage, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRunParams holds the values recorded when a run starts.
type CreateRunParams struct {
	ID          string
	InputPath   string
	InputFormat string
	Strategy    string
	Provider    string
	StyleModel  string
	State       string
	StartedAt   time.Time
}

// CreateRun inserts a new run.
func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (*Run, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, input_format, strategy, provider, style_model, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.InputPath, arg.InputFormat, arg.Strategy, arg.Provider, arg.StyleModel, arg.State, arg.StartedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return q.GetRun(ctx, arg.ID)
}

// GetRun returns the run with the given id.
func (q *Queries) GetRun(ctx context.Context, id string) (*Run, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs first.
func (q *Queries) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of recorded runs.
func (q *Queries) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

// UpdateRunStateParams moves a run to a new state.
type UpdateRunStateParams struct {
	ID    string
	State string
}

// UpdateRunState records a state transition.
func (q *Queries) UpdateRunState(ctx context.Context, arg UpdateRunStateParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE runs SET state = ? WHERE id = ?`, arg.State, arg.ID)
	return err
}

// UpdateRunSegmentsParams records how many segments a run produced.
type UpdateRunSegmentsParams struct {
	ID            string
	TotalSegments sql.NullInt64
}

// UpdateRunSegments sets the segment count.
func (q *Queries) UpdateRunSegments(ctx context.Context, arg UpdateRunSegmentsParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE runs SET total_segments = ? WHERE id = ?`, arg.TotalSegments, arg.ID)
	return err
}

// UpdateRunCompletedParams finishes a successful run.
type UpdateRunCompletedParams struct {
	ID          string
	State       string
	ReportPath  sql.NullString
	SummaryPath sql.NullString
	FinishedAt  time.Time
}

// UpdateRunCompleted marks a run done with its artifact paths.
func (q *Queries) UpdateRunCompleted(ctx context.Context, arg UpdateRunCompletedParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, report_path = ?, summary_path = ?, finished_at = ?
		WHERE id = ?`,
		arg.State, arg.ReportPath, arg.SummaryPath, arg.FinishedAt.UTC(), arg.ID,
	)
	return err
}

// UpdateRunFailedParams finishes a failed run.
type UpdateRunFailedParams struct {
	ID           string
	State        string
	ErrorMessage sql.NullString
	FinishedAt   time.Time
}

// UpdateRunFailed marks a run failed with the triggering error.
func (q *Queries) UpdateRunFailed(ctx context.Context, arg UpdateRunFailedParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		arg.State, arg.ErrorMessage, arg.FinishedAt.UTC(), arg.ID,
	)
	return err
}

// CreateSegmentResult stores one critique. Each (run, index) is written once.
func (q *Queries) CreateSegmentResult(ctx context.Context, arg SegmentResult) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO segment_results (run_id, segment_index, segment_text, tokens, overlap_tokens, analysis, diagnosis)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.RunID, arg.SegmentIndex, arg.SegmentText, arg.Tokens, arg.OverlapTokens, arg.Analysis, arg.Diagnosis,
	)
	if err != nil {
		return fmt.Errorf("insert segment %d: %w", arg.SegmentIndex, err)
	}
	return nil
}

// ListSegmentResults returns a run's critiques in segment order.
func (q *Queries) ListSegmentResults(ctx context.Context, runID string) ([]SegmentResult, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT run_id, segment_index, segment_text, tokens, overlap_tokens, analysis, diagnosis
		FROM segment_results WHERE run_id = ? ORDER BY segment_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SegmentResult
	for rows.Next() {
		var r SegmentResult
		if err := rows.Scan(&r.RunID, &r.SegmentIndex, &r.SegmentText, &r.Tokens, &r.OverlapTokens, &r.Analysis, &r.Diagnosis); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
