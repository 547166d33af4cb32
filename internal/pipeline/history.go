package pipeline

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/abdulachik/kfa/internal/db"
	"github.com/abdulachik/kfa/internal/report"
)

// history records a run in the store. Recording is best effort: a history
// write that fails is logged and the run carries on.
type history struct {
	store *db.Store
	runID string
}

func newHistory(store *db.Store, runID string) *history {
	return &history{store: store, runID: runID}
}

func (h *history) warn(what string, err error) {
	if err != nil {
		slog.Warn("failed to record run history", "run", h.runID, "op", what, "error", err)
	}
}

func (h *history) start(ctx context.Context, arg db.CreateRunParams) {
	if h.store == nil {
		return
	}
	arg.ID = h.runID
	arg.StartedAt = time.Now()
	_, err := h.store.CreateRun(ctx, arg)
	h.warn("create run", err)
}

func (h *history) transition(ctx context.Context, state State) {
	slog.Debug("state transition", "run", h.runID, "state", state)
	if h.store == nil {
		return
	}
	h.warn("update state", h.store.UpdateRunState(ctx, db.UpdateRunStateParams{
		ID:    h.runID,
		State: string(state),
	}))
}

func (h *history) segments(ctx context.Context, n int) {
	if h.store == nil {
		return
	}
	h.warn("update segments", h.store.UpdateRunSegments(ctx, db.UpdateRunSegmentsParams{
		ID:            h.runID,
		TotalSegments: sql.NullInt64{Int64: int64(n), Valid: true},
	}))
}

func (h *history) results(ctx context.Context, results []report.Result) {
	if h.store == nil {
		return
	}
	for _, r := range results {
		h.warn("create segment result", h.store.CreateSegmentResult(ctx, db.SegmentResult{
			RunID:         h.runID,
			SegmentIndex:  int64(r.Segment.Index),
			SegmentText:   r.Segment.Text,
			Tokens:        int64(r.Segment.Tokens),
			OverlapTokens: int64(r.Segment.OverlapTokens),
			Analysis:      r.Analysis,
			Diagnosis:     report.DiagnosisLine(r.Analysis),
		}))
	}
}

func (h *history) done(ctx context.Context, reportPath, summaryPath string) {
	if h.store == nil {
		return
	}
	h.warn("complete run", h.store.UpdateRunCompleted(ctx, db.UpdateRunCompletedParams{
		ID:          h.runID,
		State:       string(StateDone),
		ReportPath:  sql.NullString{String: reportPath, Valid: reportPath != ""},
		SummaryPath: sql.NullString{String: summaryPath, Valid: summaryPath != ""},
		FinishedAt:  time.Now(),
	}))
}

func (h *history) failed(ctx context.Context, cause error) {
	if h.store == nil {
		return
	}
	// The run may be failing because ctx was cancelled.
	ctx = context.WithoutCancel(ctx)
	h.warn("fail run", h.store.UpdateRunFailed(ctx, db.UpdateRunFailedParams{
		ID:           h.runID,
		State:        string(StateFailed),
		ErrorMessage: sql.NullString{String: cause.Error(), Valid: true},
		FinishedAt:   time.Now(),
	}))
}
