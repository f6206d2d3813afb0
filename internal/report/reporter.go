// Package report renders run records: a debug-gated structured line
// per decision and a closing summary. It observes verdicts only and
// never participates in producing them.
package report

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/adm-tools/profreap/internal/reap"
)

// Reporter emits structured records for one run. Per-decision records
// go out at debug level, so they are silent unless the handler is
// configured for debug; the summary is always emitted.
type Reporter struct {
	logger *slog.Logger
	runID  string
}

// New creates a Reporter tagged with a fresh run ID. A nil logger
// falls back to slog.Default.
func New(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New().String()
	return &Reporter{
		logger: logger.With("run_id", runID),
		runID:  runID,
	}
}

// RunID returns this run's identifier.
func (r *Reporter) RunID() string { return r.runID }

// Decision records one profile's verdict.
func (r *Reporter) Decision(d reap.Decision) {
	attrs := []any{
		"account", d.Profile.AccountID,
		"action", d.Verdict.Action.String(),
	}
	if d.Verdict.Reason != "" {
		attrs = append(attrs, "reason", string(d.Verdict.Reason))
	}
	if !d.Verdict.LastUse.IsZero() {
		attrs = append(attrs, "age_days", d.Verdict.AgeDays)
	}
	r.logger.Debug("profile decision", attrs...)
}

// Summary records the final counts: profiles known before and after
// the run, and the execution tallies.
func (r *Reporter) Summary(before, after int, res reap.Result) {
	r.logger.Info("run complete",
		"profiles_before", before,
		"profiles_after", after,
		"eligible", res.Eligible,
		"deleted", res.Deleted,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
}
