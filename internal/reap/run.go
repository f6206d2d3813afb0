package reap

import (
	"context"
	"log/slog"
	"time"

	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/profile"
)

// Decision pairs a profile with its verdict.
type Decision struct {
	Profile profile.Profile
	Verdict Verdict
}

// Deleter performs the actual profile removal.
type Deleter interface {
	Delete(ctx context.Context, p profile.Profile) error
}

// Result summarizes one run.
type Result struct {
	Eligible int // delete verdicts
	Deleted  int // actually removed (always 0 in dry-run)
	Failed   int
	Skipped  int
}

// Plan evaluates every profile and returns the decisions in
// enumeration order. Pure with respect to the profiles: nothing is
// mutated here.
func Plan(ctx context.Context, profiles []profile.Profile, pol config.Policy, now time.Time, deps Deps) []Decision {
	decisions := make([]Decision, len(profiles))
	for i, p := range profiles {
		decisions[i] = Decision{Profile: p, Verdict: Evaluate(ctx, p, pol, now, deps)}
	}
	return decisions
}

// Execute applies delete verdicts sequentially, in decision order.
// Skips are never deleted; dry-run never deletes anything. A failed
// deletion is logged and the run continues — failure is local to one
// profile.
func Execute(ctx context.Context, decisions []Decision, deleter Deleter, pol config.Policy, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	for _, d := range decisions {
		if d.Verdict.Action != ActionDelete {
			res.Skipped++
			continue
		}
		res.Eligible++

		if pol.DryRun {
			logger.Info("dry-run: would delete profile",
				"account", d.Profile.AccountID,
				"path", d.Profile.LocalPath,
				"age_days", d.Verdict.AgeDays)
			continue
		}

		if err := deleter.Delete(ctx, d.Profile); err != nil {
			res.Failed++
			logger.Error("profile deletion failed",
				"account", d.Profile.AccountID,
				"path", d.Profile.LocalPath,
				"error", err)
			continue
		}
		res.Deleted++
		logger.Info("deleted profile",
			"account", d.Profile.AccountID,
			"path", d.Profile.LocalPath,
			"age_days", d.Verdict.AgeDays)
	}
	return res
}
