// Package reap implements the eligibility decision engine and the
// two-phase executor that applies its verdicts.
package reap

import (
	"context"
	"log/slog"
	"time"

	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/probe"
	"github.com/adm-tools/profreap/internal/profile"
)

// Action is the outcome class of a verdict.
type Action int

const (
	ActionSkip Action = iota
	ActionDelete
)

func (a Action) String() string {
	if a == ActionDelete {
		return "delete"
	}
	return "skip"
}

// Reason explains a skip verdict.
type Reason string

const (
	// ReasonSpecial: safe-listed or marked as a built-in/system account.
	ReasonSpecial Reason = "special"
	// ReasonLocal: not roaming and no force-mode domain mismatch.
	ReasonLocal Reason = "local"
	// ReasonActiveSession: the account is logged in right now.
	ReasonActiveSession Reason = "active-session"
	// ReasonNoLoginData: no last-use timestamp could be resolved.
	ReasonNoLoginData Reason = "no-login-data"
	// ReasonTooRecent: used within the minimum age window.
	ReasonTooRecent Reason = "too-recent"
)

// Verdict is the engine's decision for one profile. AgeDays and
// LastUse are populated once a last-use timestamp has been resolved
// (delete and too-recent verdicts); LastUse stays zero for earlier
// gates.
type Verdict struct {
	Action  Action
	Reason  Reason
	AgeDays int
	LastUse time.Time
}

// Deps are the collaborators the engine consults. ModTime looks up
// the last-modified time of a profile directory, reporting false when
// the directory does not exist; nil falls back to the real
// filesystem. Logger is used for probe failures only and defaults to
// slog.Default.
type Deps struct {
	Session probe.SessionProbe
	Domain  probe.DomainProbe
	ModTime func(path string) (time.Time, bool)
	Logger  *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) modTime() func(string) (time.Time, bool) {
	if d.ModTime != nil {
		return d.ModTime
	}
	return FSModTime
}

// Evaluate produces exactly one verdict for the profile. The gate
// order is significant and must not be reordered: the session check
// runs after the special-account check, and force-mode domain
// mismatch is an admission path alongside the roaming flag, not a
// veto.
func Evaluate(ctx context.Context, p profile.Profile, pol config.Policy, now time.Time, deps Deps) Verdict {
	if pol.SafeListed(p.AccountID) || p.Special {
		return Verdict{Action: ActionSkip, Reason: ReasonSpecial}
	}

	mismatch := domainMismatch(ctx, p, pol, deps)

	if !p.Roaming && !mismatch {
		return Verdict{Action: ActionSkip, Reason: ReasonLocal}
	}

	active, err := deps.Session.HasActiveSession(ctx, p.AccountID)
	if err != nil {
		// Ambiguity must never delete: treat as logged in.
		deps.logger().Warn("session probe failed, assuming active session",
			"account", p.AccountID, "error", err)
		active = true
	}
	if active {
		return Verdict{Action: ActionSkip, Reason: ReasonActiveSession}
	}

	lastUse, ok := resolveLastUse(p, deps.modTime())
	if !ok {
		if pol.Fallback == config.FallbackEpoch {
			lastUse = epoch
		} else {
			return Verdict{Action: ActionSkip, Reason: ReasonNoLoginData}
		}
	}

	age := ageDays(now, lastUse)
	if age > pol.MinAgeDays {
		return Verdict{Action: ActionDelete, AgeDays: age, LastUse: lastUse}
	}
	return Verdict{Action: ActionSkip, Reason: ReasonTooRecent, AgeDays: age, LastUse: lastUse}
}

// domainMismatch reports whether force mode identified the profile's
// account as unresolvable. Outside force mode it is unconditionally
// false. A probe failure is ambiguous and never counts as a mismatch.
func domainMismatch(ctx context.Context, p profile.Profile, pol config.Policy, deps Deps) bool {
	if !pol.Force {
		return false
	}
	resolved, err := deps.Domain.Resolves(ctx, p.AccountID)
	if err != nil {
		deps.logger().Warn("domain probe failed, not treated as mismatch",
			"account", p.AccountID, "error", err)
		return false
	}
	return !resolved
}
