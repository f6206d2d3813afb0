// Package api is the read-only agent surface: an HTTP API and an MCP
// server over the profile inventory and verdict previews. Nothing
// here deletes a profile.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/profile"
	"github.com/adm-tools/profreap/internal/reap"
)

// ProfileLister is the inventory view the API serves.
type ProfileLister interface {
	List() ([]profile.Profile, error)
}

// Deps holds the collaborators for the agent handlers.
type Deps struct {
	Source          ProfileLister
	Engine          reap.Deps
	Token           string
	DefaultFallback config.FallbackPolicy
	Now             func() time.Time // nil means time.Now
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// VerdictRecord is the wire form of one preview decision.
type VerdictRecord struct {
	AccountID string `json:"account_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	AgeDays   *int   `json:"age_days,omitempty"`
}

// NewHandler builds the agent router. The health endpoint is open;
// inventory and preview endpoints require the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/profiles", handleListProfiles(deps))
		r.Get("/verdicts", handleVerdicts(deps))
	})

	return r
}

func handleListProfiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := deps.Source.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing profiles: %v", err)
			return
		}
		if profiles == nil {
			profiles = []profile.Profile{}
		}
		writeJSON(w, http.StatusOK, profiles)
	}
}

func handleVerdicts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pol, err := previewPolicy(r.URL.Query().Get("age"), r.URL.Query().Get("force"), r.URL.Query().Get("fallback"), deps.DefaultFallback)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		profiles, err := deps.Source.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing profiles: %v", err)
			return
		}

		decisions := reap.Plan(r.Context(), profiles, pol, deps.now(), deps.Engine)
		writeJSON(w, http.StatusOK, verdictRecords(decisions))
	}
}

// previewPolicy builds the read-only policy for a preview request.
// Previews are always dry-run by construction: the handler only plans.
func previewPolicy(ageParam, forceParam, fallbackParam string, defaultFallback config.FallbackPolicy) (config.Policy, error) {
	if ageParam == "" {
		return config.Policy{}, fmt.Errorf("age parameter is required")
	}
	age, err := strconv.Atoi(ageParam)
	if err != nil {
		return config.Policy{}, fmt.Errorf("age must be an integer: %v", err)
	}

	force := false
	if forceParam != "" {
		if force, err = strconv.ParseBool(forceParam); err != nil {
			return config.Policy{}, fmt.Errorf("force must be a boolean: %v", err)
		}
	}

	fallback := defaultFallback
	if fallbackParam != "" {
		if fallback, err = config.ParseFallback(fallbackParam); err != nil {
			return config.Policy{}, err
		}
	}

	return config.NewPolicy(config.PolicySpec{
		MinAgeDays: age,
		Force:      force,
		DryRun:     true,
		Fallback:   fallback,
	})
}

func verdictRecords(decisions []reap.Decision) []VerdictRecord {
	records := make([]VerdictRecord, len(decisions))
	for i, d := range decisions {
		rec := VerdictRecord{
			AccountID: d.Profile.AccountID,
			Action:    d.Verdict.Action.String(),
			Reason:    string(d.Verdict.Reason),
		}
		if !d.Verdict.LastUse.IsZero() {
			age := d.Verdict.AgeDays
			rec.AgeDays = &age
		}
		records[i] = rec
	}
	return records
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, kind, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"message": fmt.Sprintf(format, args...),
			"type":    kind,
		},
	})
}
