package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/probe"
	"github.com/adm-tools/profreap/internal/profile"
	"github.com/adm-tools/profreap/internal/reap"
)

var previewNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

type mockLister struct {
	profiles []profile.Profile
	err      error
}

func (m *mockLister) List() ([]profile.Profile, error) {
	return m.profiles, m.err
}

func newTestDeps(profiles ...profile.Profile) Deps {
	return Deps{
		Source: &mockLister{profiles: profiles},
		Engine: reap.Deps{
			Session: probe.SessionFunc(func(context.Context, string) (bool, error) { return false, nil }),
			Domain:  probe.DomainFunc(func(context.Context, string) (bool, error) { return true, nil }),
			ModTime: func(string) (time.Time, bool) { return time.Time{}, false },
		},
		Token:           "test-token",
		DefaultFallback: config.FallbackSkip,
		Now:             func() time.Time { return previewNow },
	}
}

func doRequest(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth_Unauthenticated(t *testing.T) {
	h := NewHandler(newTestDeps())
	w := doRequest(t, h, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestProfiles_RequiresToken(t *testing.T) {
	h := NewHandler(newTestDeps())

	if w := doRequest(t, h, "/profiles", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := doRequest(t, h, "/profiles", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}
	if w := doRequest(t, h, "/profiles", "test-token"); w.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", w.Code)
	}
}

func TestProfiles_ReturnsInventory(t *testing.T) {
	h := NewHandler(newTestDeps(
		profile.Profile{AccountID: "alice", LocalPath: "/home/alice", Roaming: true},
		profile.Profile{AccountID: "bob", LocalPath: "/home/bob"},
	))

	w := doRequest(t, h, "/profiles", "test-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got []profile.Profile
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].AccountID != "alice" || !got[0].Roaming {
		t.Errorf("unexpected profiles: %+v", got)
	}
}

func TestProfiles_EmptyInventoryIsEmptyArray(t *testing.T) {
	h := NewHandler(newTestDeps())
	w := doRequest(t, h, "/profiles", "test-token")
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestVerdicts_Preview(t *testing.T) {
	h := NewHandler(newTestDeps(
		profile.Profile{AccountID: "bob", Roaming: true, LastUse: previewNow.AddDate(0, 0, -40)},
		profile.Profile{AccountID: "alice", Roaming: false},
	))

	w := doRequest(t, h, "/verdicts?age=30", "test-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var got []VerdictRecord
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Action != "delete" || got[0].AgeDays == nil || *got[0].AgeDays != 40 {
		t.Errorf("bob record = %+v, want delete at 40 days", got[0])
	}
	if got[1].Action != "skip" || got[1].Reason != "local" {
		t.Errorf("alice record = %+v, want skip/local", got[1])
	}
	if got[1].AgeDays != nil {
		t.Errorf("alice age = %v, want omitted before timestamp resolution", *got[1].AgeDays)
	}
}

func TestVerdicts_AgeValidation(t *testing.T) {
	h := NewHandler(newTestDeps())

	for _, path := range []string{"/verdicts", "/verdicts?age=abc", "/verdicts?age=0", "/verdicts?age=-5"} {
		if w := doRequest(t, h, path, "test-token"); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestVerdicts_FallbackParam(t *testing.T) {
	h := NewHandler(newTestDeps(
		profile.Profile{AccountID: "ghost", Roaming: true, LocalPath: "/home/ghost"},
	))

	w := doRequest(t, h, "/verdicts?age=30&fallback=epoch", "test-token")
	var got []VerdictRecord
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Action != "delete" {
		t.Errorf("action = %q, want delete under epoch fallback", got[0].Action)
	}

	if w := doRequest(t, h, "/verdicts?age=30&fallback=bogus", "test-token"); w.Code != http.StatusBadRequest {
		t.Errorf("bogus fallback: status = %d, want 400", w.Code)
	}
}

func TestVerdicts_ListError(t *testing.T) {
	deps := newTestDeps()
	deps.Source = &mockLister{err: errors.New("db closed")}
	h := NewHandler(deps)

	if w := doRequest(t, h, "/verdicts?age=30", "test-token"); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestPreviewPolicy_AlwaysDryRun(t *testing.T) {
	pol, err := previewPolicy("30", "true", "", config.FallbackSkip)
	if err != nil {
		t.Fatalf("previewPolicy: %v", err)
	}
	if !pol.DryRun {
		t.Error("preview policy must be dry-run")
	}
	if !pol.Force {
		t.Error("force parameter not honored")
	}
}
