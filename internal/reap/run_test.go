package reap

import (
	"context"
	"errors"
	"testing"

	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/profile"
)

type fakeDeleter struct {
	calls   []string
	failFor map[string]error
}

func (d *fakeDeleter) Delete(_ context.Context, p profile.Profile) error {
	d.calls = append(d.calls, p.AccountID)
	if err, ok := d.failFor[p.AccountID]; ok {
		return err
	}
	return nil
}

func decisionsFor(verdicts map[string]Verdict, order ...string) []Decision {
	var out []Decision
	for _, id := range order {
		out = append(out, Decision{
			Profile: profile.Profile{AccountID: id, LocalPath: "/home/" + id},
			Verdict: verdicts[id],
		})
	}
	return out
}

func TestExecute_DeletesOnlyDeleteVerdicts(t *testing.T) {
	pol := mustPolicy(t, config.PolicySpec{MinAgeDays: 30})
	d := &fakeDeleter{}

	decisions := decisionsFor(map[string]Verdict{
		"alice": {Action: ActionSkip, Reason: ReasonLocal},
		"bob":   {Action: ActionDelete, AgeDays: 40},
		"carol": {Action: ActionSkip, Reason: ReasonTooRecent, AgeDays: 3},
	}, "alice", "bob", "carol")

	res := Execute(context.Background(), decisions, d, pol, nil)

	if len(d.calls) != 1 || d.calls[0] != "bob" {
		t.Errorf("delete calls = %v, want [bob]", d.calls)
	}
	if res.Deleted != 1 || res.Skipped != 2 || res.Failed != 0 || res.Eligible != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestExecute_DryRunNeverDeletes(t *testing.T) {
	pol := mustPolicy(t, config.PolicySpec{MinAgeDays: 30, DryRun: true})
	d := &fakeDeleter{}

	decisions := decisionsFor(map[string]Verdict{
		"bob":   {Action: ActionDelete, AgeDays: 40},
		"ghost": {Action: ActionDelete, AgeDays: 9000},
	}, "bob", "ghost")

	res := Execute(context.Background(), decisions, d, pol, nil)

	if len(d.calls) != 0 {
		t.Errorf("dry-run invoked delete for %v", d.calls)
	}
	if res.Eligible != 2 || res.Deleted != 0 {
		t.Errorf("result = %+v, want 2 eligible and 0 deleted", res)
	}
}

func TestExecute_FailureDoesNotAbortRun(t *testing.T) {
	pol := mustPolicy(t, config.PolicySpec{MinAgeDays: 30})
	d := &fakeDeleter{failFor: map[string]error{
		"bob": errors.New("profile in use"),
	}}

	decisions := decisionsFor(map[string]Verdict{
		"bob":   {Action: ActionDelete, AgeDays: 40},
		"carol": {Action: ActionDelete, AgeDays: 50},
	}, "bob", "carol")

	res := Execute(context.Background(), decisions, d, pol, nil)

	if len(d.calls) != 2 {
		t.Errorf("delete calls = %v, want both profiles attempted", d.calls)
	}
	if res.Failed != 1 || res.Deleted != 1 {
		t.Errorf("result = %+v, want 1 failed and 1 deleted", res)
	}
}

func TestExecute_PreservesEnumerationOrder(t *testing.T) {
	pol := mustPolicy(t, config.PolicySpec{MinAgeDays: 30})
	d := &fakeDeleter{}

	verdicts := map[string]Verdict{
		"zed":   {Action: ActionDelete, AgeDays: 31},
		"alice": {Action: ActionDelete, AgeDays: 32},
		"mike":  {Action: ActionDelete, AgeDays: 33},
	}
	decisions := decisionsFor(verdicts, "zed", "alice", "mike")

	Execute(context.Background(), decisions, d, pol, nil)

	want := []string{"zed", "alice", "mike"}
	for i, id := range want {
		if d.calls[i] != id {
			t.Fatalf("delete order = %v, want %v", d.calls, want)
		}
	}
}

func TestPlan_OneDecisionPerProfile(t *testing.T) {
	pol := mustPolicy(t, config.PolicySpec{MinAgeDays: 30})

	profiles := []profile.Profile{
		{AccountID: "alice", Roaming: false},
		{AccountID: "bob", Roaming: true, LastUse: daysAgo(40)},
		{AccountID: "svc_backup", Special: true},
	}

	decisions := Plan(context.Background(), profiles, pol, testNow, quietDeps())
	if len(decisions) != 3 {
		t.Fatalf("got %d decisions, want 3", len(decisions))
	}
	if decisions[0].Verdict.Reason != ReasonLocal {
		t.Errorf("alice reason = %v, want local", decisions[0].Verdict.Reason)
	}
	if decisions[1].Verdict.Action != ActionDelete {
		t.Errorf("bob action = %v, want delete", decisions[1].Verdict.Action)
	}
	if decisions[2].Verdict.Reason != ReasonSpecial {
		t.Errorf("svc_backup reason = %v, want special", decisions[2].Verdict.Reason)
	}
}
