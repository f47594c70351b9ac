package classify

import (
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/deploypulse/deploypulse/internal/domain"
)

func at(h int) time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour) }

func TestComponent(t *testing.T) {
    cases := []struct{ msg, want string }{
        {"[kube-prometheus-stack] bump chart to 45.1.0", "kube-prometheus-stack"},
        {"fix typo", ""},
        {"[a] then [b]", "a"},
        {"[ spaced ] release", "spaced"},
    }
    for _, c := range cases {
        if got := Component(c.msg); got != c.want {
            t.Fatalf("Component(%q) = %q, want %q", c.msg, got, c.want)
        }
    }
}

func TestClassify_DefaultKeywords(t *testing.T) {
    c := New(DefaultRules())
    f := c.Classify("[m] Release chart v2, includes hotfix for login bug")
    if !f.Deployment || !f.Failure || !f.Bug {
        t.Fatalf("expected deployment+failure+bug, got %+v", f)
    }
    f = c.Classify("[m] add docs for the new exporter")
    if f.Deployment || f.Failure || f.Bug || f.PullRequest {
        t.Fatalf("expected no flags, got %+v", f)
    }
    if !c.Classify("[m] merge pull request #42").PullRequest {
        t.Fatalf("expected pull request flag")
    }
}

func TestLoadRules_PartialOverrideKeepsDefaults(t *testing.T) {
    path := filepath.Join(t.TempDir(), "rules.yaml")
    if err := os.WriteFile(path, []byte("deployment: [ship, rollout]\n"), 0o644); err != nil { t.Fatal(err) }
    r, err := LoadRules(path)
    if err != nil { t.Fatalf("load: %v", err) }
    if len(r.Deployment) != 2 || r.Deployment[0] != "ship" {
        t.Fatalf("override not applied: %+v", r.Deployment)
    }
    if len(r.Failure) == 0 || len(r.Bug) == 0 {
        t.Fatalf("empty lists should fall back to defaults: %+v", r)
    }
    c := New(r)
    if !c.Classify("[m] rollout v3").Deployment { t.Fatalf("expected custom keyword to match") }
    if c.Classify("[m] bump deps").Deployment { t.Fatalf("default deployment keywords should be replaced") }
}

func TestLoadRules_BadYAML(t *testing.T) {
    path := filepath.Join(t.TempDir(), "rules.yaml")
    if err := os.WriteFile(path, []byte("deployment: {oops"), 0o644); err != nil { t.Fatal(err) }
    if _, err := LoadRules(path); err == nil { t.Fatalf("expected parse error") }
}

func TestApply_GroupsByModuleAndResolvesRecovery(t *testing.T) {
    c := New(DefaultRules())
    records := []domain.RawRecord{
        {Kind: domain.KindCommit, ID: "c1", Message: "[web] add login form", At: at(0)},
        {Kind: domain.KindCommit, ID: "c2", Message: "[web] hotfix broken login", At: at(2)},
        {Kind: domain.KindCommit, ID: "c3", Message: "[web] release v1.1", At: at(5)},
        {Kind: domain.KindCommit, ID: "c4", Message: "[api] bump client version", At: at(1)},
        {Kind: domain.KindPullRequest, ID: "pr1", Message: "[web] PR: new dashboard", At: at(3)},
        {Kind: domain.KindCommit, ID: "c5", Message: "no component here", At: at(4)},
    }
    got := c.Apply(records)
    if len(got) != 2 { t.Fatalf("expected 2 modules, got %d", len(got)) }

    web := got["web"]
    if web == nil { t.Fatalf("missing web module") }
    if len(web.Changes) != 4 { t.Fatalf("expected 4 web changes, got %d", len(web.Changes)) }
    if len(web.Deployments) != 2 { t.Fatalf("expected 2 web deployments, got %d", len(web.Deployments)) }
    var fail *domain.Deployment
    for i := range web.Deployments {
        if web.Deployments[i].Outcome == domain.OutcomeFailure { fail = &web.Deployments[i] }
    }
    if fail == nil { t.Fatalf("hotfix commit should classify as failed deployment") }
    if fail.RecoveredAt == nil || !fail.RecoveredAt.Equal(at(5)) {
        t.Fatalf("failure should recover at the next release, got %v", fail.RecoveredAt)
    }

    api := got["api"]
    if api == nil || len(api.Deployments) != 1 || api.Deployments[0].Outcome != domain.OutcomeSuccess {
        t.Fatalf("bump commit should classify as a successful deployment: %+v", api)
    }
    if d := api.Deployments[0]; d.RecoveredAt != nil {
        t.Fatalf("successful deployment must not carry a recovery timestamp")
    }
}

func TestApply_OpenFailureStaysUnrecovered(t *testing.T) {
    c := New(DefaultRules())
    got := c.Apply([]domain.RawRecord{
        {Kind: domain.KindCommit, ID: "c1", Message: "[m] rollback bad config", At: at(0)},
    })
    deps := got["m"].Deployments
    if len(deps) != 1 || deps[0].RecoveredAt != nil {
        t.Fatalf("failure without later deployment must stay open: %+v", deps)
    }
}

func TestPairLeadTimes(t *testing.T) {
    changes := []domain.ChangeEvent{
        {ID: "c1", Kind: domain.KindCommit, At: at(0)},
        {ID: "c2", Kind: domain.KindCommit, At: at(3)},
        {ID: "pr", Kind: domain.KindPullRequest, At: at(4)},
        {ID: "d1", Kind: domain.KindCommit, At: at(6)},
    }
    deps := []domain.Deployment{
        {ID: "d1", Module: "m", Outcome: domain.OutcomeSuccess, At: at(6)},
        {ID: "f1", Module: "m", Outcome: domain.OutcomeFailure, At: at(8)},
    }
    lts := PairLeadTimes(changes, deps)
    if len(lts) != 1 { t.Fatalf("expected 1 pair (failures excluded), got %d", len(lts)) }
    // The deployment's own commit record is skipped; c2 is the latest prior commit.
    if !lts[0].CommitAt.Equal(at(3)) || !lts[0].DeployedAt.Equal(at(6)) {
        t.Fatalf("unexpected pairing: %+v", lts[0])
    }
}

func TestUpdate_SwapsRules(t *testing.T) {
    c := New(DefaultRules())
    if !c.Classify("[m] deploy it").Deployment { t.Fatalf("default rule should match") }
    c.Update(Rules{Deployment: []string{"launch"}})
    if c.Classify("[m] deploy it").Deployment { t.Fatalf("old rule should be gone") }
    if !c.Classify("[m] launch it").Deployment { t.Fatalf("new rule should match") }
}
