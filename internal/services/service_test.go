package services

import (
    "context"
    "strings"
    "testing"
    "time"

    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/deploypulse/deploypulse/internal/domain"
    "github.com/rs/zerolog"
)

func TestRenderDigest(t *testing.T) {
    reports := []domain.Report{{
        Module: "web", PeriodWeeks: 4,
        TotalCommits: 12, TotalBugs: 3, TotalPRs: 5,
        WeeklyDeploymentFrequency: 1.5,
        ChangeFailureRate:         25, ChangeFailureRateDefined: true,
        MeanTimeToRecoveryHours:   domain.DefinedHours(6),
    }, {
        Module: "api", PeriodWeeks: 4,
    }}
    out := renderDigest(reports)
    if !strings.Contains(out, "[web]") || !strings.Contains(out, "[api]") {
        t.Fatalf("missing module blocks:\n%s", out)
    }
    if !strings.Contains(out, "change failure rate: 25.0%") {
        t.Fatalf("missing CFR line:\n%s", out)
    }
    if !strings.Contains(out, "MTTR: 6.0h") {
        t.Fatalf("missing MTTR line:\n%s", out)
    }
    if !strings.Contains(out, "change failure rate: n/a") || !strings.Contains(out, "lead time: n/a") {
        t.Fatalf("undefined metrics must render as n/a:\n%s", out)
    }
}

func TestChunkText(t *testing.T) {
    s := strings.Repeat("line one\n", 100)
    chunks := chunkText(s, 50)
    if len(chunks) < 2 { t.Fatalf("expected multiple chunks") }
    for _, c := range chunks {
        if len([]rune(c)) > 50 { t.Fatalf("chunk too long: %d", len(c)) }
    }
    // single long line gets hard-split
    chunks = chunkText(strings.Repeat("x", 120), 50)
    if len(chunks) != 3 { t.Fatalf("expected 3 chunks, got %d", len(chunks)) }
}

func TestWeekStart(t *testing.T) {
    // 2025-03-05 is a Wednesday; the week starts Monday 2025-03-03.
    got := weekStart(time.Date(2025, 3, 5, 15, 30, 0, 0, time.UTC))
    want := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
    if !got.Equal(want) { t.Fatalf("weekStart = %v, want %v", got, want) }
    if !weekStart(want).Equal(want) { t.Fatalf("weekStart must be idempotent on Mondays") }
}

type fakeForge struct {
    commits map[int][]map[string]any
    prs     map[int][]map[string]any
}

func (f *fakeForge) Commits(_ context.Context, _, _ string, page, _ int, _, _ time.Time) ([]map[string]any, error) {
    return f.commits[page], nil
}

func (f *fakeForge) PullRequests(_ context.Context, _, _, _ string, page, _ int) ([]map[string]any, error) {
    return f.prs[page], nil
}

func TestScrapeRepo(t *testing.T) {
    forge := &fakeForge{
        commits: map[int][]map[string]any{
            1: {{
                "sha": "abc",
                "commit": map[string]any{
                    "message": "[web] release v1",
                    "author":  map[string]any{"name": "alice", "date": "2025-03-01T10:00:00Z"},
                },
            }, {
                "sha":    "nodate",
                "commit": map[string]any{"message": "[web] x", "author": map[string]any{"name": "bob"}},
            }},
        },
        prs: map[int][]map[string]any{
            1: {{
                "number":    float64(7),
                "title":     "[web] new dashboard",
                "user":      map[string]any{"login": "carol"},
                "merged_at": "2025-03-02T08:00:00Z",
            }},
        },
    }
    s := New(config.Config{}, zerolog.Nop(), nil, forge, nil, nil, nil)
    recs, err := s.scrapeRepo(context.Background(), "acme/charts", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
    if err != nil { t.Fatalf("scrape: %v", err) }
    if len(recs) != 2 { t.Fatalf("expected 2 records (dateless commit dropped), got %d", len(recs)) }
    if recs[0].Kind != domain.KindCommit || recs[0].ID != "abc" || recs[0].Author != "alice" {
        t.Fatalf("bad commit record: %+v", recs[0])
    }
    if recs[1].Kind != domain.KindPullRequest || recs[1].ID != "acme/charts#7" {
        t.Fatalf("bad pr record: %+v", recs[1])
    }
    if _, err := s.scrapeRepo(context.Background(), "not-a-repo", time.Time{}); err == nil {
        t.Fatalf("expected error for repo without owner")
    }
}
