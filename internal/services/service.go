/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "encoding/json"
    "fmt"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/deploypulse/deploypulse/internal/classify"
    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/deploypulse/deploypulse/internal/domain"
    "github.com/deploypulse/deploypulse/internal/metrics"
    "github.com/deploypulse/deploypulse/internal/repo"
    "github.com/rs/zerolog"
)

type ForgeClient interface {
    Commits(ctx context.Context, owner, repoName string, page, perPage int, since, until time.Time) ([]map[string]any, error)
    PullRequests(ctx context.Context, owner, repoName, state string, page, perPage int) ([]map[string]any, error)
}

type LLM interface {
    Enabled() bool
    Narrate(ctx context.Context, reports []domain.Report) (string, error)
}

type Notifier interface {
    SendMessage(ctx context.Context, chatID int64, text string) error
    SendMessagePlain(ctx context.Context, chatID int64, text string) error
}

type Service struct {
    cfg        config.Config
    log        zerolog.Logger
    repo       *repo.Repository
    forge      ForgeClient
    llm        LLM
    tg         Notifier
    classifier *classify.Classifier
}

func New(cfg config.Config, log zerolog.Logger, r *repo.Repository, forge ForgeClient, llm LLM, tg Notifier, cls *classify.Classifier) *Service {
    return &Service{cfg: cfg, log: log, repo: r, forge: forge, llm: llm, tg: tg, classifier: cls}
}

// RunWeeklyReport runs the full pipeline: scrape repos, classify, persist,
// aggregate per module, store the weekly reports, and deliver the digest.
func (s *Service) RunWeeklyReport(ctx context.Context) error {
    reposJSON, _ := json.Marshal(s.cfg.GitHubRepos)
    runID, err := s.repo.StartJobRun(ctx, string(reposJSON))
    if err != nil { s.log.Error().Err(err).Msg("start job run failed") }
    s.log.Info().Msg("WeeklyReport: start")

    var recordsScanned int
    var modulesReported int
    var runErr error
    defer func() {
        if runID != 0 {
            errStr := ""
            if runErr != nil { errStr = runErr.Error() }
            _ = s.repo.FinishJobRun(ctx, runID, recordsScanned, modulesReported, runErr == nil, errStr)
        }
    }()

    since := time.Now().UTC().AddDate(0, 0, -7*s.cfg.PeriodWeeks)
    records, err := s.Collect(ctx, since)
    recordsScanned = len(records)
    if err != nil {
        runErr = err
        s.log.Error().Err(err).Int("records", recordsScanned).Msg("collect failed")
        return err
    }

    byModule := s.classifier.Apply(records)
    for _, me := range byModule {
        if err := s.repo.BulkInsertChangeEvents(ctx, me.Changes); err != nil { runErr = err; return err }
        if err := s.repo.BulkInsertDeployments(ctx, me.Deployments); err != nil { runErr = err; return err }
    }

    // Aggregate over the stored window rather than this run's batch so that
    // earlier scrapes of the same window contribute.
    reports, err := s.buildReports(ctx, since, s.cfg.PeriodWeeks, "")
    if err != nil { runErr = err; return err }
    modulesReported = len(reports)

    wkStart := weekStart(time.Now().UTC())
    for _, rep := range reports {
        if err := s.repo.UpsertReport(ctx, wkStart, rep); err != nil {
            s.log.Error().Err(err).Str("module", rep.Module).Msg("upsert report failed")
        }
    }

    digest := renderDigest(reports)
    if s.llm != nil && s.llm.Enabled() && len(reports) > 0 {
        if narrative, err := s.llm.Narrate(ctx, reports); err == nil && narrative != "" {
            digest += "\n" + narrative + "\n"
        } else if err != nil {
            s.log.Error().Err(err).Msg("narrative generation failed")
        }
    }
    s.deliver(ctx, digest)

    s.log.Info().Int("records", recordsScanned).Int("modules", modulesReported).Msg("WeeklyReport: done")
    return nil
}

// RunOnDemandReport builds a report for the past N days and sends it to the
// requesting chat only.
func (s *Service) RunOnDemandReport(ctx context.Context, chatID int64, sinceDays int) error {
    if chatID == 0 { return nil }
    if sinceDays <= 0 { sinceDays = 7 }
    weeks := (sinceDays + 6) / 7
    since := time.Now().UTC().AddDate(0, 0, -sinceDays)
    reports, err := s.buildReports(ctx, since, weeks, "")
    if err != nil { return err }
    if len(reports) == 0 {
        return s.tg.SendMessagePlain(ctx, chatID, "DeployPulse: no activity recorded in the requested window.")
    }
    return s.tg.SendMessagePlain(ctx, chatID, renderDigest(reports))
}

// ReportForModule computes a single module's report over the trailing period.
func (s *Service) ReportForModule(ctx context.Context, module string, weeks int) (*domain.Report, error) {
    if weeks <= 0 { return nil, metrics.ErrInvalidPeriod }
    since := time.Now().UTC().AddDate(0, 0, -7*weeks)
    reports, err := s.buildReports(ctx, since, weeks, module)
    if err != nil { return nil, err }
    for i := range reports {
        if reports[i].Module == module { return &reports[i], nil }
    }
    // No stored activity: an empty window is still a valid report.
    agg := metrics.New()
    rep, err := agg.Summarize(module, float64(weeks))
    if err != nil { return nil, err }
    return &rep, nil
}

// SendHelp replies with bot capabilities and commands.
func (s *Service) SendHelp(ctx context.Context, chatID int64) error {
    if chatID == 0 { return nil }
    help := "DeployPulse Bot\n" +
        "Weekly DORA metrics per module: deployment frequency, change failure rate, MTTR, lead time.\n\n" +
        "Commands:\n" +
        "- /report 7d — on-demand report for the last 7 days\n" +
        "- /report 30d — on-demand report for the last 30 days\n" +
        "- /help — this message"
    return s.tg.SendMessagePlain(ctx, chatID, help)
}

func (s *Service) GetLastRun(ctx context.Context) (any, error) {
    return s.repo.GetLastRun(ctx)
}

// Collect scrapes commits and pull requests from every configured repo with
// a bounded worker pool, one repo per job.
func (s *Service) Collect(ctx context.Context, since time.Time) ([]domain.RawRecord, error) {
    workerCount := s.cfg.WorkersGitHub
    if workerCount <= 0 { workerCount = 4 }

    type result struct {
        recs []domain.RawRecord
        err  error
    }
    jobs := make(chan string)
    results := make(chan result)
    var wg sync.WaitGroup
    for w := 0; w < workerCount; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for full := range jobs {
                recs, err := s.scrapeRepo(ctx, full, since)
                results <- result{recs: recs, err: err}
            }
        }()
    }
    go func() {
        for _, full := range s.cfg.GitHubRepos { jobs <- full }
        close(jobs)
        wg.Wait()
        close(results)
    }()

    var all []domain.RawRecord
    var firstErr error
    for r := range results {
        if r.err != nil && firstErr == nil { firstErr = r.err }
        all = append(all, r.recs...)
    }
    return all, firstErr
}

func (s *Service) scrapeRepo(ctx context.Context, full string, since time.Time) ([]domain.RawRecord, error) {
    owner, name, ok := strings.Cut(full, "/")
    if !ok { return nil, fmt.Errorf("bad repo %q, want owner/name", full) }

    var out []domain.RawRecord
    for page := 1; ; page++ {
        commits, err := s.forge.Commits(ctx, owner, name, page, 100, since, time.Time{})
        if err != nil { return out, err }
        if len(commits) == 0 { break }
        for _, cm := range commits {
            sha := toStrAny(cm["sha"])
            inner, _ := cm["commit"].(map[string]any)
            msg := toStrAny(inner["message"])
            author := ""
            var at *time.Time
            if a, ok := inner["author"].(map[string]any); ok {
                author = toStrAny(a["name"])
                at = parseTimeUTC(a["date"])
            }
            if sha == "" || at == nil { continue }
            out = append(out, domain.RawRecord{
                Kind: domain.KindCommit, ID: sha, Author: author, Message: msg, At: *at,
            })
        }
        if len(commits) < 100 { break }
    }

    for page := 1; ; page++ {
        prs, err := s.forge.PullRequests(ctx, owner, name, "all", page, 100)
        if err != nil { return out, err }
        if len(prs) == 0 { break }
        for _, pr := range prs {
            num := toStrAny(pr["number"])
            title := toStrAny(pr["title"])
            author := ""
            if u, ok := pr["user"].(map[string]any); ok { author = toStrAny(u["login"]) }
            at := parseTimeUTC(pr["merged_at"])
            if at == nil { at = parseTimeUTC(pr["created_at"]) }
            if num == "" || at == nil || at.Before(since) { continue }
            out = append(out, domain.RawRecord{
                Kind: domain.KindPullRequest, ID: full + "#" + num, Author: author, Message: title, At: *at,
            })
        }
        if len(prs) < 100 { break }
    }
    return out, nil
}

// buildReports loads the stored window and folds each module's events into a
// report. module filters to one module when non-empty.
func (s *Service) buildReports(ctx context.Context, since time.Time, weeks int, module string) ([]domain.Report, error) {
    changes, err := s.repo.ListChangeEvents(ctx, since)
    if err != nil { return nil, err }
    deps, err := s.repo.ListDeployments(ctx, since)
    if err != nil { return nil, err }

    type group struct {
        changes []domain.ChangeEvent
        deps    []domain.Deployment
    }
    groups := map[string]*group{}
    get := func(m string) *group {
        g, ok := groups[m]
        if !ok { g = &group{}; groups[m] = g }
        return g
    }
    for _, c := range changes {
        if module != "" && c.Module != module { continue }
        get(c.Module).changes = append(get(c.Module).changes, c)
    }
    for _, d := range deps {
        if module != "" && d.Module != module { continue }
        get(d.Module).deps = append(get(d.Module).deps, d)
    }

    var out []domain.Report
    for m, g := range groups {
        agg := metrics.New()
        for _, c := range g.changes {
            if err := agg.Record(c); err != nil {
                s.log.Warn().Err(err).Str("module", m).Str("id", c.ID).Msg("skipping change event")
            }
        }
        for _, d := range g.deps {
            if err := agg.RecordDeployment(d); err != nil {
                s.log.Warn().Err(err).Str("module", m).Str("id", d.ID).Msg("skipping deployment")
            }
        }
        for _, lt := range classify.PairLeadTimes(g.changes, g.deps) {
            agg.RecordLeadTime(lt)
        }
        rep, err := agg.Summarize(m, float64(weeks))
        if err != nil { return nil, err }
        out = append(out, rep)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
    return out, nil
}

func (s *Service) deliver(ctx context.Context, digest string) {
    if digest == "" { return }
    parts := chunkText(digest, 3800)
    for _, chat := range s.cfg.TelegramChatIDs {
        for _, p := range parts {
            if err := s.tg.SendMessagePlain(ctx, chat, p); err != nil {
                s.log.Error().Err(err).Int64("chat", chat).Msg("telegram send failed")
            }
        }
    }
    type usernameResolver interface {
        ResolveUsername(ctx context.Context, username string) (int64, error)
    }
    if len(s.cfg.TelegramChatIDs) == 0 && len(s.cfg.TelegramChatUsernames) > 0 {
        r, ok := s.tg.(usernameResolver)
        if !ok {
            s.log.Error().Msg("telegram client does not support username resolution; set TELEGRAM_CHAT_IDS")
            return
        }
        for _, u := range s.cfg.TelegramChatUsernames {
            id, err := r.ResolveUsername(ctx, u)
            if err != nil { s.log.Error().Err(err).Str("username", u).Msg("resolve username failed"); continue }
            for _, p := range parts {
                if err := s.tg.SendMessagePlain(ctx, id, p); err != nil {
                    s.log.Error().Err(err).Str("username", u).Int64("chat", id).Msg("telegram send failed")
                }
            }
        }
    }
}

// renderDigest builds the plain-text weekly digest, one block per module.
func renderDigest(reports []domain.Report) string {
    b := &strings.Builder{}
    fmt.Fprintf(b, "DeployPulse — weekly DORA report\n\n")
    for _, r := range reports {
        fmt.Fprintf(b, "[%s]\n", r.Module)
        fmt.Fprintf(b, "  commits: %d  bugs: %d  PRs: %d\n", r.TotalCommits, r.TotalBugs, r.TotalPRs)
        fmt.Fprintf(b, "  deploy freq: %.2f/week\n", r.WeeklyDeploymentFrequency)
        if r.ChangeFailureRateDefined {
            fmt.Fprintf(b, "  change failure rate: %.1f%%\n", r.ChangeFailureRate)
        } else {
            fmt.Fprintf(b, "  change failure rate: n/a (no deployments)\n")
        }
        fmt.Fprintf(b, "  MTTR: %s\n", fmtHours(r.MeanTimeToRecoveryHours))
        fmt.Fprintf(b, "  lead time: %s\n\n", fmtHours(r.LeadTimeForChangesHours))
    }
    return b.String()
}

func fmtHours(h domain.Hours) string {
    if !h.Defined { return "n/a" }
    return fmt.Sprintf("%.1fh", h.Value)
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

// chunkText splits text into chunks of up to max runes, attempting to break on line boundaries.
func chunkText(s string, max int) []string {
    if max <= 0 { return []string{s} }
    var chunks []string
    lines := strings.Split(s, "\n")
    cur := ""
    curlen := 0
    for _, ln := range lines {
        rl := len([]rune(ln))
        // If a single line exceeds max, hard-split the line
        if rl > max {
            if curlen > 0 { chunks = append(chunks, cur); cur = ""; curlen = 0 }
            r := []rune(ln)
            for i := 0; i < rl; i += max {
                j := i + max
                if j > rl { j = rl }
                chunks = append(chunks, string(r[i:j]))
            }
            continue
        }
        extra := rl
        if curlen > 0 { extra += 1 }
        if curlen+extra > max {
            chunks = append(chunks, cur)
            cur = ln
            curlen = rl
        } else {
            if curlen == 0 { cur = ln; curlen = rl } else { cur += "\n" + ln; curlen += extra }
        }
    }
    if curlen > 0 { chunks = append(chunks, cur) }
    if len(chunks) == 0 { chunks = []string{""} }
    return chunks
}

func weekStart(t time.Time) time.Time {
    weekday := int(t.Weekday())
    if weekday == 0 { weekday = 7 }
    delta := time.Duration(weekday-1) * 24 * time.Hour
    day := t.Add(-delta)
    return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}
