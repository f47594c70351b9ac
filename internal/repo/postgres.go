package repo

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/deploypulse/deploypulse/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

// BulkInsertChangeEvents stores classified change events. ext_id dedupes
// re-fetched commits and pull requests across scrape runs.
func (r *Repository) BulkInsertChangeEvents(ctx context.Context, evs []domain.ChangeEvent) error {
    if len(evs) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO change_events(ext_id, module, kind, bug, author, message, at)
        VALUES($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (ext_id) DO NOTHING`
    for _, e := range evs {
        batch.Queue(q, e.ID, e.Module, string(e.Kind), e.Bug, e.Author, e.Message, e.At)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range evs { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) BulkInsertDeployments(ctx context.Context, deps []domain.Deployment) error {
    if len(deps) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO deployments(ext_id, module, outcome, at, recovered_at)
        VALUES($1,$2,$3,$4,$5)
        ON CONFLICT (ext_id) DO UPDATE SET recovered_at=EXCLUDED.recovered_at`
    for _, d := range deps {
        batch.Queue(q, d.ID, d.Module, string(d.Outcome), d.At, d.RecoveredAt)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range deps { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) ListChangeEvents(ctx context.Context, since time.Time) ([]domain.ChangeEvent, error) {
    rows, err := r.db.Pool.Query(ctx, `
        SELECT ext_id, module, kind, bug, COALESCE(author,''), COALESCE(message,''), at
        FROM change_events WHERE at >= $1 ORDER BY at`, since)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.ChangeEvent
    for rows.Next() {
        var e domain.ChangeEvent
        var kind string
        if err := rows.Scan(&e.ID, &e.Module, &kind, &e.Bug, &e.Author, &e.Message, &e.At); err != nil { return nil, err }
        e.Kind = domain.EventKind(kind)
        out = append(out, e)
    }
    return out, rows.Err()
}

func (r *Repository) ListDeployments(ctx context.Context, since time.Time) ([]domain.Deployment, error) {
    rows, err := r.db.Pool.Query(ctx, `
        SELECT ext_id, module, outcome, at, recovered_at
        FROM deployments WHERE at >= $1 ORDER BY at`, since)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Deployment
    for rows.Next() {
        var d domain.Deployment
        var outcome string
        if err := rows.Scan(&d.ID, &d.Module, &outcome, &d.At, &d.RecoveredAt); err != nil { return nil, err }
        d.Outcome = domain.Outcome(outcome)
        out = append(out, d)
    }
    return out, rows.Err()
}

// UpsertReport stores the rendered report as JSONB, one row per module/week.
func (r *Repository) UpsertReport(ctx context.Context, weekStart time.Time, rep domain.Report) error {
    b, err := json.Marshal(rep)
    if err != nil { return err }
    const q = `INSERT INTO reports_weekly(week_start, module, report) VALUES($1,$2,$3)
        ON CONFLICT (week_start, module) DO UPDATE SET report=EXCLUDED.report, updated_at=now()`
    _, err = r.db.Pool.Exec(ctx, q, weekStart, rep.Module, b)
    return err
}

func (r *Repository) GetReport(ctx context.Context, weekStart time.Time, module string) (*domain.Report, error) {
    var b []byte
    err := r.db.Pool.QueryRow(ctx,
        `SELECT report FROM reports_weekly WHERE week_start=$1 AND module=$2`, weekStart, module).Scan(&b)
    if err != nil { return nil, err }
    var rep domain.Report
    if err := json.Unmarshal(b, &rep); err != nil { return nil, err }
    return &rep, nil
}

// ListReports returns the latest stored report per module for a week.
func (r *Repository) ListReports(ctx context.Context, weekStart time.Time) ([]domain.Report, error) {
    rows, err := r.db.Pool.Query(ctx,
        `SELECT report FROM reports_weekly WHERE week_start=$1 ORDER BY module`, weekStart)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Report
    for rows.Next() {
        var b []byte
        if err := rows.Scan(&b); err != nil { return nil, err }
        var rep domain.Report
        if err := json.Unmarshal(b, &rep); err != nil { return nil, err }
        out = append(out, rep)
    }
    return out, rows.Err()
}

// Job runs
func (r *Repository) StartJobRun(ctx context.Context, reposJSON string) (int64, error) {
    const q = `INSERT INTO job_runs(started_at, repos, success) VALUES(now(), $1, false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, reposJSON).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishJobRun(ctx context.Context, id int64, recordsScanned, modulesReported int, success bool, errStr string) error {
    const q = `UPDATE job_runs SET finished_at=now(), records_scanned=$2, modules_reported=$3, success=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, recordsScanned, modulesReported, success, errStr)
    return err
}

type LastRun struct {
    StartedAt       time.Time  `json:"started_at"`
    FinishedAt      *time.Time `json:"finished_at"`
    Repos           string     `json:"repos"`
    RecordsScanned  int        `json:"records_scanned"`
    ModulesReported int        `json:"modules_reported"`
    Success         bool       `json:"success"`
    Error           string     `json:"error"`
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
    const q = `SELECT started_at, finished_at, repos::text,
        coalesce(records_scanned,0), coalesce(modules_reported,0),
        coalesce(success,false), coalesce(error,'')
        FROM job_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    lr := &LastRun{}
    if err := row.Scan(&lr.StartedAt, &lr.FinishedAt, &lr.Repos, &lr.RecordsScanned, &lr.ModulesReported, &lr.Success, &lr.Error); err != nil {
        return nil, err
    }
    return lr, nil
}
