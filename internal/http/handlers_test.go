package http

import (
    "context"
    "encoding/json"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/deploypulse/deploypulse/internal/domain"
    "github.com/deploypulse/deploypulse/internal/metrics"
    "github.com/rs/zerolog"
)

type fakeService struct {
    lastModule string
    lastWeeks  int
    helpChat   int64
}

func (f *fakeService) RunWeeklyReport(context.Context) error                  { return nil }
func (f *fakeService) RunOnDemandReport(_ context.Context, _ int64, _ int) error { return nil }
func (f *fakeService) SendHelp(_ context.Context, chatID int64) error {
    f.helpChat = chatID
    return nil
}
func (f *fakeService) GetLastRun(context.Context) (any, error) {
    return map[string]any{"success": true}, nil
}
func (f *fakeService) ReportForModule(_ context.Context, module string, weeks int) (*domain.Report, error) {
    if weeks <= 0 { return nil, metrics.ErrInvalidPeriod }
    f.lastModule, f.lastWeeks = module, weeks
    return &domain.Report{Module: module, PeriodWeeks: float64(weeks), TotalCommits: 560}, nil
}

func TestModuleReport(t *testing.T) {
    svc := &fakeService{}
    cfg := config.Config{AppEnv: "dev", PeriodWeeks: 4}
    r := NewRouter(cfg, zerolog.Nop(), svc)

    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest("GET", "/reports/web?weeks=8", nil))
    if w.Code != 200 { t.Fatalf("status = %d body = %s", w.Code, w.Body.String()) }
    var rep domain.Report
    if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil { t.Fatal(err) }
    if rep.Module != "web" || rep.PeriodWeeks != 8 || rep.TotalCommits != 560 {
        t.Fatalf("unexpected report: %+v", rep)
    }
    if svc.lastWeeks != 8 { t.Fatalf("weeks not forwarded: %d", svc.lastWeeks) }
    if !strings.Contains(w.Body.String(), `"mean_time_to_recovery_hours":null`) {
        t.Fatalf("undefined MTTR must serialize as null: %s", w.Body.String())
    }
}

func TestModuleReport_DefaultWeeks(t *testing.T) {
    svc := &fakeService{}
    r := NewRouter(config.Config{AppEnv: "dev", PeriodWeeks: 4}, zerolog.Nop(), svc)
    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest("GET", "/reports/web", nil))
    if w.Code != 200 { t.Fatalf("status = %d", w.Code) }
    if svc.lastWeeks != 4 { t.Fatalf("expected configured default, got %d", svc.lastWeeks) }
}

func TestModuleReport_InvalidWeeks(t *testing.T) {
    r := NewRouter(config.Config{AppEnv: "dev", PeriodWeeks: 4}, zerolog.Nop(), &fakeService{})
    for _, q := range []string{"?weeks=0", "?weeks=-2", "?weeks=abc"} {
        w := httptest.NewRecorder()
        r.ServeHTTP(w, httptest.NewRequest("GET", "/reports/web"+q, nil))
        if w.Code != 400 { t.Fatalf("%s: status = %d, want 400", q, w.Code) }
    }
}

func TestTelegramWebhook_SecretRequired(t *testing.T) {
    svc := &fakeService{}
    cfg := config.Config{AppEnv: "dev", PeriodWeeks: 4, TelegramWebhookSecret: "s3cret"}
    r := NewRouter(cfg, zerolog.Nop(), svc)

    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest("POST", "/telegram/webhook", strings.NewReader(`{}`)))
    if w.Code != 403 { t.Fatalf("missing secret: status = %d, want 403", w.Code) }

    body := `{"message":{"chat":{"id":42},"text":"/help"}}`
    req := httptest.NewRequest("POST", "/telegram/webhook", strings.NewReader(body))
    req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
    w = httptest.NewRecorder()
    r.ServeHTTP(w, req)
    if w.Code != 200 { t.Fatalf("with secret: status = %d", w.Code) }

    // path-secret variant
    req = httptest.NewRequest("POST", "/telegram/webhook/s3cret", strings.NewReader(body))
    w = httptest.NewRecorder()
    r.ServeHTTP(w, req)
    if w.Code != 200 { t.Fatalf("path secret: status = %d", w.Code) }
}

func TestHealthz(t *testing.T) {
    r := NewRouter(config.Config{AppEnv: "dev"}, zerolog.Nop(), &fakeService{})
    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
    if w.Code != 200 { t.Fatalf("status = %d", w.Code) }
}
