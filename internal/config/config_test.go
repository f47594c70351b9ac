package config

import (
    "testing"
    "time"
)

func TestLoad_Defaults(t *testing.T) {
    cfg := Load()
    if cfg.AppEnv != "dev" { t.Fatalf("AppEnv = %q", cfg.AppEnv) }
    if cfg.HTTPAddr != ":8080" { t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr) }
    if cfg.PeriodWeeks != 4 { t.Fatalf("PeriodWeeks = %d", cfg.PeriodWeeks) }
    if cfg.GitHubBaseURL != "https://api.github.com" { t.Fatalf("GitHubBaseURL = %q", cfg.GitHubBaseURL) }
    if cfg.WorkersGitHub != 4 { t.Fatalf("WorkersGitHub = %d", cfg.WorkersGitHub) }
}

func TestLoad_Overrides(t *testing.T) {
    t.Setenv("PERIOD_WEEKS", "52")
    t.Setenv("GITHUB_REPOS", "prometheus-community/helm-charts, acme/charts")
    t.Setenv("TELEGRAM_CHAT_IDS", "100,-200")
    t.Setenv("OPENAI_TIMEOUT", "30s")
    cfg := Load()
    if cfg.PeriodWeeks != 52 { t.Fatalf("PeriodWeeks = %d", cfg.PeriodWeeks) }
    if len(cfg.GitHubRepos) != 2 || cfg.GitHubRepos[1] != "acme/charts" {
        t.Fatalf("GitHubRepos = %v", cfg.GitHubRepos)
    }
    if len(cfg.TelegramChatIDs) != 2 || cfg.TelegramChatIDs[1] != -200 {
        t.Fatalf("TelegramChatIDs = %v", cfg.TelegramChatIDs)
    }
    if cfg.OpenAITimeout != 30*time.Second { t.Fatalf("OpenAITimeout = %v", cfg.OpenAITimeout) }
}

func TestLoad_UsernamesFallback(t *testing.T) {
    t.Setenv("TELEGRAM_CHAT_IDS", "@platform_team,@sre")
    cfg := Load()
    if len(cfg.TelegramChatIDs) != 0 { t.Fatalf("expected no numeric ids: %v", cfg.TelegramChatIDs) }
    if len(cfg.TelegramChatUsernames) != 2 || cfg.TelegramChatUsernames[0] != "@platform_team" {
        t.Fatalf("TelegramChatUsernames = %v", cfg.TelegramChatUsernames)
    }
}

func TestLoad_BadNumbersFallBackToDefaults(t *testing.T) {
    t.Setenv("PERIOD_WEEKS", "not-a-number")
    t.Setenv("HTTP_TIMEOUT", "soon")
    cfg := Load()
    if cfg.PeriodWeeks != 4 { t.Fatalf("PeriodWeeks = %d", cfg.PeriodWeeks) }
    if cfg.HTTPTimeout != 15*time.Second { t.Fatalf("HTTPTimeout = %v", cfg.HTTPTimeout) }
}
