/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/deploypulse/deploypulse/internal/adapters/github"
    "github.com/deploypulse/deploypulse/internal/adapters/openai"
    "github.com/deploypulse/deploypulse/internal/adapters/telegram"
    "github.com/deploypulse/deploypulse/internal/classify"
    "github.com/deploypulse/deploypulse/internal/config"
    apphttp "github.com/deploypulse/deploypulse/internal/http"
    "github.com/deploypulse/deploypulse/internal/jobs"
    "github.com/deploypulse/deploypulse/internal/logger"
    "github.com/deploypulse/deploypulse/internal/repo"
    "github.com/deploypulse/deploypulse/internal/repo/migrations"
    "github.com/deploypulse/deploypulse/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    if err := migrations.Up(cfg.DBDSN); err != nil {
        log.Fatal().Err(err).Msg("migrations failed")
    }
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()

    // Classifier: defaults, optional YAML rules file with hot reload
    rules := classify.DefaultRules()
    if cfg.RulesFile != "" {
        loaded, err := classify.LoadRules(cfg.RulesFile)
        if err != nil {
            log.Error().Err(err).Str("file", cfg.RulesFile).Msg("rules load failed; using defaults")
        } else {
            rules = loaded
        }
    }
    classifier := classify.New(rules)
    if cfg.RulesFile != "" {
        go func() {
            if err := classifier.Watch(ctx, cfg.RulesFile, log); err != nil {
                log.Error().Err(err).Msg("rules watcher stopped")
            }
        }()
    }

    // Adapters
    forge := github.NewClient(cfg, log)
    llm := openai.NewClient(cfg, log)
    tg := telegram.NewClient(cfg, log)

    // Services
    repository := repo.NewRepository(db, log)
    svc := services.New(cfg, log, repository, forge, llm, tg, classifier)

    // HTTP server (Gin)
    router := apphttp.NewRouter(cfg, log, svc)

    // Register Telegram webhook only if PUBLIC_BASE_URL is HTTPS
    if cfg.TelegramWebhookSecret != "" && strings.HasPrefix(strings.ToLower(cfg.PublicBaseURL), "https://") {
        go func() {
            ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second); defer cancel()
            base := strings.TrimRight(cfg.PublicBaseURL, "/")
            webhookURL := base + "/telegram/webhook/" + cfg.TelegramWebhookSecret
            if err := tg.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
                log.Error().Err(err).Str("url", webhookURL).Msg("telegram setWebhook failed")
            } else {
                log.Info().Str("url", webhookURL).Msg("telegram setWebhook ok")
            }
        }()
    }

    // Cron
    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
