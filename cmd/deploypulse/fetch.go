package main

import (
    "fmt"
    "time"

    "github.com/deploypulse/deploypulse/internal/adapters/github"
    "github.com/deploypulse/deploypulse/internal/config"
    "github.com/deploypulse/deploypulse/internal/export"
    "github.com/deploypulse/deploypulse/internal/logger"
    "github.com/deploypulse/deploypulse/internal/services"
    "github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
    var (
        repos     []string
        sinceDays int
        out       string
    )
    cmd := &cobra.Command{
        Use:   "fetch",
        Short: "Scrape commits and pull requests into a CSV snapshot",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := config.Load()
            if len(repos) > 0 { cfg.GitHubRepos = repos }
            if len(cfg.GitHubRepos) == 0 {
                return fmt.Errorf("no repos: pass --repo or set GITHUB_REPOS")
            }
            log := logger.New(cfg)
            forge := github.NewClient(cfg, log)
            svc := services.New(cfg, log, nil, forge, nil, nil, nil)

            since := time.Now().UTC().AddDate(0, 0, -sinceDays)
            records, err := svc.Collect(cmd.Context(), since)
            if err != nil { return err }
            if err := export.WriteCSV(out, records); err != nil { return err }
            log.Info().Int("records", len(records)).Str("out", out).Msg("fetch done")
            return nil
        },
    }
    cmd.Flags().StringSliceVar(&repos, "repo", nil, "owner/name to scrape (repeatable; defaults to GITHUB_REPOS)")
    cmd.Flags().IntVar(&sinceDays, "since-days", 365, "how far back to scrape")
    cmd.Flags().StringVarP(&out, "out", "o", "records.csv", "output CSV path")
    return cmd
}
