package main

import (
    "encoding/json"
    "fmt"
    "os"
    "sort"

    "github.com/deploypulse/deploypulse/internal/classify"
    "github.com/deploypulse/deploypulse/internal/domain"
    "github.com/deploypulse/deploypulse/internal/export"
    "github.com/deploypulse/deploypulse/internal/metrics"
    "github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
    var (
        in        string
        out       string
        weeks     int
        rulesFile string
    )
    cmd := &cobra.Command{
        Use:   "analyze",
        Short: "Compute per-module DORA reports from a CSV snapshot",
        RunE: func(cmd *cobra.Command, args []string) error {
            records, err := export.LoadCSV(in)
            if err != nil { return err }

            rules := classify.DefaultRules()
            if rulesFile != "" {
                rules, err = classify.LoadRules(rulesFile)
                if err != nil { return err }
            }
            classifier := classify.New(rules)

            byModule := classifier.Apply(records)
            reports := make([]domain.Report, 0, len(byModule))
            for module, me := range byModule {
                agg := metrics.New()
                for _, c := range me.Changes {
                    if err := agg.Record(c); err != nil {
                        fmt.Fprintf(os.Stderr, "warning: %s: skipping %s: %v\n", module, c.ID, err)
                    }
                }
                for _, d := range me.Deployments {
                    if err := agg.RecordDeployment(d); err != nil {
                        fmt.Fprintf(os.Stderr, "warning: %s: skipping %s: %v\n", module, d.ID, err)
                    }
                }
                for _, lt := range me.LeadTimes {
                    agg.RecordLeadTime(lt)
                }
                rep, err := agg.Summarize(module, float64(weeks))
                if err != nil { return err }
                reports = append(reports, rep)
            }
            sort.Slice(reports, func(i, j int) bool { return reports[i].Module < reports[j].Module })

            if out != "" {
                if err := export.WriteReportsJSON(out, reports); err != nil { return err }
                fmt.Printf("wrote %d module reports to %s\n", len(reports), out)
                return nil
            }
            b, err := json.MarshalIndent(reports, "", "    ")
            if err != nil { return err }
            fmt.Println(string(b))
            return nil
        },
    }
    cmd.Flags().StringVarP(&in, "in", "i", "records.csv", "input CSV snapshot")
    cmd.Flags().StringVarP(&out, "out", "o", "", "output JSON path (default: stdout)")
    cmd.Flags().IntVar(&weeks, "weeks", 52, "analysis period in weeks")
    cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML keyword rules file (default: built-in rules)")
    return cmd
}
