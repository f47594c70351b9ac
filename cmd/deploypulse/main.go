// deploypulse is the offline companion to the API server: fetch scrapes a
// forge into a CSV snapshot, analyze turns a snapshot into DORA reports
// without needing Postgres or Telegram.
package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"
)

func main() {
    root := &cobra.Command{
        Use:           "deploypulse",
        Short:         "DORA metrics from commit history",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    root.AddCommand(newFetchCmd())
    root.AddCommand(newAnalyzeCmd())
    if err := root.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "error:", err)
        os.Exit(1)
    }
}
