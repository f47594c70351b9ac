/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
    "errors"
    "fmt"
    "time"

    "github.com/deploypulse/deploypulse/internal/domain"
)

var (
    // ErrInvalidEventKind marks a record with an unrecognized kind or outcome.
    // Callers skip the record and keep folding the rest of the batch.
    ErrInvalidEventKind = errors.New("metrics: invalid event kind")
    // ErrInvalidRecovery marks a failure whose recovery timestamp precedes it.
    ErrInvalidRecovery = errors.New("metrics: recovery before failure")
    // ErrInvalidPeriod is fatal to a Summarize call.
    ErrInvalidPeriod = errors.New("metrics: period must be positive")
)

// Aggregator folds a finite batch of change and deployment events into the
// seven summary statistics. It is a plain synchronous accumulator: no I/O,
// no goroutines, callers feed it one event at a time and call Summarize once.
type Aggregator struct {
    commits int
    bugs    int
    prs     int

    deployments int
    failures    int

    recoveryHours []float64
    leadHours     []float64

    rejected int
}

func New() *Aggregator { return &Aggregator{} }

// Record counts one change event. The bug flag is only honored on commits so
// total_commits >= total_bugs holds for every batch; bug-flagged pull request
// titles describe the commit that fixes the bug, not a second defect.
func (a *Aggregator) Record(ev domain.ChangeEvent) error {
    switch ev.Kind {
    case domain.KindCommit:
        a.commits++
        if ev.Bug { a.bugs++ }
    case domain.KindPullRequest:
        a.prs++
    default:
        a.rejected++
        return fmt.Errorf("%w: %q", ErrInvalidEventKind, ev.Kind)
    }
    return nil
}

// RecordDeployment counts one deployment attempt. A failure contributes to
// MTTR only when it carries a recovery timestamp at or after the failure.
func (a *Aggregator) RecordDeployment(d domain.Deployment) error {
    switch d.Outcome {
    case domain.OutcomeSuccess:
        a.deployments++
    case domain.OutcomeFailure:
        if d.RecoveredAt != nil && d.RecoveredAt.Before(d.At) {
            a.rejected++
            return fmt.Errorf("%w: %s < %s", ErrInvalidRecovery, d.RecoveredAt.Format(time.RFC3339), d.At.Format(time.RFC3339))
        }
        a.deployments++
        a.failures++
        if d.RecoveredAt != nil {
            a.recoveryHours = append(a.recoveryHours, d.RecoveredAt.Sub(d.At).Hours())
        }
    default:
        a.rejected++
        return fmt.Errorf("%w: %q", ErrInvalidEventKind, d.Outcome)
    }
    return nil
}

// RecordLeadTime accumulates one commit-to-deployment interval.
func (a *Aggregator) RecordLeadTime(lt domain.LeadTime) {
    a.leadHours = append(a.leadHours, lt.DeployedAt.Sub(lt.CommitAt).Hours())
}

// Rejected reports how many records were refused so far.
func (a *Aggregator) Rejected() int { return a.rejected }

// Summarize produces the report for the given observation period in weeks.
// Ratios over an empty denominator come back undefined, never as a made-up 0.
func (a *Aggregator) Summarize(module string, periodWeeks float64) (domain.Report, error) {
    if periodWeeks <= 0 {
        return domain.Report{}, fmt.Errorf("%w: got %v", ErrInvalidPeriod, periodWeeks)
    }
    r := domain.Report{
        Module:       module,
        PeriodWeeks:  periodWeeks,
        GeneratedAt:  time.Now().UTC(),
        TotalCommits: a.commits,
        TotalBugs:    a.bugs,
        TotalPRs:     a.prs,

        WeeklyDeploymentFrequency: float64(a.deployments) / periodWeeks,
    }
    if a.deployments > 0 {
        r.ChangeFailureRate = float64(a.failures) / float64(a.deployments) * 100
        r.ChangeFailureRateDefined = true
    }
    if len(a.recoveryHours) > 0 {
        r.MeanTimeToRecoveryHours = domain.DefinedHours(mean(a.recoveryHours))
    }
    if len(a.leadHours) > 0 {
        r.LeadTimeForChangesHours = domain.DefinedHours(mean(a.leadHours))
    }
    return r, nil
}

func mean(xs []float64) float64 {
    sum := 0.0
    for _, x := range xs { sum += x }
    return sum / float64(len(xs))
}
