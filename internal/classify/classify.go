/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package classify

import (
    "regexp"
    "sort"
    "strings"
    "sync"

    "github.com/deploypulse/deploypulse/internal/domain"
)

var componentRe = regexp.MustCompile(`\[([^\]]+)\]`)

// Component extracts the module name from the first [bracketed] group of a
// message. Empty when the message carries no component tag.
func Component(message string) string {
    m := componentRe.FindStringSubmatch(message)
    if len(m) < 2 { return "" }
    return strings.TrimSpace(m[1])
}

// Flags are the classification results for one message.
type Flags struct {
    Deployment  bool
    Failure     bool
    Bug         bool
    PullRequest bool
}

// Classifier tags messages against a keyword rule set. Safe for concurrent
// use; Update swaps the rules atomically (rules file hot-reload).
type Classifier struct {
    mu    sync.RWMutex
    rules Rules
}

func New(rules Rules) *Classifier {
    c := &Classifier{}
    c.Update(rules)
    return c
}

func (c *Classifier) Update(rules Rules) {
    lower := func(in []string) []string {
        out := make([]string, 0, len(in))
        for _, s := range in {
            s = strings.ToLower(strings.TrimSpace(s))
            if s != "" { out = append(out, s) }
        }
        return out
    }
    c.mu.Lock()
    c.rules = Rules{
        Deployment:  lower(rules.Deployment),
        Failure:     lower(rules.Failure),
        Bug:         lower(rules.Bug),
        PullRequest: lower(rules.PullRequest),
    }
    c.mu.Unlock()
}

func containsAny(msg string, keys []string) bool {
    for _, k := range keys {
        if strings.Contains(msg, k) { return true }
    }
    return false
}

func (c *Classifier) Classify(message string) Flags {
    c.mu.RLock()
    rules := c.rules
    c.mu.RUnlock()
    msg := strings.ToLower(message)
    return Flags{
        Deployment:  containsAny(msg, rules.Deployment),
        Failure:     containsAny(msg, rules.Failure),
        Bug:         containsAny(msg, rules.Bug),
        PullRequest: containsAny(msg, rules.PullRequest),
    }
}

// ModuleEvents groups the classified facts for one module.
type ModuleEvents struct {
    Module      string
    Changes     []domain.ChangeEvent
    Deployments []domain.Deployment
    LeadTimes   []domain.LeadTime
}

// Apply classifies a batch of raw records into per-module change events,
// deployments, and lead-time pairs. Records without a [component] tag are
// dropped; a record flagged both failure and deployment counts as a failed
// deployment (one outcome per deployment). A failure recovers at the next
// deployment in the same module, when one exists.
func (c *Classifier) Apply(records []domain.RawRecord) map[string]*ModuleEvents {
    sorted := make([]domain.RawRecord, len(records))
    copy(sorted, records)
    sort.Slice(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

    out := map[string]*ModuleEvents{}
    get := func(module string) *ModuleEvents {
        me, ok := out[module]
        if !ok { me = &ModuleEvents{Module: module}; out[module] = me }
        return me
    }

    for _, rec := range sorted {
        module := Component(rec.Message)
        if module == "" { continue }
        flags := c.Classify(rec.Message)
        me := get(module)

        kind := rec.Kind
        if kind == "" {
            kind = domain.KindCommit
            if flags.PullRequest { kind = domain.KindPullRequest }
        }
        me.Changes = append(me.Changes, domain.ChangeEvent{
            ID:      rec.ID,
            Module:  module,
            Kind:    kind,
            Bug:     flags.Bug,
            Author:  rec.Author,
            Message: rec.Message,
            At:      rec.At,
        })

        switch {
        case flags.Failure:
            me.Deployments = append(me.Deployments, domain.Deployment{
                ID: rec.ID, Module: module, Outcome: domain.OutcomeFailure, At: rec.At,
            })
        case flags.Deployment:
            me.Deployments = append(me.Deployments, domain.Deployment{
                ID: rec.ID, Module: module, Outcome: domain.OutcomeSuccess, At: rec.At,
            })
        }
    }

    for _, me := range out {
        resolveRecoveries(me.Deployments)
        me.LeadTimes = PairLeadTimes(me.Changes, me.Deployments)
    }
    return out
}

// resolveRecoveries marks each failure as recovered at the next successful
// deployment in the same module. Failures with nothing after them stay open.
func resolveRecoveries(deps []domain.Deployment) {
    for i := range deps {
        if deps[i].Outcome != domain.OutcomeFailure { continue }
        for j := i + 1; j < len(deps); j++ {
            if deps[j].Outcome != domain.OutcomeSuccess { continue }
            if deps[j].At.Before(deps[i].At) { continue }
            at := deps[j].At
            deps[i].RecoveredAt = &at
            break
        }
    }
}

// PairLeadTimes pairs every successful deployment with the most recent
// commit at or before it. Both inputs must belong to a single module.
func PairLeadTimes(changes []domain.ChangeEvent, deps []domain.Deployment) []domain.LeadTime {
    var commits []domain.ChangeEvent
    for _, ev := range changes {
        if ev.Kind == domain.KindCommit { commits = append(commits, ev) }
    }
    sort.Slice(commits, func(i, j int) bool { return commits[i].At.Before(commits[j].At) })

    var out []domain.LeadTime
    for _, d := range deps {
        if d.Outcome != domain.OutcomeSuccess { continue }
        // Latest commit not after the deployment; skip the deployment's own record.
        idx := sort.Search(len(commits), func(i int) bool { return commits[i].At.After(d.At) }) - 1
        for idx >= 0 && commits[idx].ID != "" && commits[idx].ID == d.ID { idx-- }
        if idx < 0 { continue }
        out = append(out, domain.LeadTime{Module: d.Module, CommitAt: commits[idx].At, DeployedAt: d.At})
    }
    return out
}
