package domain

import "time"

// EventKind tags a unit of change activity.
type EventKind string

const (
    KindCommit      EventKind = "commit"
    KindPullRequest EventKind = "pull_request"
)

// Outcome tags a deployment result. Every deployment has exactly one outcome.
type Outcome string

const (
    OutcomeSuccess Outcome = "success"
    OutcomeFailure Outcome = "failure"
)

// ChangeEvent is one immutable unit of work: a commit or a pull request.
type ChangeEvent struct {
    ID      string
    Module  string
    Kind    EventKind
    Bug     bool
    Author  string
    Message string
    At      time.Time
}

// Deployment is one deployment attempt. A failure may carry the timestamp of
// the deployment that recovered it; absence means recovery was never observed.
type Deployment struct {
    ID          string
    Module      string
    Outcome     Outcome
    At          time.Time
    RecoveredAt *time.Time
}

// LeadTime pairs a commit with the deployment that shipped it.
type LeadTime struct {
    Module     string
    CommitAt   time.Time
    DeployedAt time.Time
}

// RawRecord is one scraped row before classification: a commit or a pull
// request title, as fetched from the forge or loaded from a CSV export.
type RawRecord struct {
    Kind    EventKind
    ID      string
    Author  string
    Message string
    At      time.Time
}
