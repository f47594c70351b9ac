package domain

import (
    "encoding/json"
    "time"
)

// Hours is an averaged duration metric that may be undefined. An empty sample
// set yields Defined=false and is serialized as JSON null, never as 0.0.
type Hours struct {
    Value   float64
    Defined bool
}

func DefinedHours(v float64) Hours { return Hours{Value: v, Defined: true} }

func (h Hours) MarshalJSON() ([]byte, error) {
    if !h.Defined { return []byte("null"), nil }
    return json.Marshal(h.Value)
}

func (h *Hours) UnmarshalJSON(b []byte) error {
    if string(b) == "null" { *h = Hours{}; return nil }
    var v float64
    if err := json.Unmarshal(b, &v); err != nil { return err }
    *h = Hours{Value: v, Defined: true}
    return nil
}

// Report holds the seven summary statistics for one module over one
// observation period. ChangeFailureRate is reported as 0 with the defined
// flag false when there were no deployments to divide by.
type Report struct {
    Module      string    `json:"module"`
    PeriodWeeks float64   `json:"period_weeks"`
    GeneratedAt time.Time `json:"generated_at"`

    TotalCommits int `json:"total_commits"`
    TotalBugs    int `json:"total_bugs"`
    TotalPRs     int `json:"total_prs"`

    WeeklyDeploymentFrequency float64 `json:"weekly_deployment_frequency"`
    ChangeFailureRate         float64 `json:"change_failure_rate"`
    ChangeFailureRateDefined  bool    `json:"change_failure_rate_defined"`

    MeanTimeToRecoveryHours Hours `json:"mean_time_to_recovery_hours"`
    LeadTimeForChangesHours Hours `json:"lead_time_for_changes_hours"`
}
