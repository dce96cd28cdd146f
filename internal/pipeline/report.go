package pipeline

import "time"

// OutcomeStatus classifies what happened to one unit during drafting.
type OutcomeStatus string

const (
	OutcomeDrafted OutcomeStatus = "drafted"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// UnitOutcome is the per-unit line of a build report.
type UnitOutcome struct {
	UnitID   string
	Title    string
	Status   OutcomeStatus
	Reason   string  // why skipped or failed; empty for drafted units
	Score    float64 // final normalized score when reflective drafting ran
	Duration time.Duration
}

// Report summarizes one auto-build run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Units     []UnitOutcome
}

// Drafted counts units that produced a new body this run.
func (r Report) Drafted() int { return r.count(OutcomeDrafted) }

// Skipped counts units left untouched (no synopsis, or existing body without
// overwrite).
func (r Report) Skipped() int { return r.count(OutcomeSkipped) }

// Failed counts units whose drafting was attempted and errored.
func (r Report) Failed() int { return r.count(OutcomeFailed) }

func (r Report) count(status OutcomeStatus) int {
	n := 0
	for _, u := range r.Units {
		if u.Status == status {
			n++
		}
	}
	return n
}
