package models

import (
	"time"
)

// RunMode selects how a reconciliation pass treats existing postings
type RunMode string

const (
	// RunModeIncremental correlates first and only extracts new or amended postings
	RunModeIncremental RunMode = "incremental"
	// RunModeFull re-extracts every discovered posting
	RunModeFull RunMode = "full"
)

// ParseRunMode returns the mode for a CLI argument; empty means incremental
func ParseRunMode(s string) (RunMode, bool) {
	switch RunMode(s) {
	case "", RunModeIncremental:
		return RunModeIncremental, true
	case RunModeFull:
		return RunModeFull, true
	}
	return "", false
}

// Classification is the outcome for one observed business key
type Classification string

const (
	ClassNew         Classification = "NEW"
	ClassCandidate   Classification = "CANDIDATE_AMENDED"
	ClassAmended     Classification = "AMENDED"
	ClassUnchanged   Classification = "UNCHANGED"
	ClassNotObserved Classification = "NOT_OBSERVED"
)

// RunResult is the change-set of one reconciliation pass. It is always well formed,
// including when the run failed.
type RunResult struct {
	RunID           string     `json:"run_id"`
	Source          string     `json:"source"`
	Mode            RunMode    `json:"mode"`
	New             []*Posting `json:"new"`
	Amendments      []*Posting `json:"amendments"`
	UnchangedCount  int        `json:"unchanged_count"`
	RemovedCount    int        `json:"removed_count"`
	ProcessedCount  int        `json:"processed_count"`
	FailedCount     int        `json:"failed_count"`
	Success         bool       `json:"success"`
	Error           *string    `json:"error"`
	DurationSeconds float64    `json:"duration_seconds"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
}

// NewRunResult creates an empty result for a run starting now
func NewRunResult(runID, source string, mode RunMode) *RunResult {
	return &RunResult{
		RunID:      runID,
		Source:     source,
		Mode:       mode,
		New:        []*Posting{},
		Amendments: []*Posting{},
		StartTime:  time.Now().UTC(),
	}
}

// Finish stamps end time and duration and sets the outcome
func (r *RunResult) Finish(err error) {
	r.EndTime = time.Now().UTC()
	r.DurationSeconds = r.EndTime.Sub(r.StartTime).Seconds()
	if err != nil {
		msg := err.Error()
		r.Error = &msg
		r.Success = false
		return
	}
	r.Error = nil
	r.Success = true
}

// HasChanges reports whether there is anything for a notifier to send
func (r *RunResult) HasChanges() bool {
	return len(r.New) > 0 || len(r.Amendments) > 0
}

// SuccessionResult is the outcome of one succession check
type SuccessionResult struct {
	CheckedCount   int       `json:"checked_count"`
	SucceededCount int       `json:"succeeded_count"`
	SucceededCodes []string  `json:"succeeded_codes"`
	Success        bool      `json:"success"`
	Error          *string   `json:"error"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}
