package models

import "time"

// Outcome is how a single target ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePartial
	OutcomeFailed
	OutcomeMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	case OutcomeFailed:
		return "failed"
	case OutcomeMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// RunSummary holds the counters reported at the end of a run.
type RunSummary struct {
	Total      int
	StartIndex int
	Processed  int
	Succeeded  int
	Partial    int
	Failed     int
	Missing    int
	Reviews    int
	ErrorTypes map[string]int
	Elapsed    time.Duration
}

// Record counts one finished target.
func (s *RunSummary) Record(o Outcome, reviews int) {
	s.Processed++
	s.Reviews += reviews
	switch o {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomePartial:
		s.Partial++
	case OutcomeFailed:
		s.Failed++
	case OutcomeMissing:
		s.Missing++
	}
}
