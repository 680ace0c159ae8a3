package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ReviewRecord is one normalised review. Optional fields are nil when the
// page did not carry them. Rating is a string for selector extraction and a
// number for embedded-JSON extraction.
type ReviewRecord struct {
	ID                 *string `json:"ID"`
	RestaurantID       string  `json:"RestaurantID"`
	UserID             *string `json:"UserID"`
	UserName           *string `json:"UserName,omitempty"`
	Rating             any     `json:"Rating"`
	Title              *string `json:"Title,omitempty"`
	Content            *string `json:"Content"`
	CreatedAt          *string `json:"CreatedAt"`
	CreatedAtTimestamp *int64  `json:"CreatedAtTimestamp,omitempty"`
}

// Key is the dedupe identity: the ID when present, else (Title, Content).
func (r *ReviewRecord) Key() string {
	if r.ID != nil && *r.ID != "" {
		return "id:" + *r.ID
	}
	return "tc:" + strconv.Quote(deref(r.Title)) + strconv.Quote(deref(r.Content))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RestaurantResult is the output record for one processed target.
type RestaurantResult struct {
	URL      string          `json:"url"`
	Reviews  []*ReviewRecord `json:"review"`
	InitData struct{}        `json:"initData"`
}

// ScrapeTarget is one page to visit. URL is empty when the input entry had
// no resolvable link.
type ScrapeTarget struct {
	Index    int
	URL      string
	Expected *int
	Source   json.RawMessage
}

// Page is a loaded document handed from a session to an extractor.
type Page struct {
	URL  string
	HTML string
}

// CheckpointState is the durable progress of a run.
type CheckpointState struct {
	LastIndex int                 `json:"last_index"`
	Results   []*RestaurantResult `json:"results"`
}

// FailureRecord is written once for every target that exhausted its retries.
type FailureRecord struct {
	URL   string    `json:"url"`
	Index int       `json:"index"`
	Error string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}

// MissingTarget is an input entry that could not be turned into a URL.
type MissingTarget struct {
	Index  int             `json:"index"`
	Target json.RawMessage `json:"target,omitempty"`
	Reason string          `json:"reason"`
}

// RatingText renders a rating for flat sinks (CSV, SQL).
func RatingText(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	case json.Number:
		return r.String()
	default:
		return fmt.Sprint(r)
	}
}
