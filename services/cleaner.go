package services

import (
	"strings"
	"unicode"

	"review-scraper/models"
	"review-scraper/utils"
)

// Cleaner prepares extracted reviews for persistence.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Dedupe keeps the first record for every Key and preserves order.
func (c *Cleaner) Dedupe(reviews []*models.ReviewRecord) []*models.ReviewRecord {
	seen := utils.NewKeySet()
	result := make([]*models.ReviewRecord, 0, len(reviews))

	for _, r := range reviews {
		if r == nil {
			continue
		}
		if !seen.Add(r.Key()) {
			continue
		}
		result = append(result, r)
	}

	if dropped := len(reviews) - len(result); dropped > 0 && c.logger != nil {
		c.logger.Debug("[cleaner] Dropped %d duplicate reviews (%d distinct keys)", dropped, seen.Size())
	}
	return result
}

// ApplyExpected caps reviews at the expected count. Fewer reviews than
// expected marks the target partial; no expectation means success.
func (c *Cleaner) ApplyExpected(reviews []*models.ReviewRecord, expected *int) ([]*models.ReviewRecord, models.Outcome) {
	if expected == nil {
		return reviews, models.OutcomeSuccess
	}
	if len(reviews) > *expected {
		return reviews[:*expected], models.OutcomeSuccess
	}
	if len(reviews) < *expected {
		return reviews, models.OutcomePartial
	}
	return reviews, models.OutcomeSuccess
}

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
