package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"review-scraper/models"
	"review-scraper/scraper"
	"review-scraper/services"
)

var dotnetDate = regexp.MustCompile(`/Date\((-?\d+)(?:[+-]\d+)?\)/`)

// Embedded pulls the review list out of a JSON object assigned to a script
// variable, e.g. `var initDataReviews = {...};`.
type Embedded struct {
	pattern *regexp.Regexp
	loc     *time.Location
}

// NewEmbedded builds an extractor for the named variable. Dates are rendered
// in loc.
func NewEmbedded(varName string, loc *time.Location) *Embedded {
	return &Embedded{
		pattern: regexp.MustCompile(`(?s)var\s+` + regexp.QuoteMeta(varName) + `\s*=\s*(\{.*?\});`),
		loc:     loc,
	}
}

type embeddedPayload struct {
	ResID json.RawMessage `json:"ResId"`
	Items []embeddedItem  `json:"Items"`
}

type embeddedItem struct {
	ID          json.RawMessage `json:"Id"`
	ResID       json.RawMessage `json:"ResId"`
	Owner       *embeddedOwner  `json:"Owner"`
	AvgRating   any             `json:"AvgRating"`
	Title       *string         `json:"Title"`
	Description *string         `json:"Description"`
	CreatedDate *string         `json:"CreatedDate"`
}

type embeddedOwner struct {
	ID          json.RawMessage `json:"Id"`
	DisplayName *string         `json:"DisplayName"`
}

func (e *Embedded) Extract(page *models.Page) ([]*models.ReviewRecord, error) {
	m := e.pattern.FindStringSubmatch(page.HTML)
	if m == nil {
		return nil, scraper.ErrNoReviewData
	}

	var payload embeddedPayload
	if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", scraper.ErrNoReviewData, err)
	}

	fallbackRes := rawString(payload.ResID)
	reviews := make([]*models.ReviewRecord, 0, len(payload.Items))
	for _, it := range payload.Items {
		if it.Description == nil || strings.TrimSpace(*it.Description) == "" {
			continue
		}

		r := &models.ReviewRecord{
			ID:      rawString(it.ID),
			Rating:  it.AvgRating,
			Title:   it.Title,
			Content: it.Description,
		}

		switch res := rawString(it.ResID); {
		case res != nil:
			r.RestaurantID = *res
		case fallbackRes != nil:
			r.RestaurantID = *fallbackRes
		default:
			r.RestaurantID = RestaurantIDFromURL(page.URL)
		}

		if it.Owner != nil {
			r.UserID = rawString(it.Owner.ID)
			r.UserName = it.Owner.DisplayName
		}
		if it.Title != nil {
			t := services.NormaliseText(*it.Title)
			r.Title = &t
		}
		if it.CreatedDate != nil {
			if day, ts, ok := ParseDotNetDate(*it.CreatedDate, e.loc); ok {
				r.CreatedAt = &day
				r.CreatedAtTimestamp = &ts
			} else {
				r.CreatedAt = it.CreatedDate
			}
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// ParseDotNetDate converts "/Date(1700000000000)/" into a dd-mm-yyyy day in
// loc and the unix timestamp in seconds.
func ParseDotNetDate(s string, loc *time.Location) (string, int64, bool) {
	m := dotnetDate.FindStringSubmatch(s)
	if m == nil {
		return "", 0, false
	}
	msec, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	t := time.UnixMilli(msec).In(loc)
	return t.Format("02-01-2006"), t.Unix(), true
}

// rawString renders a JSON string or number as text; null and absent give nil.
func rawString(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	v := strings.TrimSpace(string(raw))
	return &v
}
