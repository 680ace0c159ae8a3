package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"review-scraper/models"
)

var csvHeader = []string{
	"url", "restaurant_id", "review_id", "user_id", "user_name",
	"rating", "title", "content", "created_at", "created_at_ts",
}

// CSVWriter flattens results into one row per review and rewrites the file
// on every call.
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (c *CSVWriter) WriteResults(results []*models.RestaurantResult) error {
	err := writeAtomic(c.path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, res := range results {
			for _, r := range res.Reviews {
				if err := w.Write(csvRow(res.URL, r)); err != nil {
					return fmt.Errorf("write row: %w", err)
				}
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return fmt.Errorf("csv: write %s: %w", c.path, err)
	}
	return nil
}

func csvRow(url string, r *models.ReviewRecord) []string {
	ts := ""
	if r.CreatedAtTimestamp != nil {
		ts = strconv.FormatInt(*r.CreatedAtTimestamp, 10)
	}
	return []string{
		url,
		r.RestaurantID,
		val(r.ID),
		val(r.UserID),
		val(r.UserName),
		models.RatingText(r.Rating),
		val(r.Title),
		val(r.Content),
		val(r.CreatedAt),
		ts,
	}
}

func val(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
