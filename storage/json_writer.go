package storage

import (
	"encoding/json"
	"fmt"
	"io"

	"review-scraper/models"
)

// JSONWriter rewrites the output file as one indented JSON array.
type JSONWriter struct {
	path string
}

func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

func (j *JSONWriter) WriteResults(results []*models.RestaurantResult) error {
	if results == nil {
		results = []*models.RestaurantResult{}
	}
	err := writeAtomic(j.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	})
	if err != nil {
		return fmt.Errorf("json: write %s: %w", j.path, err)
	}
	return nil
}

// JSONLWriter rewrites the output file with one result object per line.
type JSONLWriter struct {
	path string
}

func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

func (j *JSONLWriter) WriteResults(results []*models.RestaurantResult) error {
	err := writeAtomic(j.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jsonl: write %s: %w", j.path, err)
	}
	return nil
}

// NewResultWriter picks the writer for format: json, jsonl or csv.
func NewResultWriter(format, path string) (ResultWriter, error) {
	switch format {
	case "json", "":
		return NewJSONWriter(path), nil
	case "jsonl":
		return NewJSONLWriter(path), nil
	case "csv":
		return NewCSVWriter(path), nil
	default:
		return nil, fmt.Errorf("storage: unknown output format %q", format)
	}
}
