package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"review-scraper/models"
)

// JSONFile is a Store backed by a single indented JSON document.
type JSONFile[T any] struct {
	Path    string
	Default func() T
}

// Load reads the file, returning Default() when it does not exist or is empty.
func (f *JSONFile[T]) Load() (T, error) {
	var out T
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		if f.Default != nil {
			return f.Default(), nil
		}
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("storage: read %s: %w", f.Path, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("storage: decode %s: %w", f.Path, err)
	}
	return out, nil
}

// Save overwrites the file atomically.
func (f *JSONFile[T]) Save(v T) error {
	err := writeAtomic(f.Path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
	if err != nil {
		return fmt.Errorf("storage: save %s: %w", f.Path, err)
	}
	return nil
}

// NewCheckpointFile returns the checkpoint store; its default is
// {"last_index": 0, "results": []}.
func NewCheckpointFile(path string) *JSONFile[models.CheckpointState] {
	return &JSONFile[models.CheckpointState]{
		Path: path,
		Default: func() models.CheckpointState {
			return models.CheckpointState{Results: []*models.RestaurantResult{}}
		},
	}
}

// NewFailureLog returns the failure log store, defaulting to an empty list.
func NewFailureLog(path string) *JSONFile[[]models.FailureRecord] {
	return &JSONFile[[]models.FailureRecord]{
		Path:    path,
		Default: func() []models.FailureRecord { return []models.FailureRecord{} },
	}
}

// NewMissingLog returns the store for targets without a URL.
func NewMissingLog(path string) *JSONFile[[]models.MissingTarget] {
	return &JSONFile[[]models.MissingTarget]{
		Path:    path,
		Default: func() []models.MissingTarget { return []models.MissingTarget{} },
	}
}
