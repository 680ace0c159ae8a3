package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// mergeFile overlays the json5 file at name, and then name.local.<ext> if it
// exists, onto cfg. Only non-zero values in a file override what is already
// set, so a file cannot switch a boolean back to false.
func mergeFile(cfg *Config, name string) error {
	base, err := readJSON5(name)
	if err != nil {
		return err
	}
	if base != nil {
		if err := mergo.Merge(cfg, base, mergo.WithOverride); err != nil {
			return err
		}
	}

	local, err := readJSON5(localName(name))
	if err != nil {
		return err
	}
	if local != nil {
		if err := mergo.Merge(cfg, local, mergo.WithOverride); err != nil {
			return err
		}
		log.Printf("[config] Merged local overrides from %s", localName(name))
	}
	return nil
}

func readJSON5(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var out Config
	if err := json5.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &out, nil
}

// localName turns "dir/scraper.json5" into "dir/scraper.local.json5".
func localName(name string) string {
	dir := filepath.Dir(name)
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, prefix+".local"+ext)
}
