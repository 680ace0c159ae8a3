package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"review-scraper/models"
)

// urlKeys are the object fields that may carry a target link, in priority order.
var urlKeys = []string{"url", "Url", "URL", "RestaurantUrl", "MicrositeUrl", "DetailUrl", "link"}

// LoadTargets reads the input list. Supported shapes:
//   - .json: an array of URL strings or objects
//   - .jsonl / .ndjson: one string, object or bare URL per line
//   - anything else: one URL per line, '#' starts a comment
//
// Relative links are resolved against baseURL. Entries without a usable link
// are kept with an empty URL so indices stay stable.
func LoadTargets(path, baseURL string) ([]models.ScrapeTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("targets: read %s: %w", path, err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("targets: base url %q: %w", baseURL, err)
	}

	var entries []json.RawMessage
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("targets: decode %s: %w", path, err)
		}
	case ".jsonl", ".ndjson":
		entries, err = splitLines(data, true)
	default:
		entries, err = splitLines(data, false)
	}
	if err != nil {
		return nil, fmt.Errorf("targets: scan %s: %w", path, err)
	}

	targets := make([]models.ScrapeTarget, 0, len(entries))
	for i, raw := range entries {
		link, expected := parseEntry(raw)
		targets = append(targets, models.ScrapeTarget{
			Index:    i,
			URL:      NormalizeURL(link, base),
			Expected: expected,
			Source:   raw,
		})
	}
	return targets, nil
}

func splitLines(data []byte, structured bool) ([]json.RawMessage, error) {
	var out []json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || (!structured && strings.HasPrefix(line, "#")) {
			continue
		}
		if structured && (line[0] == '{' || line[0] == '"') && json.Valid([]byte(line)) {
			out = append(out, json.RawMessage(line))
			continue
		}
		encoded, err := json.Marshal(line)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return out, sc.Err()
}

func parseEntry(raw json.RawMessage) (string, *int) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", nil
	}

	link := ""
	for _, k := range urlKeys {
		if v, ok := obj[k]; ok {
			if err := json.Unmarshal(v, &link); err == nil && strings.TrimSpace(link) != "" {
				break
			}
			link = ""
		}
	}
	return link, expectedCount(obj["TotalReview"])
}

func expectedCount(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := strconv.Atoi(n.String())
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// NormalizeURL makes link absolute against base. Blank input stays blank.
func NormalizeURL(link string, base *url.URL) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if base == nil || base.Host == "" {
		return link
	}
	if !strings.HasPrefix(link, "/") && !strings.HasPrefix(link, "//") {
		link = "/" + link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
