package storage

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const base = "https://www.foody.vn"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTargetsPlainText(t *testing.T) {
	path := writeFile(t, "links.txt", "https://a/x\n\n# skipped\n/ho-chi-minh/quan-a\n")

	targets, err := LoadTargets(path, base)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "https://a/x", targets[0].URL)
	require.Equal(t, "https://www.foody.vn/ho-chi-minh/quan-a", targets[1].URL)
	require.Equal(t, 1, targets[1].Index)
}

func TestLoadTargetsJSONArray(t *testing.T) {
	body := `[
		"https://a/x",
		{"RestaurantUrl": "/ha-noi/quan-b", "TotalReview": 12},
		{"Name": "no link here"},
		{"url": "ha-noi/quan-c", "TotalReview": "3"}
	]`
	targets, err := LoadTargets(writeFile(t, "links.json", body), base)
	require.NoError(t, err)
	require.Len(t, targets, 4)

	require.Equal(t, "https://a/x", targets[0].URL)
	require.Nil(t, targets[0].Expected)

	require.Equal(t, "https://www.foody.vn/ha-noi/quan-b", targets[1].URL)
	require.NotNil(t, targets[1].Expected)
	require.Equal(t, 12, *targets[1].Expected)

	require.Empty(t, targets[2].URL)
	require.JSONEq(t, `{"Name": "no link here"}`, string(targets[2].Source))

	require.Equal(t, "https://www.foody.vn/ha-noi/quan-c", targets[3].URL)
	require.Equal(t, 3, *targets[3].Expected)
}

func TestLoadTargetsJSONL(t *testing.T) {
	body := "{\"url\": \"https://a/x\"}\n\"https://a/y\"\nhttps://a/z\n"
	targets, err := LoadTargets(writeFile(t, "links.ndjson", body), base)
	require.NoError(t, err)
	require.Len(t, targets, 3)
	require.Equal(t, []string{"https://a/x", "https://a/y", "https://a/z"},
		[]string{targets[0].URL, targets[1].URL, targets[2].URL})
}

func TestLoadTargetsMissingFile(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.json"), base)
	require.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	b, _ := url.Parse(base)
	tests := []struct{ in, want string }{
		{"", ""},
		{"   ", ""},
		{"https://other/x", "https://other/x"},
		{"/a/b", "https://www.foody.vn/a/b"},
		{"a/b", "https://www.foody.vn/a/b"},
		{"//cdn.foody.vn/x", "https://cdn.foody.vn/x"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in, b); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
