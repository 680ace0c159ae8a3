package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/scraper"
	"review-scraper/scraper/extract"
	"review-scraper/scraper/httpfetch"
	"review-scraper/storage"
	"review-scraper/utils"
)

func TestNewExtractor(t *testing.T) {
	cfg := config.Default()
	_, ok := newExtractor(cfg).(*extract.Selector)
	require.True(t, ok, "selector extractor by default")

	cfg.Extractor = "embedded"
	_, ok = newExtractor(cfg).(*extract.Embedded)
	require.True(t, ok, "embedded extractor when configured")
}

func TestOpenSessionHTTP(t *testing.T) {
	logger := utils.NewLoggerTo(&bytes.Buffer{})

	cfg := config.Default()
	cfg.Fetcher = "http"
	cfg.Bootstrap = "none"
	session, boot, err := openSession(cfg, logger)
	require.NoError(t, err)
	defer session.Close()
	require.IsType(t, &httpfetch.Client{}, session)
	require.IsType(t, scraper.NoBootstrap{}, boot)

	cfg.Bootstrap = "credentials"
	cfg.Username, cfg.Password = "u", "p"
	session, boot, err = openSession(cfg, logger)
	require.NoError(t, err)
	defer session.Close()
	login, ok := boot.(*httpfetch.CredentialLogin)
	require.True(t, ok)
	require.Equal(t, cfg.LoginURL, login.LoginURL)
	require.Equal(t, "Email", login.UserField)
}

func TestCollectStatus(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.InputPath = filepath.Join(dir, "targets.txt")
	cfg.CheckpointPath = filepath.Join(dir, "checkpoint.json")
	cfg.FailurePath = filepath.Join(dir, "errors.json")
	cfg.MissingPath = filepath.Join(dir, "missing.json")

	require.NoError(t, os.WriteFile(cfg.InputPath, []byte("/a\n/b\n/c\n/d\n"), 0o644))

	content := "x"
	state := models.CheckpointState{
		LastIndex: 2,
		Results: []*models.RestaurantResult{
			{URL: "https://www.foody.vn/a", Reviews: []*models.ReviewRecord{{Content: &content}, {Content: &content}}},
			{URL: "https://www.foody.vn/b", Reviews: []*models.ReviewRecord{}},
		},
	}
	require.NoError(t, storage.NewCheckpointFile(cfg.CheckpointPath).Save(state))
	require.NoError(t, storage.NewFailureLog(cfg.FailurePath).Save([]models.FailureRecord{{URL: "https://www.foody.vn/x", Index: 9}}))

	st, err := collectStatus(cfg)
	require.NoError(t, err)
	require.Equal(t, &status{
		Checkpoint: cfg.CheckpointPath,
		Total:      4,
		LastIndex:  2,
		Results:    2,
		Reviews:    2,
		Failures:   1,
		Missing:    0,
	}, st)

	var buf bytes.Buffer
	printStatus(&buf, st)
	require.Contains(t, buf.String(), "Progress   : 2/4 (50.0%)")
	require.Contains(t, buf.String(), "Results    : 2 restaurants, 2 reviews")
}

func TestCollectStatusFreshRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.InputPath = filepath.Join(dir, "targets.txt")
	cfg.CheckpointPath = filepath.Join(dir, "checkpoint.json")
	cfg.FailurePath = filepath.Join(dir, "errors.json")
	cfg.MissingPath = ""
	require.NoError(t, os.WriteFile(cfg.InputPath, []byte("# none yet\n"), 0o644))

	st, err := collectStatus(cfg)
	require.NoError(t, err)
	require.Zero(t, st.Total)
	require.Zero(t, st.LastIndex)

	var buf bytes.Buffer
	printStatus(&buf, st)
	require.Contains(t, buf.String(), "Progress   : 0/0 (0.0%)")
}
