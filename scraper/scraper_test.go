package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/utils"
)

type memStore[T any] struct {
	val   T
	saves []T
	err   error
}

func (m *memStore[T]) Load() (T, error) { return m.val, nil }

func (m *memStore[T]) Save(v T) error {
	if m.err != nil {
		return m.err
	}
	m.val = v
	m.saves = append(m.saves, v)
	return nil
}

type fakeSession struct {
	loads []string
	load  func(ctx context.Context, url string) (*models.Page, error)
}

func (f *fakeSession) Load(ctx context.Context, url string) (*models.Page, error) {
	f.loads = append(f.loads, url)
	if f.load != nil {
		return f.load(ctx, url)
	}
	return &models.Page{URL: url}, nil
}

func (f *fakeSession) Close() error { return nil }

type extractFunc func(page *models.Page) ([]*models.ReviewRecord, error)

func (f extractFunc) Extract(page *models.Page) ([]*models.ReviewRecord, error) { return f(page) }

type countingBootstrap struct {
	calls int
	err   error
}

func (b *countingBootstrap) Bootstrap(context.Context) error {
	b.calls++
	return b.err
}

type harness struct {
	cfg         *config.Config
	session     *fakeSession
	extractor   Extractor
	bootstrap   *countingBootstrap
	checkpoints *memStore[models.CheckpointState]
	failures    *memStore[[]models.FailureRecord]
	missing     *memStore[[]models.MissingTarget]
	output      *memOutput
	metrics     *Metrics
}

type memOutput struct {
	writes int
	last   []*models.RestaurantResult
}

func (m *memOutput) WriteResults(r []*models.RestaurantResult) error {
	m.writes++
	m.last = r
	return nil
}

func str(s string) *string { return &s }

// oneReviewPerURL returns a single review whose ID is the page url.
func oneReviewPerURL(page *models.Page) ([]*models.ReviewRecord, error) {
	return []*models.ReviewRecord{{ID: str(page.URL), RestaurantID: "r", Content: str("ok")}}, nil
}

func newHarness() *harness {
	cfg := config.Default()
	cfg.RetryDelayMs = 0
	cfg.TargetDelayMs = 0
	return &harness{
		cfg:         cfg,
		session:     &fakeSession{},
		extractor:   extractFunc(oneReviewPerURL),
		bootstrap:   &countingBootstrap{},
		checkpoints: &memStore[models.CheckpointState]{},
		failures:    &memStore[[]models.FailureRecord]{},
		missing:     &memStore[[]models.MissingTarget]{},
		output:      &memOutput{},
		metrics:     NewMetrics(),
	}
}

func (h *harness) loop() *Loop {
	return NewLoop(h.cfg, Deps{
		Session:     h.session,
		Extractor:   h.extractor,
		Bootstrap:   h.bootstrap,
		Checkpoints: h.checkpoints,
		Failures:    h.failures,
		Missing:     h.missing,
		Output:      h.output,
		Metrics:     h.metrics,
		Logger:      utils.NewLoggerTo(io.Discard),
	})
}

func targetsFor(urls ...string) []models.ScrapeTarget {
	out := make([]models.ScrapeTarget, len(urls))
	for i, u := range urls {
		out[i] = models.ScrapeTarget{Index: i, URL: u}
	}
	return out
}

func numberedTargets(n int) []models.ScrapeTarget {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://a/%d", i)
	}
	return targetsFor(urls...)
}

func TestLoopSuccessAndFailure(t *testing.T) {
	h := newHarness()
	h.extractor = extractFunc(func(page *models.Page) ([]*models.ReviewRecord, error) {
		if page.URL == "https://a/y" {
			return nil, errors.New("selector blew up")
		}
		return []*models.ReviewRecord{{ID: str("1"), RestaurantID: "x", Content: str("good")}}, nil
	})

	summary, err := h.loop().Run(context.Background(), targetsFor("https://a/x", "https://a/y"))
	require.NoError(t, err)

	state := h.checkpoints.val
	require.Equal(t, 2, state.LastIndex)
	require.Len(t, state.Results, 1)
	require.Equal(t, "https://a/x", state.Results[0].URL)
	require.Equal(t, "good", *state.Results[0].Reviews[0].Content)

	require.Len(t, h.failures.val, 1)
	require.Equal(t, "https://a/y", h.failures.val[0].URL)
	require.Equal(t, 1, h.failures.val[0].Index)
	require.Contains(t, h.failures.val[0].Error, "selector blew up")
	require.False(t, h.failures.val[0].Time.IsZero())

	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 3, summary.ErrorTypes["extraction"])
	require.Equal(t, state.Results, h.output.last)
}

func TestLoopRetryBound(t *testing.T) {
	h := newHarness()
	attempts := 0
	h.extractor = extractFunc(func(*models.Page) ([]*models.ReviewRecord, error) {
		attempts++
		return nil, errors.New("always")
	})

	_, err := h.loop().Run(context.Background(), targetsFor("https://a/z"))
	require.NoError(t, err)

	require.Equal(t, h.cfg.MaxRetry, attempts)
	require.Len(t, h.session.loads, h.cfg.MaxRetry)
	require.Len(t, h.failures.val, 1)
	require.Empty(t, h.checkpoints.val.Results)
	require.Equal(t, 1, h.checkpoints.val.LastIndex)
	require.Equal(t, float64(h.cfg.MaxRetry-1), testutil.ToFloat64(h.metrics.RetriesTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(h.metrics.TargetsTotal.WithLabelValues("failed")))
}

func TestLoopNavigationErrorIsRetried(t *testing.T) {
	h := newHarness()
	h.session.load = func(_ context.Context, url string) (*models.Page, error) {
		if len(h.session.loads) < 2 {
			return nil, context.DeadlineExceeded
		}
		return &models.Page{URL: url}, nil
	}

	summary, err := h.loop().Run(context.Background(), targetsFor("https://a/slow"))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.ErrorTypes["timeout"])
	require.Len(t, h.session.loads, 2)
}

func TestLoopCheckpointCadence(t *testing.T) {
	h := newHarness()

	_, err := h.loop().Run(context.Background(), numberedTargets(45))
	require.NoError(t, err)

	var saved []int
	for _, s := range h.checkpoints.saves {
		saved = append(saved, s.LastIndex)
	}
	require.Equal(t, []int{20, 40, 45}, saved)
	require.Len(t, h.failures.saves, 3)
	require.Equal(t, 3, h.output.writes)
	require.Equal(t, float64(3), testutil.ToFloat64(h.metrics.FlushesTotal))
}

func TestLoopResumesFromCheckpoint(t *testing.T) {
	h := newHarness()
	h.checkpoints.val = models.CheckpointState{
		LastIndex: 3,
		Results:   []*models.RestaurantResult{{URL: "https://a/0"}, {URL: "https://a/1"}, {URL: "https://a/2"}},
	}

	summary, err := h.loop().Run(context.Background(), numberedTargets(5))
	require.NoError(t, err)

	require.Equal(t, []string{"https://a/3", "https://a/4"}, h.session.loads)
	require.Equal(t, 3, summary.StartIndex)
	require.Equal(t, 2, summary.Processed)
	require.Len(t, h.checkpoints.val.Results, 5)
	require.Equal(t, 5, h.checkpoints.val.LastIndex)
}

func TestLoopResumptionIdempotence(t *testing.T) {
	targets := numberedTargets(7)

	full := newHarness()
	fullLoop := full.loop()
	_, err := fullLoop.Run(context.Background(), targets)
	require.NoError(t, err)

	for k := 0; k < len(targets); k++ {
		t.Run(fmt.Sprintf("interrupt at %d", k), func(t *testing.T) {
			h := newHarness()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			interruptAt := targets[k].URL
			h.session.load = func(ctx context.Context, url string) (*models.Page, error) {
				if url == interruptAt {
					cancel()
					return nil, ctx.Err()
				}
				return &models.Page{URL: url}, nil
			}

			_, err := h.loop().Run(ctx, targets)
			require.ErrorIs(t, err, context.Canceled)
			require.Equal(t, k, h.checkpoints.val.LastIndex)
			require.Len(t, h.checkpoints.val.Results, k)

			h.session = &fakeSession{}
			resumed := h.loop()
			_, err = resumed.Run(context.Background(), targets)
			require.NoError(t, err)

			for _, u := range h.session.loads {
				require.NotContains(t, urlsBefore(targets, k), u, "resumed run reloaded an earlier target")
			}
			if diff := cmp.Diff(fullLoop.Results(), resumed.Results()); diff != "" {
				t.Errorf("resumed results differ from uninterrupted run (-want +got):\n%s", diff)
			}
			require.Empty(t, h.failures.val)
		})
	}
}

func urlsBefore(targets []models.ScrapeTarget, k int) []string {
	var out []string
	for _, t := range targets[:k] {
		out = append(out, t.URL)
	}
	return out
}

func TestLoopCancelledBeforeStart(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.loop().Run(ctx, numberedTargets(3))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, h.session.loads)
	require.Equal(t, 0, h.checkpoints.val.LastIndex)
}

func TestLoopMissingTarget(t *testing.T) {
	h := newHarness()
	targets := targetsFor("https://a/x", "", "https://a/z")
	targets[1].Source = []byte(`{"Name":"no link"}`)

	summary, err := h.loop().Run(context.Background(), targets)
	require.NoError(t, err)

	require.Equal(t, []string{"https://a/x", "https://a/z"}, h.session.loads)
	require.Len(t, h.missing.val, 1)
	require.Equal(t, 1, h.missing.val[0].Index)
	require.JSONEq(t, `{"Name":"no link"}`, string(h.missing.val[0].Target))
	require.Empty(t, h.failures.val)
	require.Equal(t, 1, summary.Missing)
	require.Equal(t, 3, h.checkpoints.val.LastIndex)
	require.Len(t, h.checkpoints.val.Results, 2)
}

func TestLoopDelays(t *testing.T) {
	h := newHarness()
	h.cfg.RetryDelayMs = 3000
	h.cfg.TargetDelayMs = 2000
	h.extractor = extractFunc(func(page *models.Page) ([]*models.ReviewRecord, error) {
		if page.URL == "https://a/broken" {
			return nil, errors.New("always")
		}
		return oneReviewPerURL(page)
	})

	var sleeps []time.Duration
	l := h.loop()
	l.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	_, err := l.Run(context.Background(), targetsFor("https://a/ok", "", "https://a/broken"))
	require.NoError(t, err)

	// target delay, nothing for the missing url, two retry waits, target delay
	want := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second, 2 * time.Second}
	require.Equal(t, want, sleeps)
}

func TestLoopDedupesAndFlagsPartial(t *testing.T) {
	h := newHarness()
	h.extractor = extractFunc(func(*models.Page) ([]*models.ReviewRecord, error) {
		return []*models.ReviewRecord{
			{ID: str("1"), Content: str("a")},
			{ID: str("1"), Content: str("a")},
			{ID: str("2"), Content: str("b")},
		}, nil
	})
	expectFive, expectOne := 5, 1
	targets := targetsFor("https://a/partial", "https://a/capped", "https://a/open")
	targets[0].Expected = &expectFive
	targets[1].Expected = &expectOne

	summary, err := h.loop().Run(context.Background(), targets)
	require.NoError(t, err)

	results := h.checkpoints.val.Results
	require.Len(t, results, 3)
	require.Len(t, results[0].Reviews, 2)
	require.Len(t, results[1].Reviews, 1)
	require.Len(t, results[2].Reviews, 2)
	require.Equal(t, 1, summary.Partial)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, float64(1), testutil.ToFloat64(h.metrics.TargetsTotal.WithLabelValues("partial")))
}

func TestLoopBootstrap(t *testing.T) {
	h := newHarness()
	_, err := h.loop().Run(context.Background(), numberedTargets(3))
	require.NoError(t, err)
	require.Equal(t, 1, h.bootstrap.calls)

	// nothing left to do: no login prompt, but the output is still written
	h.output = &memOutput{}
	_, err = h.loop().Run(context.Background(), numberedTargets(3))
	require.NoError(t, err)
	require.Equal(t, 1, h.bootstrap.calls)
	require.Equal(t, 1, h.output.writes)
}

func TestLoopBootstrapFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.bootstrap.err = errors.New("login rejected")

	_, err := h.loop().Run(context.Background(), numberedTargets(2))
	require.ErrorContains(t, err, "login rejected")
	require.Empty(t, h.session.loads)
}

func TestLoopPersistenceFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.cfg.SaveEvery = 1
	h.checkpoints.err = errors.New("disk full")

	_, err := h.loop().Run(context.Background(), numberedTargets(3))
	require.ErrorContains(t, err, "disk full")
	require.Len(t, h.session.loads, 1)
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "unknown"},
		{&NavigationError{URL: "u", Err: context.DeadlineExceeded}, "timeout"},
		{context.Canceled, "canceled"},
		{&NavigationError{URL: "u", Status: 503, Err: errors.New("unavailable")}, "http_status"},
		{&NavigationError{URL: "u", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}, "navigation"},
		{&ExtractionError{URL: "u", Err: ErrNoReviewData}, "extraction"},
		{fmt.Errorf("wrapped: %w", &ExtractionError{URL: "u", Err: errors.New("x")}), "extraction"},
		{errors.New("plain"), "other"},
	}
	for _, tt := range tests {
		if got := ErrorTypeLabel(tt.err); got != tt.want {
			t.Errorf("ErrorTypeLabel(%v) = %q; want %q", tt.err, got, tt.want)
		}
	}
}
