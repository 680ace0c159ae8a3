package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/services"
	"review-scraper/storage"
	"review-scraper/utils"
)

// Session loads one page at a time. Browser sessions navigate, settle and
// paginate before returning the document; HTTP sessions fetch and decode.
type Session interface {
	Load(ctx context.Context, url string) (*models.Page, error)
	Close() error
}

// Extractor turns a loaded page into review records. Fields the page lacks
// are left nil; an error means the page had nothing usable at all.
type Extractor interface {
	Extract(page *models.Page) ([]*models.ReviewRecord, error)
}

// Bootstrapper prepares the session (usually by logging in) once before the
// first target is loaded.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) error
}

// NoBootstrap skips session preparation.
type NoBootstrap struct{}

func (NoBootstrap) Bootstrap(context.Context) error { return nil }

// Deps are the collaborators a Loop needs.
type Deps struct {
	Session     Session
	Extractor   Extractor
	Bootstrap   Bootstrapper
	Checkpoints storage.Store[models.CheckpointState]
	Failures    storage.Store[[]models.FailureRecord]
	Missing     storage.Store[[]models.MissingTarget]
	Output      storage.ResultWriter
	Metrics     *Metrics
	Logger      *utils.Logger
}

// Loop is the checkpointed scrape loop. It processes targets strictly in
// order, one at a time, and can be resumed from its checkpoint.
type Loop struct {
	cfg     *config.Config
	deps    Deps
	logger  *utils.Logger
	cleaner *services.Cleaner
	retry   *utils.RetryConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	state    models.CheckpointState
	failures []models.FailureRecord
	missing  []models.MissingTarget
}

// NewLoop wires a Loop from configuration and collaborators.
func NewLoop(cfg *config.Config, deps Deps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = utils.NewLogger()
	}
	if deps.Bootstrap == nil {
		deps.Bootstrap = NoBootstrap{}
	}

	l := &Loop{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		cleaner: services.NewCleaner(logger),
		sleep:   utils.SleepContext,
		now:     time.Now,
	}
	l.retry = &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetry,
		Delay:       cfg.RetryDelay(),
		Logger:      logger,
		OnRetry:     func(int, error) { deps.Metrics.IncRetries() },
		Sleep:       func(ctx context.Context, d time.Duration) error { return l.sleep(ctx, d) },
	}
	return l
}

// Run processes every target from the checkpoint's last_index onwards. It
// returns ctx.Err() if interrupted, after flushing progress so far.
func (l *Loop) Run(ctx context.Context, targets []models.ScrapeTarget) (*models.RunSummary, error) {
	if err := l.load(); err != nil {
		return nil, err
	}

	total := len(targets)
	start := l.state.LastIndex
	if start > total {
		l.logger.Warn("[loop] Checkpoint last_index %d exceeds %d targets; nothing to resume", start, total)
		start = total
	}

	summary := &models.RunSummary{Total: total, StartIndex: start, ErrorTypes: map[string]int{}}
	runStart := l.now()
	defer func() { summary.Elapsed = l.now().Sub(runStart) }()

	if start > 0 {
		l.logger.Info("[loop] Resuming at %d/%d with %d results already saved", start, total, len(l.state.Results))
	}

	flushed := false
	if start < total {
		if err := l.deps.Bootstrap.Bootstrap(ctx); err != nil {
			return summary, fmt.Errorf("session bootstrap: %w", err)
		}
	}

	for i := start; i < total; i++ {
		if ctx.Err() != nil {
			return summary, l.interrupt(ctx, i)
		}

		t := targets[i]
		l.logger.Info("[loop] [%d/%d] Crawling %s", i+1, total, displayURL(t))

		outcome, reviews, ok := l.process(ctx, i, t, summary)
		if !ok {
			return summary, l.interrupt(ctx, i)
		}
		summary.Record(outcome, reviews)
		l.deps.Metrics.IncTarget(outcome)
		l.state.LastIndex = i + 1

		if (i+1)%l.cfg.SaveEvery == 0 || i == total-1 {
			if err := l.flush(); err != nil {
				return summary, err
			}
			flushed = true
			done := i + 1 - start
			eta := services.EstimateETA(l.now().Sub(runStart), done, total-(i+1))
			l.logger.Info("[loop] Saved @ %d/%d | ETA: %s", i+1, total, services.FormatETA(eta))
		}

		if outcome != models.OutcomeMissing {
			if err := l.sleep(ctx, l.cfg.TargetDelay()); err != nil && i < total-1 {
				return summary, l.interrupt(ctx, i+1)
			}
		}
	}

	if !flushed {
		if err := l.flush(); err != nil {
			return summary, err
		}
	}

	l.logger.Info("[loop] Done: %d succeeded, %d partial, %d failed, %d missing",
		summary.Succeeded, summary.Partial, summary.Failed, summary.Missing)
	return summary, nil
}

// Results returns the accumulated result set, including resumed results.
func (l *Loop) Results() []*models.RestaurantResult {
	return l.state.Results
}

func (l *Loop) load() error {
	state, err := l.deps.Checkpoints.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if state.Results == nil {
		state.Results = []*models.RestaurantResult{}
	}
	if state.LastIndex < 0 {
		state.LastIndex = 0
	}
	l.state = state

	if l.failures, err = l.deps.Failures.Load(); err != nil {
		return fmt.Errorf("load failure log: %w", err)
	}
	if l.deps.Missing != nil {
		if l.missing, err = l.deps.Missing.Load(); err != nil {
			return fmt.Errorf("load missing log: %w", err)
		}
	}
	return nil
}

// process runs one target to completion. ok is false when ctx was cancelled
// mid-target; nothing is recorded in that case.
func (l *Loop) process(ctx context.Context, i int, t models.ScrapeTarget, summary *models.RunSummary) (outcome models.Outcome, reviewCount int, ok bool) {
	if t.URL == "" {
		l.logger.Warn("[loop] Target %d has no url; recording as missing", i)
		l.missing = append(l.missing, models.MissingTarget{Index: i, Target: t.Source, Reason: ErrMissingURL.Error()})
		return models.OutcomeMissing, 0, true
	}

	var reviews []*models.ReviewRecord
	err := l.retry.Do(ctx, t.URL, func(attempt int) error {
		started := l.now()
		recs, err := l.attempt(ctx, t.URL)
		l.deps.Metrics.ObserveAttempt(l.now().Sub(started))
		if err != nil {
			label := ErrorTypeLabel(err)
			summary.ErrorTypes[label]++
			l.deps.Metrics.IncError(label)
			return err
		}
		reviews = recs
		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, false
		}
		l.logger.Error("[loop] Giving up on %s: %v", t.URL, err)
		l.failures = append(l.failures, models.FailureRecord{
			URL:   t.URL,
			Index: i,
			Error: err.Error(),
			Time:  l.now(),
		})
		return models.OutcomeFailed, 0, true
	}

	reviews = l.cleaner.Dedupe(reviews)
	reviews, outcome = l.cleaner.ApplyExpected(reviews, t.Expected)
	if outcome == models.OutcomePartial {
		l.logger.Warn("[loop] Partial result for %s: %d of %d expected reviews", t.URL, len(reviews), *t.Expected)
	}

	l.state.Results = append(l.state.Results, &models.RestaurantResult{URL: t.URL, Reviews: reviews})
	l.deps.Metrics.AddReviews(len(reviews))
	l.logger.Info("[loop] Reviews scraped: %d", len(reviews))
	return outcome, len(reviews), true
}

func (l *Loop) attempt(ctx context.Context, url string) ([]*models.ReviewRecord, error) {
	page, err := l.deps.Session.Load(ctx, url)
	if err != nil {
		var nav *NavigationError
		var ext *ExtractionError
		if errors.As(err, &nav) || errors.As(err, &ext) {
			return nil, err
		}
		return nil, &NavigationError{URL: url, Err: err}
	}

	recs, err := l.deps.Extractor.Extract(page)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	if recs == nil {
		recs = []*models.ReviewRecord{}
	}
	return recs, nil
}

// flush persists the checkpoint, the failure and missing logs and the
// primary output file.
func (l *Loop) flush() error {
	if err := l.deps.Checkpoints.Save(l.state); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := l.deps.Failures.Save(l.failures); err != nil {
		return fmt.Errorf("save failure log: %w", err)
	}
	if l.deps.Missing != nil {
		if err := l.deps.Missing.Save(l.missing); err != nil {
			return fmt.Errorf("save missing log: %w", err)
		}
	}
	if l.deps.Output != nil {
		if err := l.deps.Output.WriteResults(l.state.Results); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	l.deps.Metrics.IncFlush()
	return nil
}

// interrupt flushes progress up to (but excluding) index next and returns the
// context error.
func (l *Loop) interrupt(ctx context.Context, next int) error {
	l.state.LastIndex = next
	l.logger.Warn("[loop] Interrupted; saving progress at %d", next)
	if err := l.flush(); err != nil {
		return errors.Join(ctx.Err(), err)
	}
	return ctx.Err()
}

func displayURL(t models.ScrapeTarget) string {
	if t.URL == "" {
		return "<missing url>"
	}
	return t.URL
}
