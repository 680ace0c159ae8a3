package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"review-scraper/config"
	"review-scraper/models"
	"review-scraper/scraper"
	"review-scraper/scraper/browser"
	"review-scraper/scraper/extract"
	"review-scraper/scraper/httpfetch"
	"review-scraper/services"
	"review-scraper/storage"
	"review-scraper/utils"
)

var scrapeFlags struct {
	fetcher   string
	extractor string
	bootstrap string
	headless  bool
	verbose   bool
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVar(&scrapeFlags.fetcher, "fetcher", "", "Page loader: browser or http.")
	f.StringVar(&scrapeFlags.extractor, "extractor", "", "Review extractor: selector or embedded.")
	f.StringVar(&scrapeFlags.bootstrap, "bootstrap", "", "Session setup: manual, credentials or none.")
	f.BoolVar(&scrapeFlags.headless, "headless", false, "Run Chrome without a window.")
	f.BoolVar(&scrapeFlags.verbose, "verbose", false, "Enable debug logging.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--input <targets>] [--fetcher browser|http] [--extractor selector|embedded]",
	Short: "Scrapes every target from the checkpoint onwards, saving progress as it goes.",
	RunE:  runScrape,
}

func applyScrapeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("fetcher") {
		cfg.Fetcher = scrapeFlags.fetcher
	}
	if flags.Changed("extractor") {
		cfg.Extractor = scrapeFlags.extractor
	}
	if flags.Changed("bootstrap") {
		cfg.Bootstrap = scrapeFlags.bootstrap
	}
	if flags.Changed("headless") {
		cfg.Headless = scrapeFlags.headless
	}
	if flags.Changed("verbose") {
		cfg.Verbose = scrapeFlags.verbose
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	logger := utils.NewLogger()

	cfg, err := loadConfig(cmd, applyScrapeFlags)
	if err != nil {
		logger.Error("%v", err)
		return err
	}
	logger.SetVerbose(cfg.Verbose)

	logger.Info("=== Review scraper starting ===")
	logger.Info("Config: fetcher=%s extractor=%s bootstrap=%s | retries: %d | save every: %d",
		cfg.Fetcher, cfg.Extractor, cfg.Bootstrap, cfg.MaxRetry, cfg.SaveEvery)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets, err := storage.LoadTargets(cfg.InputPath, cfg.BaseURL)
	if err != nil {
		logger.Error("Failed to load targets: %v", err)
		return err
	}
	logger.Info("Loaded %d targets from %s", len(targets), cfg.InputPath)

	output, err := storage.NewResultWriter(cfg.OutputFormat, cfg.OutputPath)
	if err != nil {
		logger.Error("%v", err)
		return err
	}

	session, boot, err := openSession(cfg, logger)
	if err != nil {
		logger.Error("Failed to open session: %v", err)
		return err
	}
	defer session.Close()

	metrics := scraper.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, metrics, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	deps := scraper.Deps{
		Session:     session,
		Extractor:   newExtractor(cfg),
		Bootstrap:   boot,
		Checkpoints: storage.NewCheckpointFile(cfg.CheckpointPath),
		Failures:    storage.NewFailureLog(cfg.FailurePath),
		Output:      output,
		Metrics:     metrics,
		Logger:      logger,
	}
	if cfg.MissingPath != "" {
		deps.Missing = storage.NewMissingLog(cfg.MissingPath)
	}

	loop := scraper.NewLoop(cfg, deps)
	summary, runErr := loop.Run(ctx, targets)
	if summary != nil {
		services.NewReportService(os.Stdout).Print(summary)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("Interrupted; progress saved to %s", cfg.CheckpointPath)
		} else {
			logger.Error("Scrape failed: %v", runErr)
		}
		return runErr
	}

	if err := writeSinks(ctx, cfg, loop.Results(), logger); err != nil {
		logger.Error("%v", err)
		return err
	}

	fmt.Printf("  Done. Results → %s (%s) | checkpoint → %s\n\n", cfg.OutputPath, cfg.OutputFormat, cfg.CheckpointPath)
	return nil
}

// openSession builds the page loader and its matching bootstrapper.
func openSession(cfg *config.Config, logger *utils.Logger) (scraper.Session, scraper.Bootstrapper, error) {
	if cfg.Fetcher == "http" {
		client, err := httpfetch.New(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Bootstrap == "credentials" {
			return client, &httpfetch.CredentialLogin{
				Client:        client,
				LoginURL:      cfg.LoginURL,
				Username:      cfg.Username,
				Password:      cfg.Password,
				UserField:     cfg.LoginUserField,
				PasswordField: cfg.LoginPasswordField,
			}, nil
		}
		return client, scraper.NoBootstrap{}, nil
	}

	b, err := browser.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Bootstrap {
	case "manual":
		return b, &browser.ManualLogin{Browser: b, HomeURL: cfg.BaseURL, In: os.Stdin, Logger: logger}, nil
	case "credentials":
		return b, &browser.CredentialLogin{
			Browser:          b,
			LoginURL:         cfg.LoginURL,
			Username:         cfg.Username,
			Password:         cfg.Password,
			UserSelector:     cfg.LoginUserSelector,
			PasswordSelector: cfg.LoginPasswordSelector,
			SubmitSelector:   cfg.LoginSubmitSelector,
			Logger:           logger,
		}, nil
	}
	return b, scraper.NoBootstrap{}, nil
}

func newExtractor(cfg *config.Config) scraper.Extractor {
	if cfg.Extractor == "embedded" {
		return extract.NewEmbedded(cfg.EmbeddedVar, cfg.Location())
	}
	return extract.NewSelector(cfg.Selectors)
}

func serveMetrics(addr string, metrics *scraper.Metrics, logger *utils.Logger) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()
	logger.Info("Metrics server listening on %s", addr)
	return srv
}

// writeSinks copies the final result set into the configured databases.
func writeSinks(ctx context.Context, cfg *config.Config, results []*models.RestaurantResult, logger *utils.Logger) error {
	type sink struct{ driver, dsn string }
	var sinks []sink
	if cfg.PostgresEnabled() {
		sinks = append(sinks, sink{storage.DriverPostgres, cfg.DSN()})
	}
	if cfg.SQLitePath != "" {
		sinks = append(sinks, sink{storage.DriverSQLite, cfg.SQLitePath})
	}

	for _, s := range sinks {
		if err := writeSink(ctx, s.driver, s.dsn, results, logger); err != nil {
			return err
		}
	}
	return nil
}

func writeSink(ctx context.Context, driver, dsn string, results []*models.RestaurantResult, logger *utils.Logger) error {
	w, err := storage.NewSQLWriter(ctx, driver, dsn)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Write(ctx, results); err != nil {
		return err
	}
	n, err := w.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("[storage] %s now holds %d reviews", driver, n)
	return nil
}
