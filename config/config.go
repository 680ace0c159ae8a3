package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Selectors names the DOM lookups used by the selector-based extractor.
type Selectors struct {
	Item             string `json:"item"`
	ReviewIDAttr     string `json:"review_id_attr"`
	UserIDAttr       string `json:"user_id_attr"`
	RestaurantIDAttr string `json:"restaurant_id_attr"`
	UserName         string `json:"user_name"`
	Rating           string `json:"rating"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	CreatedAt        string `json:"created_at"`
}

// Config holds all application configuration. Values are layered as
// defaults, then the json5 config file, then .env / environment variables.
type Config struct {
	BaseURL  string `json:"base_url"`
	LoginURL string `json:"login_url"`

	InputPath      string `json:"input_path"`
	OutputPath     string `json:"output_path"`
	OutputFormat   string `json:"output_format"`
	CheckpointPath string `json:"checkpoint_path"`
	FailurePath    string `json:"failure_path"`
	MissingPath    string `json:"missing_path"`

	Fetcher   string `json:"fetcher"`
	Extractor string `json:"extractor"`
	Bootstrap string `json:"bootstrap"`

	Username              string `json:"username"`
	Password              string `json:"password"`
	LoginUserField        string `json:"login_user_field"`
	LoginPasswordField    string `json:"login_password_field"`
	LoginUserSelector     string `json:"login_user_selector"`
	LoginPasswordSelector string `json:"login_password_selector"`
	LoginSubmitSelector   string `json:"login_submit_selector"`

	MaxRetry      int `json:"max_retry"`
	RetryDelayMs  int `json:"retry_delay_ms"`
	TargetDelayMs int `json:"target_delay_ms"`
	SaveEvery     int `json:"save_every"`
	NavTimeoutMs  int `json:"nav_timeout_ms"`
	SettleDelayMs int `json:"settle_delay_ms"`

	ScrollMode       string `json:"scroll_mode"`
	MaxScroll        int    `json:"max_scroll"`
	ScrollDelayMs    int    `json:"scroll_delay_ms"`
	LoadMoreSelector string `json:"load_more_selector"`

	Headless         bool   `json:"headless"`
	ChromeBin        string `json:"chrome_bin"`
	UserAgent        string `json:"user_agent"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`

	Selectors      Selectors `json:"selectors"`
	EmbeddedVar    string    `json:"embedded_var"`
	UTCOffsetHours int       `json:"utc_offset_hours"`

	PostgresHost     string `json:"postgres_host"`
	PostgresPort     string `json:"postgres_port"`
	PostgresUser     string `json:"postgres_user"`
	PostgresPassword string `json:"postgres_password"`
	PostgresDB       string `json:"postgres_db"`
	PostgresSSLMode  string `json:"postgres_sslmode"`
	SQLitePath       string `json:"sqlite_path"`

	MetricsAddr string `json:"metrics_addr"`
	Verbose     bool   `json:"verbose"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:  "https://www.foody.vn",
		LoginURL: "https://id.foody.vn/account/login",

		InputPath:      "final_result_link.json",
		OutputPath:     "data/review_result.json",
		OutputFormat:   "json",
		CheckpointPath: "data/checkpoint.json",
		FailurePath:    "data/scrape_errors.json",
		MissingPath:    "data/restaurants_missing.json",

		Fetcher:   "browser",
		Extractor: "selector",
		Bootstrap: "manual",

		LoginUserField:        "Email",
		LoginPasswordField:    "Password",
		LoginUserSelector:     `input[name="Email"]`,
		LoginPasswordSelector: `input[name="Password"]`,
		LoginSubmitSelector:   `button[type="submit"]`,

		MaxRetry:      3,
		RetryDelayMs:  3000,
		TargetDelayMs: 2000,
		SaveEvery:     20,
		NavTimeoutMs:  60000,
		SettleDelayMs: 3000,

		ScrollMode:       "scroll",
		MaxScroll:        80,
		ScrollDelayMs:    1500,
		LoadMoreSelector: "a.fd-btn-more",

		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",

		Selectors: Selectors{
			Item:             ".review-item",
			ReviewIDAttr:     "data-review-id",
			UserIDAttr:       "data-user-id",
			RestaurantIDAttr: "data-res-id",
			UserName:         ".ru-username",
			Rating:           ".review-points",
			Title:            "a.rd-title",
			Content:          ".review-des",
			CreatedAt:        ".review-time, .ru-time",
		},
		EmbeddedVar:    "initDataReviews",
		UTCOffsetHours: 7,

		PostgresPort:    "5432",
		PostgresUser:    "scraper",
		PostgresDB:      "reviews",
		PostgresSSLMode: "disable",
	}
}

// Load builds the configuration: defaults, the optional json5 file at path
// (plus its .local override), then .env and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)
	c.LoginURL = getEnv("LOGIN_URL", c.LoginURL)

	c.InputPath = getEnv("INPUT_PATH", c.InputPath)
	c.OutputPath = getEnv("OUTPUT_PATH", c.OutputPath)
	c.OutputFormat = getEnv("OUTPUT_FORMAT", c.OutputFormat)
	c.CheckpointPath = getEnv("CHECKPOINT_PATH", c.CheckpointPath)
	c.FailurePath = getEnv("FAILURE_PATH", c.FailurePath)
	c.MissingPath = getEnv("MISSING_PATH", c.MissingPath)

	c.Fetcher = getEnv("FETCHER", c.Fetcher)
	c.Extractor = getEnv("EXTRACTOR", c.Extractor)
	c.Bootstrap = getEnv("BOOTSTRAP", c.Bootstrap)
	c.Username = getEnv("SCRAPER_USERNAME", c.Username)
	c.Password = getEnv("SCRAPER_PASSWORD", c.Password)

	c.MaxRetry = getEnvInt("MAX_RETRY", c.MaxRetry)
	c.RetryDelayMs = getEnvInt("RETRY_DELAY_MS", c.RetryDelayMs)
	c.TargetDelayMs = getEnvInt("TARGET_DELAY_MS", c.TargetDelayMs)
	c.SaveEvery = getEnvInt("SAVE_EVERY", c.SaveEvery)
	c.NavTimeoutMs = getEnvInt("NAV_TIMEOUT_MS", c.NavTimeoutMs)
	c.SettleDelayMs = getEnvInt("SETTLE_DELAY_MS", c.SettleDelayMs)

	c.ScrollMode = getEnv("SCROLL_MODE", c.ScrollMode)
	c.MaxScroll = getEnvInt("MAX_SCROLL", c.MaxScroll)
	c.ScrollDelayMs = getEnvInt("SCROLL_DELAY_MS", c.ScrollDelayMs)

	c.Headless = getEnvBool("HEADLESS", c.Headless)
	c.ChromeBin = getEnv("CHROME_BIN", c.ChromeBin)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.CloudflareBypass = getEnvBool("CLOUDFLARE_BYPASS", c.CloudflareBypass)
	c.UTCOffsetHours = getEnvInt("UTC_OFFSET_HOURS", c.UTCOffsetHours)

	c.PostgresHost = getEnv("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnv("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = getEnv("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", c.PostgresPassword)
	c.PostgresDB = getEnv("POSTGRES_DB", c.PostgresDB)
	c.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", c.PostgresSSLMode)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)

	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.Verbose = getEnvBool("VERBOSE", c.Verbose)
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.MaxRetry < 1 {
		return errors.New("max_retry must be at least 1")
	}
	if c.SaveEvery < 1 {
		return errors.New("save_every must be at least 1")
	}
	if c.RetryDelayMs < 0 || c.TargetDelayMs < 0 || c.ScrollDelayMs < 0 || c.SettleDelayMs < 0 {
		return errors.New("delays must not be negative")
	}
	if c.NavTimeoutMs <= 0 {
		return errors.New("nav_timeout_ms must be positive")
	}
	if c.MaxScroll < 0 {
		return errors.New("max_scroll must not be negative")
	}
	if c.InputPath == "" || c.OutputPath == "" || c.CheckpointPath == "" || c.FailurePath == "" {
		return errors.New("input, output, checkpoint and failure paths are required")
	}
	if err := oneOf("fetcher", c.Fetcher, "browser", "http"); err != nil {
		return err
	}
	if err := oneOf("extractor", c.Extractor, "selector", "embedded"); err != nil {
		return err
	}
	if err := oneOf("bootstrap", c.Bootstrap, "manual", "credentials", "none"); err != nil {
		return err
	}
	if err := oneOf("output_format", c.OutputFormat, "json", "jsonl", "csv"); err != nil {
		return err
	}
	if err := oneOf("scroll_mode", c.ScrollMode, "scroll", "loadmore"); err != nil {
		return err
	}
	if c.Bootstrap == "manual" && c.Fetcher == "http" {
		return errors.New("manual bootstrap needs the browser fetcher")
	}
	if c.Bootstrap == "credentials" && (c.Username == "" || c.Password == "") {
		return errors.New("credentials bootstrap needs SCRAPER_USERNAME and SCRAPER_PASSWORD")
	}
	return nil
}

func oneOf(name, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, "|"), val)
}

func (c *Config) RetryDelay() time.Duration  { return ms(c.RetryDelayMs) }
func (c *Config) TargetDelay() time.Duration { return ms(c.TargetDelayMs) }
func (c *Config) NavTimeout() time.Duration  { return ms(c.NavTimeoutMs) }
func (c *Config) SettleDelay() time.Duration { return ms(c.SettleDelayMs) }
func (c *Config) ScrollDelay() time.Duration { return ms(c.ScrollDelayMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// PostgresEnabled reports whether a Postgres sink was configured.
func (c *Config) PostgresEnabled() bool { return c.PostgresHost != "" }

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Location is the fixed zone review dates are rendered in.
func (c *Config) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.UTCOffsetHours), c.UTCOffsetHours*3600)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
