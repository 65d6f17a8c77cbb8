package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Rule struct {
	Tag    string   `yaml:"tag"`
	Weight int      `yaml:"weight"`
	Any    []string `yaml:"any"`
}

type Penalty struct {
	Reason string   `yaml:"reason"`
	Weight int      `yaml:"weight"`
	Any    []string `yaml:"any"`
}

type Query struct {
	Position string `yaml:"position"`
	Location string `yaml:"location"`
	Pages    int    `yaml:"pages"`
}

type Retry struct {
	Attempts          int           `yaml:"attempts"`
	Interval          time.Duration `yaml:"interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxInterval       time.Duration `yaml:"max_interval"`
}

type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Env     string `yaml:"env"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Logging struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"` // text | json
		Output    string `yaml:"output"` // stdout | stderr | file path
		AddSource bool   `yaml:"add_source"`
	} `yaml:"logging"`

	Storage struct {
		CorpusPath  string        `yaml:"corpus_path"`
		RunsDBPath  string        `yaml:"runs_db_path"`
		LockTimeout time.Duration `yaml:"lock_timeout"`
		PostgresDSN string        `yaml:"postgres_dsn"`
	} `yaml:"storage"`

	Pipeline struct {
		TargetCandidates  int           `yaml:"target_candidates"`
		DefaultPageBudget int           `yaml:"default_page_budget"`
		Concurrency       int           `yaml:"concurrency"`
		PolitenessDelay   time.Duration `yaml:"politeness_delay"`
		CallTimeout       time.Duration `yaml:"call_timeout"`
		Retry             Retry         `yaml:"retry"`
	} `yaml:"pipeline"`

	Sources struct {
		ListingAPI struct {
			Enabled        bool   `yaml:"enabled"`
			BaseURL        string `yaml:"base_url"`
			Domain         string `yaml:"domain"`
			KeyringAccount string `yaml:"keyring_account"`
		} `yaml:"listing_api"`
		Indeed struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"indeed"`
		LinkedIn struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"linkedin"`
	} `yaml:"sources"`

	Browser struct {
		Engine            string        `yaml:"engine"` // http | playwright
		Headless          bool          `yaml:"headless"`
		UserAgent         string        `yaml:"user_agent"`
		NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	} `yaml:"browser"`

	Scoring struct {
		Provider        string        `yaml:"provider"` // llm | keyword | none
		BaseURL         string        `yaml:"base_url"`
		Model           string        `yaml:"model"`
		Temperature     float64       `yaml:"temperature"`
		Timeout         time.Duration `yaml:"timeout"`
		UnfilteredLimit int           `yaml:"unfiltered_limit"`
		KeyringAccount  string        `yaml:"keyring_account"`
		MinScore        int           `yaml:"min_score"`
		TitleRules      []Rule        `yaml:"title_rules"`
		KeywordRules    []Rule        `yaml:"keyword_rules"`
		Penalties       []Penalty     `yaml:"penalties"`
	} `yaml:"scoring"`

	Schedule struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Queries  []Query       `yaml:"queries"`
	} `yaml:"schedule"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	var c Config
	c.App.Name = "jobfinder"
	c.App.Env = "development"
	c.App.DataDir = "data"

	c.Server.Host = "127.0.0.1"
	c.Server.Port = 8000
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 0 // SSE streams stay open
	c.Server.ShutdownTimeout = 10 * time.Second

	c.Logging.Level = "info"
	c.Logging.Format = "text"
	c.Logging.Output = "stdout"

	c.Storage.CorpusPath = "data/jobs_data.json"
	c.Storage.RunsDBPath = "data/runs.db"
	c.Storage.LockTimeout = 10 * time.Second

	c.Pipeline.TargetCandidates = 100
	c.Pipeline.DefaultPageBudget = 1
	c.Pipeline.Concurrency = 3
	c.Pipeline.PolitenessDelay = time.Second
	c.Pipeline.CallTimeout = 60 * time.Second
	c.Pipeline.Retry = Retry{
		Attempts:          3,
		Interval:          500 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxInterval:       5 * time.Second,
	}

	c.Sources.ListingAPI.Enabled = true
	c.Sources.ListingAPI.BaseURL = "https://api.hasdata.com"
	c.Sources.ListingAPI.Domain = "www.indeed.com"
	c.Sources.ListingAPI.KeyringAccount = "hasdata"
	c.Sources.Indeed.Enabled = true
	c.Sources.Indeed.BaseURL = "https://www.indeed.com"
	c.Sources.LinkedIn.Enabled = true
	c.Sources.LinkedIn.BaseURL = "https://www.linkedin.com"

	c.Browser.Engine = "http"
	c.Browser.Headless = true
	c.Browser.NavigationTimeout = 30 * time.Second

	c.Scoring.Provider = "llm"
	c.Scoring.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	c.Scoring.Model = "gemini-1.5-flash"
	c.Scoring.Temperature = 0.1
	c.Scoring.Timeout = 60 * time.Second
	c.Scoring.UnfilteredLimit = 50
	c.Scoring.KeyringAccount = "scoring"
	c.Scoring.MinScore = 1

	c.Schedule.Interval = 6 * time.Hour
	return c
}

// Load reads .env (if present), then the YAML file at path over the
// defaults, then environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("JOBFINDER_HOST", &c.Server.Host)
	str("JOBFINDER_LOG_LEVEL", &c.Logging.Level)
	str("JOBFINDER_LOG_FORMAT", &c.Logging.Format)
	str("JOBFINDER_CORPUS_PATH", &c.Storage.CorpusPath)
	str("JOBFINDER_RUNS_DB", &c.Storage.RunsDBPath)
	str("JOBFINDER_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("JOBFINDER_LISTING_API_BASE_URL", &c.Sources.ListingAPI.BaseURL)
	str("JOBFINDER_BROWSER_ENGINE", &c.Browser.Engine)
	str("JOBFINDER_SCORING_PROVIDER", &c.Scoring.Provider)
	str("JOBFINDER_SCORING_BASE_URL", &c.Scoring.BaseURL)
	str("JOBFINDER_SCORING_MODEL", &c.Scoring.Model)

	if v := os.Getenv("JOBFINDER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
