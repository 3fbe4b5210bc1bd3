package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider     string `yaml:"provider"` // yahoo | vstrader | mock
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		MaxRetries   int    `yaml:"max_retries"`
		MarketSuffix string `yaml:"market_suffix"`
	} `yaml:"data_source"`
	Universe struct {
		Path string `yaml:"path"` // .csv reference file or .db SQLite catalog
	} `yaml:"universe"`
	Scan struct {
		Capital          float64       `yaml:"capital"`
		RiskPct          float64       `yaml:"risk_pct"`
		LookbackDays     int           `yaml:"lookback_days"`
		Workers          int           `yaml:"workers"`
		FetchTimeout     time.Duration `yaml:"fetch_timeout"`
		NegativeCacheTTL time.Duration `yaml:"negative_cache_ttl"`
		StopATRMultiple  float64       `yaml:"stop_atr_multiple"`
	} `yaml:"scan"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
		Segment  string `yaml:"segment"`
	} `yaml:"schedule"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

const (
	MinLookbackDays = 30
	MaxLookbackDays = 730
)

// Load reads config from a YAML file, then applies .env and environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := newConfig()

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// newConfig presets the fields where zero is a meaningful setting, so that
// only keys absent from the file keep these defaults.
func newConfig() *Config {
	cfg := &Config{}
	cfg.DataSource.MaxRetries = 3
	cfg.Scan.NegativeCacheTTL = 2 * time.Minute
	return cfg
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"DATA_PROVIDER":      &c.DataSource.Provider,
		"VSTRADER_BASE_URL":  &c.DataSource.BaseURL,
		"VSTRADER_API_KEY":   &c.DataSource.APIKey,
		"HTTPS_PROXY":        &c.Proxy,
		"UNIVERSE_PATH":      &c.Universe.Path,
		"CRON_SCAN":          &c.Schedule.ScanCron,
		"HTTP_ADDR":          &c.HTTP.Addr,
		"LOG_LEVEL":          &c.Log.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"SCAN_CAPITAL":  &c.Scan.Capital,
		"SCAN_RISK_PCT": &c.Scan.RiskPct,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = f
		}
	}

	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCAN_WORKERS: %w", err)
		}
		c.Scan.Workers = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
		if c.DataSource.BaseURL != "" {
			c.DataSource.Provider = "vstrader"
		}
	}
	if c.DataSource.MarketSuffix == "" {
		c.DataSource.MarketSuffix = ".NS"
	}
	if c.Universe.Path == "" {
		c.Universe.Path = "data/EQUITY_L.csv"
	}
	if c.Scan.Capital == 0 {
		c.Scan.Capital = 25000
	}
	if c.Scan.RiskPct == 0 {
		c.Scan.RiskPct = 2.0
	}
	if c.Scan.LookbackDays == 0 {
		c.Scan.LookbackDays = 180
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = 8
	}
	if c.Scan.FetchTimeout == 0 {
		c.Scan.FetchTimeout = 15 * time.Second
	}
	if c.Scan.StopATRMultiple == 0 {
		c.Scan.StopATRMultiple = 2.0
	}
	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 45 15 * * 1-5"
	}
	if c.Schedule.Segment == "" {
		c.Schedule.Segment = "bluechip"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "vstrader":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for provider vstrader")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.DataSource.MaxRetries < 0 {
		return fmt.Errorf("data_source.max_retries must not be negative")
	}
	if c.Scan.Capital <= 0 {
		return fmt.Errorf("scan.capital must be positive")
	}
	if c.Scan.RiskPct <= 0 || c.Scan.RiskPct > 100 {
		return fmt.Errorf("scan.risk_pct must be in (0, 100]")
	}
	if c.Scan.LookbackDays < MinLookbackDays || c.Scan.LookbackDays > MaxLookbackDays {
		return fmt.Errorf("scan.lookback_days must be in [%d, %d]", MinLookbackDays, MaxLookbackDays)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	if c.Scan.FetchTimeout <= 0 {
		return fmt.Errorf("scan.fetch_timeout must be positive")
	}
	if c.Scan.NegativeCacheTTL < 0 {
		return fmt.Errorf("scan.negative_cache_ttl must not be negative")
	}
	if c.Scan.StopATRMultiple <= 0 {
		return fmt.Errorf("scan.stop_atr_multiple must be positive")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
