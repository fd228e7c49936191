package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of both binaries.
type Config struct {
	Feed struct {
		Addr      string   `yaml:"addr"`
		Symbol    string   `yaml:"symbol"`
		Interval  string   `yaml:"interval"`
		Exchanges []string `yaml:"exchanges"`
		History   int      `yaml:"history"`
	} `yaml:"feed"`
	Chart struct {
		TargetFPS     float64 `yaml:"target_fps"`
		HeatMapPolicy string  `yaml:"heatmap_policy"`
		Palette       string  `yaml:"palette"`
		Ramp          string  `yaml:"ramp"`
		SplitVolume   bool    `yaml:"split_volume"`
		PixelScale    int     `yaml:"pixel_scale"`
	} `yaml:"chart"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FEED_ADDR"); v != "" {
		cfg.Feed.Addr = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		cfg.Feed.Symbol = v
	}
	if v := os.Getenv("INTERVAL"); v != "" {
		cfg.Feed.Interval = v
	}
	if v := os.Getenv("EXCHANGES"); v != "" {
		cfg.Feed.Exchanges = splitList(v)
	}
	if v := os.Getenv("HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Feed.History = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("TARGET_FPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chart.TargetFPS = f
		}
	}
	if v := os.Getenv("HEATMAP_POLICY"); v != "" {
		cfg.Chart.HeatMapPolicy = v
	}
	if v := os.Getenv("PALETTE"); v != "" {
		cfg.Chart.Palette = v
	}
	if v := os.Getenv("PIXEL_SCALE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chart.PixelScale = n
		}
	}

	// Defaults
	if cfg.Feed.Addr == "" {
		cfg.Feed.Addr = "localhost:50051"
	}
	if cfg.Feed.Symbol == "" {
		cfg.Feed.Symbol = "BTCUSDT"
	}
	if cfg.Feed.Interval == "" {
		cfg.Feed.Interval = "1m"
	}
	if len(cfg.Feed.Exchanges) == 0 {
		cfg.Feed.Exchanges = []string{"binance", "bybit"}
	}
	if cfg.Feed.History <= 0 {
		cfg.Feed.History = 500
	}
	if cfg.Chart.TargetFPS <= 0 {
		cfg.Chart.TargetFPS = 30
	}
	if cfg.Chart.HeatMapPolicy == "" {
		cfg.Chart.HeatMapPolicy = "sum"
	}
	if cfg.Chart.Palette == "" {
		cfg.Chart.Palette = "dark"
	}
	if cfg.Chart.Ramp == "" {
		cfg.Chart.Ramp = "inferno"
	}
	if cfg.Chart.PixelScale <= 0 {
		cfg.Chart.PixelScale = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks the fields both binaries rely on.
func (c *Config) Validate() error {
	if c.Feed.Symbol == "" {
		return fmt.Errorf("feed.symbol is required")
	}
	if c.Feed.Interval == "" {
		return fmt.Errorf("feed.interval is required")
	}
	for _, ex := range c.Feed.Exchanges {
		switch ex {
		case "binance", "bybit", "okx", "synth":
		default:
			return fmt.Errorf("feed.exchanges: unknown exchange %q", ex)
		}
	}
	if c.Chart.PixelScale > 16 {
		return fmt.Errorf("chart.pixel_scale must be at most 16, got %d", c.Chart.PixelScale)
	}
	return nil
}

// Key is the "SYMBOL:INTERVAL" subscription key.
func (c *Config) Key() string {
	return c.Feed.Symbol + ":" + c.Feed.Interval
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseLevel converts string (debug|info|warn|error) to slog.Level. Unknown → info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger at the given level writing to w.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}
