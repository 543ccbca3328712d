package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the bot.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Market   MarketConfig   `yaml:"market"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig holds every tunable of the trade engine and risk governor.
type EngineConfig struct {
	StartBalance float64 `yaml:"start_balance"`
	PointValue   float64 `yaml:"point_value"`
	MinLot       float64 `yaml:"min_lot"`

	BaseTPPoints    float64 `yaml:"base_tp_points"`
	BaseSLPoints    float64 `yaml:"base_sl_points"`
	TrailStart      float64 `yaml:"trail_start_points"`
	TrailDistance   float64 `yaml:"trail_distance_points"`
	PartialFraction float64 `yaml:"partial_fraction"`

	MinRisk      float64 `yaml:"min_risk"`
	MaxRisk      float64 `yaml:"max_risk"`
	RiskStep     float64 `yaml:"risk_step"`
	MaxDailyLoss float64 `yaml:"max_daily_loss"`
	MaxDrawdown  float64 `yaml:"max_drawdown"`

	AdaptiveWindow    int `yaml:"adaptive_window"`
	AdaptiveMinSample int `yaml:"adaptive_min_sample"`
	LossStreakCut     int `yaml:"loss_streak_cut"`

	BlockCooldownHours int `yaml:"block_cooldown_hours"`
	BlockLossStreak    int `yaml:"block_loss_streak"`

	DisableDDThreshold    float64 `yaml:"disable_dd_threshold"`
	StrategyCooldownHours int     `yaml:"strategy_cooldown_hours"`
	MinTradesForOpt       int     `yaml:"min_trades_for_opt"`
	MinWinrate            float64 `yaml:"min_winrate"`
}

// MarketConfig points at the market-data service.
type MarketConfig struct {
	BaseURL           string   `yaml:"base_url"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	FallbackIntervals []string `yaml:"fallback_intervals"` // tried in order for indicators
}

// ServerConfig controls the webhook HTTP server.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"` // shared secret; overridable via WEBHOOK_TOKEN
}

// StorageConfig controls where state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// TelegramConfig controls chat notifications.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// LogConfig controls log format, level and optional file rotation.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`   // empty = stderr only
}

// Load reads the YAML config file and the .env file if present.
// Env values override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// MarketTimeout returns the market-data fetch timeout as a time.Duration.
func (c *Config) MarketTimeout() time.Duration {
	return time.Duration(c.Market.TimeoutSeconds) * time.Second
}

// BlockCooldown returns the context-block cooldown as a time.Duration.
func (c *Config) BlockCooldown() time.Duration {
	return time.Duration(c.Engine.BlockCooldownHours) * time.Hour
}

// StrategyCooldown returns the disabled-strategy cooldown as a time.Duration.
func (c *Config) StrategyCooldown() time.Duration {
	return time.Duration(c.Engine.StrategyCooldownHours) * time.Hour
}

// applyEnvOverrides overwrites values with environment variables when present.
// Secrets should live in the environment, not in the YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WEBHOOK_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults makes sure every required value has something sane.
func setDefaults(cfg *Config) {
	e := &cfg.Engine
	if e.StartBalance <= 0 {
		e.StartBalance = 1000
	}
	if e.PointValue <= 0 {
		e.PointValue = 1.0
	}
	if e.MinLot <= 0 {
		e.MinLot = 0.01
	}
	if e.BaseTPPoints <= 0 {
		e.BaseTPPoints = 20
	}
	if e.BaseSLPoints <= 0 {
		e.BaseSLPoints = 10
	}
	if e.TrailStart <= 0 {
		e.TrailStart = 10
	}
	if e.TrailDistance <= 0 {
		e.TrailDistance = 6
	}
	if e.PartialFraction <= 0 || e.PartialFraction >= 1 {
		e.PartialFraction = 0.5
	}
	if e.MinRisk <= 0 {
		e.MinRisk = 0.005
	}
	if e.MaxRisk <= 0 {
		e.MaxRisk = 0.02
	}
	if e.RiskStep <= 0 {
		e.RiskStep = 0.0025
	}
	if e.MaxDailyLoss <= 0 {
		e.MaxDailyLoss = 0.05
	}
	if e.MaxDrawdown <= 0 {
		e.MaxDrawdown = 0.10
	}
	if e.AdaptiveWindow <= 0 {
		e.AdaptiveWindow = 30
	}
	if e.AdaptiveMinSample <= 0 {
		e.AdaptiveMinSample = 10
	}
	if e.LossStreakCut <= 0 {
		e.LossStreakCut = 3
	}
	if e.BlockCooldownHours <= 0 {
		e.BlockCooldownHours = 6
	}
	if e.BlockLossStreak <= 0 {
		e.BlockLossStreak = 3
	}
	if e.DisableDDThreshold <= 0 {
		e.DisableDDThreshold = 0.20
	}
	if e.StrategyCooldownHours <= 0 {
		e.StrategyCooldownHours = 24
	}
	if e.MinTradesForOpt <= 0 {
		e.MinTradesForOpt = 10
	}
	if e.MinWinrate <= 0 {
		e.MinWinrate = 0.5
	}

	if cfg.Market.TimeoutSeconds <= 0 {
		cfg.Market.TimeoutSeconds = 5
	}
	if len(cfg.Market.FallbackIntervals) == 0 {
		cfg.Market.FallbackIntervals = []string{"15m", "1h"}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "impulsebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
