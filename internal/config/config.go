package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	DeepSeek   OpenAIConfig     `yaml:"deepseek" mapstructure:"deepseek"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Roles      RolesConfig      `yaml:"roles" mapstructure:"roles"`
	Constraint ConstraintConfig `yaml:"constraint" mapstructure:"constraint"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Learning   LearningConfig   `yaml:"learning" mapstructure:"learning"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	DefaultModel string `yaml:"default_model" mapstructure:"default_model"`
}

// OpenAIConfig holds settings for an OpenAI-compatible chat endpoint
// (OpenAI proper, DeepSeek, Qwen — anything speaking /chat/completions).
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// SearchConfig configures the search gateway aggregator.
type SearchConfig struct {
	SerperKey     string  `yaml:"serper_key" mapstructure:"serper_key"`
	JinaKey       string  `yaml:"jina_key" mapstructure:"jina_key"`
	JinaBaseURL   string  `yaml:"jina_base_url" mapstructure:"jina_base_url"`
	TopK          int     `yaml:"top_k" mapstructure:"top_k"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	MinProviders  int     `yaml:"min_providers" mapstructure:"min_providers"`
}

// RolesConfig configures role definitions and per-call behavior.
type RolesConfig struct {
	File            string `yaml:"file" mapstructure:"file"` // optional YAML role table
	CallTimeoutSecs int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	MaxTokens       int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	UserProfile     string `yaml:"user_profile" mapstructure:"user_profile"`
}

// ConstraintConfig configures the constraint enforcer.
type ConstraintConfig struct {
	Budget           float64  `yaml:"budget" mapstructure:"budget"`           // hard budget ceiling
	BudgetUnit       string   `yaml:"budget_unit" mapstructure:"budget_unit"` // 万元, USD, ...
	MaxROI           float64  `yaml:"max_roi" mapstructure:"max_roi"`         // ROI claims above this are implausible
	Banlist          []string `yaml:"banlist" mapstructure:"banlist"`         // compliance keywords
	CorrectionPolicy string   `yaml:"correction_policy" mapstructure:"correction_policy"` // rewrite | regenerate
	RulesFile        string   `yaml:"rules_file" mapstructure:"rules_file"`
}

// VerifyConfig configures the verification components.
type VerifyConfig struct {
	MaxAgeDays     map[string]int `yaml:"max_age_days" mapstructure:"max_age_days"`
	TiersFile      string         `yaml:"tiers_file" mapstructure:"tiers_file"`
	ValueTolerance float64        `yaml:"value_tolerance" mapstructure:"value_tolerance"` // ±fraction for in-range
}

// LearningConfig configures the learning store.
type LearningConfig struct {
	MaxRules         int     `yaml:"max_rules" mapstructure:"max_rules"`
	DecayPerMonth    float64 `yaml:"decay_per_month" mapstructure:"decay_per_month"`
	TopRules         int     `yaml:"top_rules" mapstructure:"top_rules"`
	SimilarCases     int     `yaml:"similar_cases" mapstructure:"similar_cases"`
	WeightFloorBelow float64 `yaml:"weight_floor_below" mapstructure:"weight_floor_below"`
	WeightBoostAbove float64 `yaml:"weight_boost_above" mapstructure:"weight_boost_above"`
}

// ReportConfig configures report rendering and export.
type ReportConfig struct {
	NotionToken  string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionParent string `yaml:"notion_parent" mapstructure:"notion_parent"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	BlockedThreshold     int     `yaml:"blocked_threshold" mapstructure:"blocked_threshold"`
	DeadLetterThreshold  int     `yaml:"dead_letter_threshold" mapstructure:"dead_letter_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DECISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "decision.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.default_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("search.jina_base_url", "https://s.jina.ai")
	v.SetDefault("search.top_k", 5)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.rate_per_second", 2.0)
	v.SetDefault("search.rate_burst", 4)
	v.SetDefault("search.min_providers", 2)
	v.SetDefault("roles.call_timeout_secs", 30)
	v.SetDefault("roles.max_tokens", 4096)
	v.SetDefault("constraint.correction_policy", "rewrite")
	v.SetDefault("constraint.max_roi", 5.0)
	v.SetDefault("verify.value_tolerance", 0.2)
	v.SetDefault("verify.max_age_days", map[string]int{
		"price":      7,
		"market":     30,
		"statistics": 90,
		"policy":     180,
	})
	v.SetDefault("learning.max_rules", 200)
	v.SetDefault("learning.decay_per_month", 2.0)
	v.SetDefault("learning.top_rules", 5)
	v.SetDefault("learning.similar_cases", 2)
	v.SetDefault("learning.weight_floor_below", 0.5)
	v.SetDefault("learning.weight_boost_above", 0.8)
	v.SetDefault("monitoring.failure_rate_threshold", 0.3)
	v.SetDefault("monitoring.blocked_threshold", 3)
	v.SetDefault("monitoring.dead_letter_threshold", 10)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
