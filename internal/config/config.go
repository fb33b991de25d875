package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode         string            `mapstructure:"mode"`
	Port         int               `mapstructure:"port"`
	StaticPath   string            `mapstructure:"static_path"`
	Secret       string            `mapstructure:"secret"`
	LogLevel     string            `mapstructure:"log_level"`
	Backpressure string            `mapstructure:"backpressure"`
	WS           WSConfig          `mapstructure:"ws"`
	SpeechRate   RateConfig        `mapstructure:"speech_rate"`
	Cache        CacheConfig       `mapstructure:"cache"`
	Translation  TranslationConfig `mapstructure:"translation"`
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type CacheConfig struct {
	MaxEntries    int           `mapstructure:"max_entries"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type TranslationConfig struct {
	Timeout   time.Duration    `mapstructure:"timeout"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig describes one entry of the ordered provider chain.
// APIKey may reference environment variables ("${OPENAI_API_KEY}").
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Email   string `mapstructure:"email"`
	Tag     bool   `mapstructure:"tag"`
}

// Load reads config/config.<env>.yaml on top of defaults. Environment
// variables prefixed with BABEL_ override file values (ws.read_limit ->
// BABEL_WS_READ_LIMIT). An empty env falls back to CONFIG_ENV, then "dev".
func Load(env string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if env == "" {
		env = os.Getenv("CONFIG_ENV")
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("BABEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for i := range cfg.Translation.Providers {
		cfg.Translation.Providers[i].APIKey = os.ExpandEnv(cfg.Translation.Providers[i].APIKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Int("providers", len(cfg.Translation.Providers)).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("backpressure", "drop")

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "10s")
	v.SetDefault("ws.send_buffer", 64)

	v.SetDefault("speech_rate.limit", 30)
	v.SetDefault("speech_rate.interval", "10s")

	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("cache.sweep_interval", "5m")

	v.SetDefault("translation.timeout", "10s")
	v.SetDefault("translation.providers", []map[string]any{
		{"name": "libretranslate", "base_url": "http://localhost:5000"},
		{"name": "mymemory"},
	})
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.WS.PingPeriod >= c.WS.PongWait {
		errs = append(errs, fmt.Errorf("ws.ping_period (%s) must be shorter than ws.pong_wait (%s)", c.WS.PingPeriod, c.WS.PongWait))
	}
	if c.WS.SendBuffer <= 0 {
		errs = append(errs, errors.New("ws.send_buffer must be positive"))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("cache.max_entries must be positive"))
	}
	if c.SpeechRate.Limit <= 0 || c.SpeechRate.Interval <= 0 {
		errs = append(errs, errors.New("speech_rate limit and interval must be positive"))
	}
	if len(c.Translation.Providers) == 0 {
		errs = append(errs, errors.New("translation.providers must list at least one provider"))
	}
	return errors.Join(errs...)
}
