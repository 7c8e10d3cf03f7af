package config

import (
	"errors"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DefaultSessionSecret is the shipped cookie signing key. Anyone can forge
// sessions with it.
const DefaultSessionSecret = "change-this-session-secret-in-production"

var ErrDefaultSessionSecret = errors.New("auth.session_secret is still the shipped default; set MEECHAIN_AUTH_SESSION_SECRET")

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Timeline  TimelineConfig  `mapstructure:"timeline"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Mining    MiningConfig    `mapstructure:"mining"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Tts       TtsConfig       `mapstructure:"tts"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"` // "development" or "production"
}

// DatabaseConfig selects the persistence backend for player state.
type DatabaseConfig struct {
	Driver    string        `mapstructure:"driver"` // sqlite, postgres, file or memory
	Path      string        `mapstructure:"path"`
	DSN       string        `mapstructure:"dsn"`
	Dir       string        `mapstructure:"dir"`
	SaveDelay time.Duration `mapstructure:"save_delay"`
}

type TimelineConfig struct {
	ConfirmDelay time.Duration `mapstructure:"confirm_delay"`
	ChainTag     string        `mapstructure:"chain_tag"`
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	SessionName   string `mapstructure:"session_name"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type MiningConfig struct {
	Tick           time.Duration `mapstructure:"tick"`
	HashesPerLevel int           `mapstructure:"hashes_per_level"`
	MinHashes      int           `mapstructure:"min_hashes"`
	MaxHashes      int           `mapstructure:"max_hashes"`
}

// LLM provider selection
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // "none", "ollama" or "openai"
}

type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`   // Optional, defaults to OpenAI API
	MaxTokens int    `mapstructure:"max_tokens"` // Optional, defaults to model's max
	Timeout   int    `mapstructure:"timeout"`
}

type OllamaConfig struct {
	Host    string `mapstructure:"host"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

type TtsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Voice           string `mapstructure:"voice"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "development")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./meechain.db")
	v.SetDefault("database.dir", "./data/players")
	v.SetDefault("database.save_delay", 500*time.Millisecond)

	v.SetDefault("timeline.confirm_delay", 3500*time.Millisecond)
	v.SetDefault("timeline.chain_tag", "meechain-testnet")

	v.SetDefault("auth.session_secret", DefaultSessionSecret)
	v.SetDefault("auth.session_name", "meechain-session")

	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("mining.tick", 2*time.Second)
	v.SetDefault("mining.hashes_per_level", 1000)
	v.SetDefault("mining.min_hashes", 50)
	v.SetDefault("mining.max_hashes", 250)

	v.SetDefault("llm.provider", "none")

	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2")
	v.SetDefault("ollama.timeout", 30)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 30)
	v.SetDefault("openai.max_tokens", 1000)

	v.SetDefault("tts.enabled", false)
	v.SetDefault("tts.voice", "en-US-Chirp-HD-F")
}

// Load reads config.yaml (from . or ./config) on top of the defaults and
// applies MEECHAIN_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return load(viper.GetViper())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.BindEnv("openai.api_key", "MEECHAIN_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("server.port", "MEECHAIN_SERVER_PORT", "PORT")

	v.SetEnvPrefix("MEECHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// CheckSecrets rejects the default session secret outside development. In
// development it reports insecure=true so the caller can warn.
func (c *Config) CheckSecrets() (insecure bool, err error) {
	if c.Auth.SessionSecret != DefaultSessionSecret && c.Auth.SessionSecret != "" {
		return false, nil
	}
	if c.Log.Env != "development" {
		return true, ErrDefaultSessionSecret
	}
	return true, nil
}

// Watch re-reads the config file whenever it changes on disk and hands the
// fresh values to onChange. It is a no-op when no file was loaded.
func Watch(onChange func(*Config)) {
	v := viper.GetViper()
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var config Config
		if err := v.Unmarshal(&config); err != nil {
			return
		}
		onChange(&config)
	})
	v.WatchConfig()
}
