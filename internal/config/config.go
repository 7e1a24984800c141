package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"focus-service/internal/focus"
	"focus-service/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Port        string
	RedisAddr   string // Empty disables Redis
	RedisTTL    time.Duration
	QueueSize   int
	LogLevel    string
	LogFormat   string
	Environment string

	DefaultPreset string
	PresetsFile   string

	// Presets are the built-in study modes merged with PresetsFile.
	Presets map[string]focus.Config
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisTTL:      getEnvDuration("REDIS_TTL", time.Hour),
		QueueSize:     getEnvInt("QUEUE_SIZE", 1024),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		Environment:   getEnv("ENVIRONMENT", "production"),
		DefaultPreset: os.Getenv("DEFAULT_PRESET"),
		PresetsFile:   os.Getenv("PRESETS_FILE"),
		Presets:       focus.Presets(),
	}
	if _, set := os.LookupEnv("REDIS_ADDR"); !set {
		cfg.RedisAddr = "localhost:6379"
	}

	if cfg.PresetsFile != "" {
		extra, err := LoadPresets(cfg.PresetsFile)
		if err != nil {
			return nil, err
		}
		for name, p := range extra {
			cfg.Presets[name] = p
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: PORT is empty", ErrInvalid)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: QUEUE_SIZE must be positive, got %d", ErrInvalid, c.QueueSize)
	}
	if c.RedisTTL <= 0 {
		return fmt.Errorf("%w: REDIS_TTL must be positive, got %s", ErrInvalid, c.RedisTTL)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("%w: LOG_FORMAT must be json or text, got %q", ErrInvalid, c.LogFormat)
	}
	if c.DefaultPreset != "" {
		if _, ok := c.Presets[c.DefaultPreset]; !ok {
			return fmt.Errorf("%w: DEFAULT_PRESET %q is not a known preset", ErrInvalid, c.DefaultPreset)
		}
	}
	return nil
}

// BaseConfig is the classifier config used when a session names no preset.
func (c *Config) BaseConfig() focus.Config {
	if p, ok := c.Presets[c.DefaultPreset]; ok {
		return p
	}
	return focus.DefaultConfig()
}

// presetsFile is the YAML layout of PRESETS_FILE:
//
//	presets:
//	  exam_cram:
//	    base: light_study
//	    drowsy_hold_ms: 10000
type presetsFile struct {
	Presets map[string]presetEntry `yaml:"presets"`
}

type presetEntry struct {
	Base              string `yaml:"base"`
	models.Thresholds `yaml:",inline"`
}

// LoadPresets parses a YAML presets file. Each entry overlays its
// thresholds on a built-in preset (or the defaults when base is empty).
func LoadPresets(path string) (map[string]focus.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	return ParsePresets(data)
}

func ParsePresets(data []byte) (map[string]focus.Config, error) {
	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse presets: %v", ErrInvalid, err)
	}

	out := make(map[string]focus.Config, len(file.Presets))
	for name, entry := range file.Presets {
		base := focus.DefaultConfig()
		if entry.Base != "" {
			p, ok := focus.Preset(entry.Base)
			if !ok {
				return nil, fmt.Errorf("%w: preset %q: unknown base %q", ErrInvalid, name, entry.Base)
			}
			base = p
		}
		cfg, err := entry.Thresholds.Apply(base)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalid, s)
	}
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
