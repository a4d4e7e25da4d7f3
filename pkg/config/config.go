// Package config loads application settings from a YAML file and KEEL_*
// environment variables.
//
// Values are resolved in three layers: built-in defaults, the YAML file, then
// environment overrides. Settings are plain values; pass them to the app with
// keel.WithSettings rather than reading a global.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/keel/pkg/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KEEL_"

const (
	defaultAddress            = ":8080"
	defaultShutdownTimeout    = 30 * time.Second
	defaultMaxBodyBytes       = 10 << 20
	defaultMaxMultipartMemory = 32 << 20
)

// Settings is the runtime configuration of an application.
type Settings struct {
	Sentry             logger.SentryConfig `yaml:"sentry"`
	Log                logger.Config       `yaml:"log"`
	Address            string              `yaml:"address"`
	ShutdownTimeout    time.Duration       `yaml:"shutdown_timeout"`
	MaxBodyBytes       int64               `yaml:"max_body_bytes"`
	MaxMultipartMemory int64               `yaml:"max_multipart_memory"`
	WorkerPoolSize     int                 `yaml:"worker_pool_size"`
	Debug              bool                `yaml:"debug"`
}

// Default returns settings with every default applied.
func Default() Settings {
	var s Settings
	s.SetDefaults()
	return s
}

// SetDefaults fills zero fields.
func (s *Settings) SetDefaults() {
	if s.Address == "" {
		s.Address = defaultAddress
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = defaultMaxBodyBytes
	}
	if s.MaxMultipartMemory == 0 {
		s.MaxMultipartMemory = defaultMaxMultipartMemory
	}
	if s.WorkerPoolSize == 0 {
		s.WorkerPoolSize = runtime.GOMAXPROCS(0) * 4
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "json"
	}
	if s.Log.MaxSizeMB == 0 {
		s.Log.MaxSizeMB = 10
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 5
	}
	if s.Log.MaxAgeDays == 0 {
		s.Log.MaxAgeDays = 28
	}
}

// Validate reports settings that cannot be served.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Address) == "" {
		errs = append(errs, errors.New("address cannot be empty"))
	}
	if s.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max_body_bytes cannot be negative"))
	}
	if s.WorkerPoolSize < 1 {
		errs = append(errs, errors.New("worker_pool_size must be positive"))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown_timeout cannot be negative"))
	}
	return errors.Join(errs...)
}

// Load reads path (when non-empty and present), applies environment overrides
// from the process environment and validates the result.
func Load(path string) (Settings, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
		data = b
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML data, then applies overrides found through lookup.
func Parse(data []byte, lookup func(string) (string, bool)) (Settings, error) {
	var s Settings
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config: %w", err)
		}
	}
	s.SetDefaults()

	if lookup != nil {
		if err := s.applyEnv(lookup); err != nil {
			return Settings{}, err
		}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}
	env.bool("DEBUG", &s.Debug)
	env.string("ADDRESS", &s.Address)
	env.duration("SHUTDOWN_TIMEOUT", &s.ShutdownTimeout)
	env.int64("MAX_BODY_BYTES", &s.MaxBodyBytes)
	env.int64("MAX_MULTIPART_MEMORY", &s.MaxMultipartMemory)
	env.int("WORKER_POOL_SIZE", &s.WorkerPoolSize)
	env.string("LOG_LEVEL", &s.Log.Level)
	env.string("LOG_FORMAT", &s.Log.Format)
	env.string("LOG_FILE", &s.Log.File)
	env.int("LOG_MAX_SIZE_MB", &s.Log.MaxSizeMB)
	env.int("LOG_MAX_BACKUPS", &s.Log.MaxBackups)
	env.int("LOG_MAX_AGE_DAYS", &s.Log.MaxAgeDays)
	env.bool("LOG_COMPRESS", &s.Log.Compress)
	env.string("SENTRY_DSN", &s.Sentry.DSN)
	env.string("SENTRY_ENVIRONMENT", &s.Sentry.Environment)
	env.string("SENTRY_MIN_LEVEL", &s.Sentry.MinLevel)
	return errors.Join(env.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s=%q: %w", EnvPrefix, key, v, err))
}

func (e *envReader) string(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		e.fail(key, v, errors.New("not a boolean"))
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
