// Package cliconfig loads rcli settings.
//
// Sources are merged with priority Flag > Env > File > Default:
//
//	addr: localhost:6379
//	db: 2
//	client:
//	  name: reporting
//	timeout:
//	  dial: 5s
//	  read: 3s
//	log:
//	  level: warn
//	  redact: [AUTH]
//
// Environment variables use the RCLI_ prefix and map underscores to key
// separators, so RCLI_TIMEOUT_READ sets timeout.read.
package cliconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/go-redis/singleconn"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "RCLI_"

// Config is the merged rcli configuration.
type Config struct {
	// URL is a redis:// or unix:// URL. Fields set explicitly override
	// the values it carries. Addr defaults to localhost:6379.
	URL      string `koanf:"url"`
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`

	Client struct {
		Name string `koanf:"name"`
	} `koanf:"client"`

	Timeout struct {
		Dial  time.Duration `koanf:"dial"`
		Read  time.Duration `koanf:"read"`
		Write time.Duration `koanf:"write"`
	} `koanf:"timeout"`

	Log struct {
		Level string `koanf:"level"`
		// Redact drops client library messages containing any of these.
		Redact []string `koanf:"redact"`
		Quiet  bool     `koanf:"quiet"`
	} `koanf:"log"`
}

// Defaults returns the values used when no source sets a key. Connection
// defaults are left to redis.Options.
func Defaults() map[string]any {
	return map[string]any{
		"log.level": "warn",
	}
}

// LogLevels lists the accepted log.level values, most severe first.
var LogLevels = []string{"error", "warn", "info", "debug"}

// Validate checks values that the redis client would otherwise reject
// late or silently.
func (c *Config) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("cliconfig: db must not be negative: %d", c.DB)
	}
	for _, l := range LogLevels {
		if c.Log.Level == l {
			return nil
		}
	}
	return fmt.Errorf("cliconfig: unknown log level %q (want one of %s)",
		c.Log.Level, strings.Join(LogLevels, ", "))
}

// Options converts the configuration into client options.
func (c *Config) Options() (*redis.Options, error) {
	opt := &redis.Options{}
	if c.URL != "" {
		var err error
		if opt, err = redis.ParseURL(c.URL); err != nil {
			return nil, err
		}
	}

	if c.Addr != "" {
		opt.Addr = c.Addr
	}
	if c.Username != "" {
		opt.Username = c.Username
	}
	if c.Password != "" {
		opt.Password = c.Password
	}
	if c.DB != 0 {
		opt.DB = c.DB
	}
	if c.Client.Name != "" {
		opt.ClientName = c.Client.Name
	}
	if c.Timeout.Dial != 0 {
		opt.DialTimeout = c.Timeout.Dial
	}
	if c.Timeout.Read != 0 {
		opt.ReadTimeout = c.Timeout.Read
	}
	if c.Timeout.Write != 0 {
		opt.WriteTimeout = c.Timeout.Write
	}
	return opt, nil
}

// Loader merges configuration sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file to read.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads defaults, the config file, the environment and finally flags,
// and returns the validated result. flags holds only the flags the user
// set, keyed like the config file.
func (l *Loader) Load(flags map[string]any) (*Config, error) {
	if err := l.LoadMap(Defaults()); err != nil {
		return nil, err
	}
	if err := l.LoadFile(l.filePath); err != nil {
		return nil, err
	}
	if err := l.LoadEnv(); err != nil {
		return nil, err
	}
	if err := l.LoadMap(flags); err != nil {
		return nil, err
	}

	cfg := new(Config)
	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("cliconfig: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("cliconfig: load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads prefixed environment variables:
// RCLI_TIMEOUT_READ becomes timeout.read.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("cliconfig: load env: %w", err)
	}
	return nil
}

func (l *Loader) LoadMap(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("cliconfig: load map: %w", err)
	}
	return nil
}

// Keys returns all loaded keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
