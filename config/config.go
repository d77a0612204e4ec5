// Package config loads assistant settings from defaults, an optional file,
// FEEDBACK_ASSISTANT_* environment variables and command flags, in that order.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	EnvPrefix = "FEEDBACK_ASSISTANT"
	appDir    = "feedback-assistant"
)

// Config is the full assistant configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Query   QueryConfig   `mapstructure:"query"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig locates the feedback analysis service.
type ServerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// QueryConfig bounds assistant queries.
type QueryConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig selects where conversations are saved.
type SessionConfig struct {
	ID         string        `mapstructure:"id"`
	Driver     string        `mapstructure:"driver"`
	Dir        string        `mapstructure:"dir"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	TTL        time.Duration `mapstructure:"ttl"`
	IOTimeout  time.Duration `mapstructure:"io_timeout"`
}

// RedisConfig is used by the redis session driver.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig controls log level, encoding and destination.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

var drivers = map[string]bool{"memory": true, "redis": true, "file": true, "sqlite": true}

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"base-url":       "server.base_url",
	"session-driver": "session.driver",
	"session":        "session.id",
}

// BindFlags registers the flags that override config keys.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("base-url", "", "feedback service base URL")
	fs.String("session-driver", "", "session store driver (memory, redis, file, sqlite)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://127.0.0.1:5000")
	v.SetDefault("server.timeout", 90*time.Second)
	v.SetDefault("query.timeout", 60*time.Second)
	v.SetDefault("session.id", "")
	v.SetDefault("session.driver", "file")
	v.SetDefault("session.dir", defaultSessionDir())
	v.SetDefault("session.sqlite_path", "")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.io_timeout", 2*time.Second)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
}

func defaultSessionDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, appDir, "sessions")
}

// Load reads configuration. path may be empty. Flags in fs that were set on the
// command line take precedence over everything else; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("failed to read config file %s", path)).
				WithCause(err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to bind flag --%s", name)).
					WithCause(err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("failed to decode configuration").
			WithCause(err)
	}
	if cfg.Session.SQLitePath == "" {
		cfg.Session.SQLitePath = filepath.Join(cfg.Session.Dir, "sessions.db")
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	invalid := func(msg string, cause error) error {
		b := errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition).WithMsg(msg)
		if cause != nil {
			b = b.WithCause(cause)
		}
		return b
	}

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return invalid("server.base_url is not a valid URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(fmt.Sprintf("server.base_url %q must be http(s)://host[:port]", c.Server.BaseURL), nil)
	}
	if c.Server.Timeout <= 0 {
		return invalid("server.timeout must be positive", nil)
	}
	if c.Query.Timeout <= 0 {
		return invalid("query.timeout must be positive", nil)
	}
	if !drivers[c.Session.Driver] {
		return invalid(fmt.Sprintf("session.driver %q is not one of memory, redis, file, sqlite", c.Session.Driver), nil)
	}
	if c.Session.Driver == "file" && c.Session.Dir == "" {
		return invalid("session.dir is required for the file driver", nil)
	}
	if c.Session.Driver == "sqlite" && c.Session.SQLitePath == "" {
		return invalid("session.sqlite_path is required for the sqlite driver", nil)
	}
	if c.Session.Driver == "redis" && c.Redis.Addr == "" {
		return invalid("redis.addr is required for the redis driver", nil)
	}
	if c.Session.IOTimeout <= 0 {
		return invalid("session.io_timeout must be positive", nil)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid(fmt.Sprintf("log.level %q is not a valid level", c.Log.Level), err)
	}
	return nil
}
