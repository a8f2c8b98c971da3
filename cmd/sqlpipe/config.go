package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

const envPrefix = "SQLPIPE"

const (
	adapterPGX  = "pgx"
	adapterSQL  = "sql"
	adapterSQLX = "sqlx"

	serializerJSON = "json"
	serializerRaw  = "raw"
)

var (
	errMissingDSN         = errors.New("dsn is not configured, set SQLPIPE_DSN or dsn in the config file")
	errUnknownAdapter     = errors.New("unknown adapter, use pgx, sql or sqlx")
	errUnknownSerializer  = errors.New("unknown serializer, use json or raw")
	errNegativeTimeout    = errors.New("timeout must not be negative")
	errInvalidLogLevel    = errors.New("invalid log level")
	errReadingConfigFile  = errors.New("reading config file failed")
	errDecodingConfigFile = errors.New("decoding config failed")
)

// Config holds the host configuration, read from an optional config file and SQLPIPE_* environment variables.
// Environment variables win over the file.
type Config struct {
	DSN           string        `mapstructure:"dsn"`
	Adapter       string        `mapstructure:"adapter"`
	Driver        string        `mapstructure:"driver"`
	DefaultOutput string        `mapstructure:"default_output"`
	Serializer    string        `mapstructure:"serializer"`
	LogLevel      string        `mapstructure:"log_level"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Observability bool          `mapstructure:"observability"`
}

// LoadConfig reads the configuration. An empty path skips the config file.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("dsn", "")
	v.SetDefault("adapter", adapterPGX)
	v.SetDefault("driver", "postgres")
	v.SetDefault("default_output", "[]")
	v.SetDefault("serializer", serializerJSON)
	v.SetDefault("log_level", "info")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("observability", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Join(errReadingConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Join(errDecodingConfigFile, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return errMissingDSN
	}

	switch c.Adapter {
	case adapterPGX, adapterSQL, adapterSQLX:
	default:
		return fmt.Errorf("%w: %q", errUnknownAdapter, c.Adapter)
	}

	switch c.Serializer {
	case serializerJSON, serializerRaw:
	default:
		return fmt.Errorf("%w: %q", errUnknownSerializer, c.Serializer)
	}

	if c.Timeout < 0 {
		return errNegativeTimeout
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level returns the configured slog level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, errors.Join(errInvalidLogLevel, err)
	}

	return level, nil
}

// RowSerializer returns the configured serializer.
func (c Config) RowSerializer() sqlpipe.RowSerializer {
	if c.Serializer == serializerRaw {
		return sqlpipe.RawColumnSerializer{}
	}

	return sqlpipe.JSONArraySerializer{}
}
