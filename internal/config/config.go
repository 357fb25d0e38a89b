// Package config loads server configuration from a TOML file, the
// environment, and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the sudoku server.
type Config struct {
	// ListenAddr is the address the HTTP/websocket listener binds.
	ListenAddr string         `mapstructure:"listen_addr"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	Database   DatabaseConfig `mapstructure:"database"`
}

// LoggingConfig controls zap logger level and output style.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color bool   `mapstructure:"color"`
}

// DatabaseConfig controls SQLite persistence.
type DatabaseConfig struct {
	URI               string        `mapstructure:"uri"`
	WritebackInterval time.Duration `mapstructure:"writeback_interval"`
}

// Load parses args (not including the program name) and reads the
// config file they point at. A missing config file is fine as long as
// its path was not set explicitly; a malformed one is an error.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("sudoku-server", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "sudoku.toml", "path to config file")
	listenAddr := flags.StringP("listen-addr", "a", "", "address to listen on")
	logLevel := flags.StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetDefault("listen_addr", "127.0.0.1:9091")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.color", true)
	v.SetDefault("database.uri", "sudoku.db")
	v.SetDefault("database.writeback_interval", 30*time.Second)

	v.SetConfigFile(*configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix("SUDOKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		explicit := flags.Changed("config")
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	}

	if flags.Changed("listen-addr") {
		v.Set("listen_addr", *listenAddr)
	}
	if flags.Changed("log-level") {
		v.Set("logging.level", *logLevel)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}
	if cfg.Database.WritebackInterval <= 0 {
		return Config{}, fmt.Errorf("database.writeback_interval must be positive, got %s",
			cfg.Database.WritebackInterval)
	}
	return cfg, nil
}
