package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type logConfig struct {
	Level string `mapstructure:"level"`
}

type appConfig struct {
	BaseURL  string        `mapstructure:"base-url"`
	Releases string        `mapstructure:"releases"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Output   string        `mapstructure:"output"`
	Log      logConfig     `mapstructure:"log"`
}

var defaults = map[string]any{
	"base-url":  "https://data.trezor.io",
	"releases":  "firmware/2/releases.json",
	"timeout":   30 * time.Second,
	"output":    "json",
	"log.level": "info",
}

// loadConfig layers defaults, rollout.yaml, ROLLOUT_* environment variables
// and command flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, configFile string) (appConfig, error) {
	var c appConfig
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("rollout")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "rollout"))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("rollout")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("log.level", f); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	if c.Output != "json" && c.Output != "yaml" {
		return c, fmt.Errorf("unsupported output format %q", c.Output)
	}
	return c, nil
}

func newLogger(level string, cmd *cobra.Command) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: l})), nil
}
