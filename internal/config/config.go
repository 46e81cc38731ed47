// Package config resolves noldermd settings from defaults, an optional
// YAML file, NOLDERMD_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "NOLDERMD"
	StateDirName   = ".noldermd"
	configFileName = "config.yaml"
)

type Config struct {
	NotesDir         string   `mapstructure:"notes_dir" yaml:"notes_dir"`
	Port             int      `mapstructure:"port" yaml:"port"`
	LogLevel         string   `mapstructure:"log_level" yaml:"log_level"`
	StateDir         string   `mapstructure:"state_dir" yaml:"state_dir"`
	DailyFolder      string   `mapstructure:"daily_folder" yaml:"daily_folder"`
	TimeBlockHeading string   `mapstructure:"time_block_heading" yaml:"time_block_heading"`
	NoteExtensions   []string `mapstructure:"note_extensions" yaml:"note_extensions"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("notes_dir", "./notes")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("state_dir", "")
	v.SetDefault("daily_folder", "Daily")
	v.SetDefault("time_block_heading", "## Time Blocks")
	v.SetDefault("note_extensions", []string{".md", ".markdown", ".txt"})
}

// Load builds the effective configuration. configFile may be empty, in
// which case <notes_dir>/.noldermd/config.yaml is read when it exists.
// flags, when non-nil, override every other source for the flags that
// were set.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{"notes_dir", "port", "log_level", "state_dir"} {
			if flag := flags.Lookup(strings.ReplaceAll(key, "_", "-")); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", flag.Name, err)
				}
			}
		}
	}

	if configFile == "" {
		candidate := filepath.Join(v.GetString("notes_dir"), StateDirName, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.NotesDir, StateDirName)
	}
	for i, ext := range cfg.NoteExtensions {
		cfg.NoteExtensions[i] = strings.ToLower(strings.TrimSpace(ext))
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 {
		errs = append(errs, errors.New("port must be positive"))
	}
	if strings.TrimSpace(c.NotesDir) == "" {
		errs = append(errs, errors.New("notes_dir is required"))
	}
	if !strings.HasPrefix(c.TimeBlockHeading, "#") {
		errs = append(errs, errors.New("time_block_heading must be a markdown heading"))
	}
	if len(c.NoteExtensions) == 0 {
		errs = append(errs, errors.New("note_extensions must not be empty"))
	}
	for _, ext := range c.NoteExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, fmt.Errorf("note extension %q must start with a dot", ext))
		}
	}
	return errors.Join(errs...)
}

// DailyNotePath is the note holding the daily entry for date (YYYY-MM-DD).
func (c Config) DailyNotePath(date string) string {
	name := date + ".md"
	if c.DailyFolder == "" {
		return name
	}
	return filepath.ToSlash(filepath.Join(c.DailyFolder, name))
}

// YAML renders the configuration the way it would be written to a file.
func (c Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
