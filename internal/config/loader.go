package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/Ning0612/mirrorsync/internal/core/diff"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

const (
	// EnvPrefix prefixes every environment override, e.g. MIRRORSYNC_FILTER_FILE
	EnvPrefix = "MIRRORSYNC"

	// ConfigName is the base name searched for in DefaultConfigPaths
	ConfigName = "mirrorsync"
)

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{".", filepath.Join(xdg.ConfigHome, "mirrorsync")}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".mirrorsync"))
	}

	return paths
}

// New returns a viper instance with defaults and environment overrides
// installed. Flags may be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("filter_file", "")
	v.SetDefault("log_file", "")
	v.SetDefault("log_format", "line")
	v.SetDefault("log_level", "info")
	v.SetDefault("lock_dir", "")
	v.SetDefault("mtime_tolerance", diff.DefaultTolerance)
	v.SetDefault("checksum", false)
	v.SetDefault("delete_excluded", false)
	v.SetDefault("timeout", 0)
	v.SetDefault("progress", false)
	v.SetDefault("report_file", "")
	v.SetDefault("mount.source", "")
	v.SetDefault("mount.target", "")
	v.SetDefault("mount.type", "cifs")
	v.SetDefault("mount.options", "")
	v.SetDefault("mount.mount_command", []string{})
	v.SetDefault("mount.unmount_command", []string{})
	v.SetDefault("vcs.repo", "")
	v.SetDefault("vcs.remote", "origin")
	v.SetDefault("vcs.author_name", "mirrorsync")
	v.SetDefault("vcs.author_email", "mirrorsync@localhost")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the configuration file into v and decodes the result.
// If path is empty the default locations are searched and a missing
// file is not an error; an explicit path must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		switch {
		case missing && path != "":
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		case missing:
			// defaults and environment only
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
