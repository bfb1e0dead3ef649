package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// Config represents the complete configuration for mirrorsync.
// Every field can come from the config file, a MIRRORSYNC_ environment
// variable or a command line flag, in increasing order of precedence.
type Config struct {
	// FilterFile is the include/exclude rule file; empty means no rules
	FilterFile string `mapstructure:"filter_file"`

	// LogFile is appended to in addition to stdout when set
	LogFile   string `mapstructure:"log_file"`
	LogFormat string `mapstructure:"log_format"`
	LogLevel  string `mapstructure:"log_level"`

	// LockDir holds the per-job lock files
	LockDir string `mapstructure:"lock_dir"`

	MtimeTolerance time.Duration `mapstructure:"mtime_tolerance"`
	Checksum       bool          `mapstructure:"checksum"`
	DeleteExcluded bool          `mapstructure:"delete_excluded"`
	Timeout        time.Duration `mapstructure:"timeout"`

	Progress   bool   `mapstructure:"progress"`
	ReportFile string `mapstructure:"report_file"`

	Mount MountConfig `mapstructure:"mount"`
	VCS   VCSConfig   `mapstructure:"vcs"`
}

// MountConfig describes the share toggled by the mount commands
type MountConfig struct {
	// Source is the remote share, e.g. //nas/papers
	Source  string `mapstructure:"source"`
	Target  string `mapstructure:"target"`
	Type    string `mapstructure:"type"`
	Options string `mapstructure:"options"`

	// MountCommand and UnmountCommand override the default mount(8) and
	// umount(8) invocations
	MountCommand   []string `mapstructure:"mount_command"`
	UnmountCommand []string `mapstructure:"unmount_command"`
}

// VCSConfig describes the repository recorded after a sync
type VCSConfig struct {
	Repo        string `mapstructure:"repo"`
	Remote      string `mapstructure:"remote"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if c.MtimeTolerance < 0 {
		return fmt.Errorf("%w: mtime_tolerance cannot be negative: %s", domain.ErrConfigInvalid, c.MtimeTolerance)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative: %s", domain.ErrConfigInvalid, c.Timeout)
	}

	switch c.LogFormat {
	case "", "line", "json":
	default:
		return fmt.Errorf("%w: unknown log_format: %s", domain.ErrConfigInvalid, c.LogFormat)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level: %s", domain.ErrConfigInvalid, c.LogLevel)
	}

	return nil
}

// ValidateMount checks the settings needed by the mount commands
func (c *Config) ValidateMount() error {
	m := c.Mount
	if m.Target == "" {
		return fmt.Errorf("%w: mount.target is required", domain.ErrConfigInvalid)
	}
	if len(m.MountCommand) == 0 && m.Source == "" {
		return fmt.Errorf("%w: mount.source or mount.mount_command is required", domain.ErrConfigInvalid)
	}
	return nil
}

// ValidateVCS checks the settings needed by commit and push
func (c *Config) ValidateVCS() error {
	if c.VCS.Repo == "" {
		return fmt.Errorf("%w: vcs.repo is required", domain.ErrConfigInvalid)
	}
	return nil
}

// Options converts the sync settings into job options
func (c *Config) Options() domain.Options {
	return domain.Options{
		Tolerance:      c.MtimeTolerance,
		Checksum:       c.Checksum,
		DeleteExcluded: c.DeleteExcluded,
		Timeout:        c.Timeout,
	}
}

// ExpandPaths expands ~ and environment variables in every path setting
func (c *Config) ExpandPaths() {
	for _, p := range []*string{&c.FilterFile, &c.LogFile, &c.LockDir, &c.ReportFile, &c.Mount.Target, &c.VCS.Repo} {
		if *p != "" {
			*p = ExpandPath(*p)
		}
	}
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
