package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// loadString decodes a YAML document over the defaults, as Load does for a file
func loadString(yamlContent string) (*Config, error) {
	v := New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}
	return decode(v)
}

func TestLoadString(t *testing.T) {
	cfg, err := loadString(`
filter_file: /etc/mirrorsync/papers.rules
mtime_tolerance: 5s
checksum: true
delete_excluded: true
timeout: 1h
log_file: /var/log/mirrorsync.log
mount:
  source: //nas/papers
  target: /mnt/papers
  options: username=me,password=secret
vcs:
  repo: /mnt/papers
  remote: backup
`)
	require.NoError(t, err)

	assert.Equal(t, "/etc/mirrorsync/papers.rules", cfg.FilterFile)
	assert.Equal(t, 5*time.Second, cfg.MtimeTolerance)
	assert.True(t, cfg.Checksum)
	assert.True(t, cfg.DeleteExcluded)
	assert.Equal(t, time.Hour, cfg.Timeout)
	assert.Equal(t, "//nas/papers", cfg.Mount.Source)
	assert.Equal(t, "cifs", cfg.Mount.Type, "default mount type")
	assert.Equal(t, "backup", cfg.VCS.Remote)
	assert.Equal(t, "mirrorsync", cfg.VCS.AuthorName)

	opts := cfg.Options()
	assert.Equal(t, domain.Options{
		Tolerance:      5 * time.Second,
		Checksum:       true,
		DeleteExcluded: true,
		Timeout:        time.Hour,
	}, opts)
}

func TestLoadString_Defaults(t *testing.T) {
	cfg, err := loadString("{}")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.MtimeTolerance)
	assert.Equal(t, "line", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.False(t, cfg.DeleteExcluded)
	assert.Equal(t, "origin", cfg.VCS.Remote)
}

func TestLoadString_Invalid(t *testing.T) {
	tests := map[string]string{
		"negative tolerance": "mtime_tolerance: -1s",
		"negative timeout":   "timeout: -5m",
		"bad log format":     "log_format: xml",
		"bad log level":      "log_level: loud",
		"bad yaml":           "filter_file: [unclosed",
		"bad duration":       "timeout: soon",
	}

	for name, yaml := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadString(yaml)
			assert.ErrorIs(t, err, domain.ErrConfigInvalid)
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checksum: true\nlock_dir: ~/locks\n"), 0644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.True(t, cfg.Checksum)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "locks"), cfg.LockDir)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestLoad_SearchPathOptional(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.MtimeTolerance)
}

func TestLoad_SearchPathFindsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mirrorsync.yaml"), []byte("delete_excluded: true\n"), 0644))

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.True(t, cfg.DeleteExcluded)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MIRRORSYNC_CHECKSUM", "true")
	t.Setenv("MIRRORSYNC_MTIME_TOLERANCE", "10s")
	t.Setenv("MIRRORSYNC_MOUNT_TARGET", "/mnt/env")

	cfg, err := loadString("checksum: false\n")
	require.NoError(t, err)

	assert.True(t, cfg.Checksum, "env beats file")
	assert.Equal(t, 10*time.Second, cfg.MtimeTolerance)
	assert.Equal(t, "/mnt/env", cfg.Mount.Target)
}

func TestValidateMount(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.ValidateMount(), domain.ErrConfigInvalid)

	cfg.Mount.Target = "/mnt/x"
	assert.ErrorIs(t, cfg.ValidateMount(), domain.ErrConfigInvalid)

	cfg.Mount.Source = "//nas/x"
	assert.NoError(t, cfg.ValidateMount())

	cfg.Mount.Source = ""
	cfg.Mount.MountCommand = []string{"sshfs", "nas:/x", "/mnt/x"}
	assert.NoError(t, cfg.ValidateMount())
}

func TestValidateVCS(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.ValidateVCS(), domain.ErrConfigInvalid)
	cfg.VCS.Repo = "/srv/repo"
	assert.NoError(t, cfg.ValidateVCS())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("MIRRORSYNC_TEST_DIR", "/opt/data")

	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "a", "b"), ExpandPath("~/a/b"))
	assert.Equal(t, filepath.Clean("/opt/data/rules"), ExpandPath("$MIRRORSYNC_TEST_DIR/rules"))
	assert.Equal(t, filepath.Clean("/x/y"), ExpandPath("/x/./y/"))
}
