// Package mount toggles the network share a sync destination lives on.
package mount

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Ning0612/mirrorsync/internal/config"
	"github.com/Ning0612/mirrorsync/internal/domain"
	"github.com/Ning0612/mirrorsync/internal/logger"
)

// Runner executes an external command and returns its combined output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Toggler mounts and unmounts one configured share
type Toggler struct {
	cfg    config.MountConfig
	runner Runner

	// mounted reports whether target is a mount point
	mounted func(target string) (bool, error)
}

// New creates a Toggler for cfg using os/exec
func New(cfg config.MountConfig) *Toggler {
	return &Toggler{cfg: cfg, runner: ExecRunner{}, mounted: isMountPoint}
}

// WithRunner replaces the command runner
func (t *Toggler) WithRunner(r Runner) *Toggler {
	t.runner = r
	return t
}

// Status reports whether the share is mounted at its target
func (t *Toggler) Status() (bool, error) {
	if t.cfg.Target == "" {
		return false, fmt.Errorf("%w: mount.target is required", domain.ErrConfigInvalid)
	}
	return t.mounted(t.cfg.Target)
}

// Mount mounts the share. Mounting an already mounted share is a no-op.
func (t *Toggler) Mount(ctx context.Context) error {
	ok, err := t.Status()
	if err != nil {
		return err
	}
	if ok {
		logger.Get().Info("share already mounted", "target", t.cfg.Target)
		return nil
	}
	return t.exec(ctx, "mount", t.MountCommand())
}

// Unmount unmounts the share. It returns domain.ErrNotMounted when the
// target is not a mount point.
func (t *Toggler) Unmount(ctx context.Context) error {
	ok, err := t.Status()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotMounted, t.cfg.Target)
	}
	return t.exec(ctx, "unmount", t.UnmountCommand())
}

// MountCommand returns the argv used to mount the share
func (t *Toggler) MountCommand() []string {
	if len(t.cfg.MountCommand) > 0 {
		return t.cfg.MountCommand
	}
	argv := []string{"mount"}
	if t.cfg.Type != "" {
		argv = append(argv, "-t", t.cfg.Type)
	}
	if t.cfg.Options != "" {
		argv = append(argv, "-o", t.cfg.Options)
	}
	return append(argv, t.cfg.Source, t.cfg.Target)
}

// UnmountCommand returns the argv used to unmount the share
func (t *Toggler) UnmountCommand() []string {
	if len(t.cfg.UnmountCommand) > 0 {
		return t.cfg.UnmountCommand
	}
	return []string{"umount", t.cfg.Target}
}

func (t *Toggler) exec(ctx context.Context, op string, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return fmt.Errorf("%w: empty %s command", domain.ErrConfigInvalid, op)
	}

	log := logger.Get()
	log.Info("running "+op+" command", "command", strings.Join(argv, " "))

	out, err := t.runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		log.Error(op+" failed", "target", t.cfg.Target, "error", err, "output", msg)

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return fmt.Errorf("%s %s: %w: %s", op, t.cfg.Target, err, msg)
		}
		return fmt.Errorf("%s %s: %w", op, t.cfg.Target, err)
	}

	log.Info(op+" completed", "target", t.cfg.Target)
	return nil
}
