// Package cli wires the mirrorsync commands to the sync service and the
// mount and version-control collaborators.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Ning0612/mirrorsync/internal/config"
	"github.com/Ning0612/mirrorsync/internal/core/outcome"
	"github.com/Ning0612/mirrorsync/internal/domain"
	"github.com/Ning0612/mirrorsync/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// viperKey is the flag annotation naming the config key a flag overrides
const viperKey = "mirrorsync_viper_key"

// ExitError carries a non-zero exit status whose cause was already logged
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// App holds the state shared by every command of one invocation
type App struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
	verbose bool

	stdin  *os.File
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *App {
	return &App{
		v:      config.New(),
		stdin:  os.Stdin,
		stdout: stdout,
		stderr: stderr,
	}
}

// NewRootCommand builds the command tree
func (a *App) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mirrorsync",
		Short: "One-way filtered directory mirroring",
		Long: `mirrorsync mirrors a source directory onto a destination directory.
An ordered include/exclude rule file selects what is copied; destination
entries with no included source counterpart are removed after all copies
finish. Only one run per source may be active at a time.`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./mirrorsync.yaml or $XDG_CONFIG_HOME/mirrorsync/mirrorsync.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log every change and debug details")
	root.PersistentFlags().String("log-file", "", "also append log lines to this file")
	bindFlag(root.PersistentFlags(), "log-file", "log_file")

	root.AddCommand(
		a.newSyncCommand(),
		a.newPlanCommand(),
		a.newMountCommand(),
		a.newUnmountCommand(),
		a.newStatusCommand(),
		a.newCommitCommand(),
		a.newPushCommand(),
		a.newLockCommand(),
	)
	return root
}

// bindFlag marks flag name as an override for config key
func bindFlag(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, viperKey, []string{key})
}

// setup binds the flags of the running command, loads the configuration
// and starts the logger.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys, ok := f.Annotations[viperKey]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfigInvalid, bindErr)
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	lc := logger.FromSettings(logger.Settings{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Verbose: a.verbose,
		Stdout:  a.stdout,
	})
	if err := logger.Init(lc); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Execute runs the command line and returns the process exit status
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.NewRootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if serr := logger.Shutdown(); serr != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", serr)
	}
	if err == nil {
		return domain.ExitOK
	}

	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// exitCode maps errors raised outside a sync run. Usage and collaborator
// failures exit 1.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrPathNotFound),
		errors.Is(err, domain.ErrPathNotCreatable),
		errors.Is(err, domain.ErrDestNotWritable),
		errors.Is(err, domain.ErrInterrupted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return outcome.Code(err)
	default:
		return domain.ExitConfig
	}
}
