package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/mirrorsync/internal/domain"
	"github.com/Ning0612/mirrorsync/internal/lock"
	"github.com/Ning0612/mirrorsync/internal/mount"
	"github.com/Ning0612/mirrorsync/internal/paths"
	"github.com/Ning0612/mirrorsync/internal/vcs"
)

func (a *App) toggler() (*mount.Toggler, error) {
	if err := a.cfg.ValidateMount(); err != nil {
		return nil, err
	}
	return mount.New(a.cfg.Mount), nil
}

func (a *App) newMountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mount",
		Short: "Mount the configured share",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.toggler()
			if err != nil {
				return err
			}
			return t.Mount(cmd.Context())
		},
	}
}

func (a *App) newUnmountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unmount",
		Short: "Unmount the configured share",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.toggler()
			if err != nil {
				return err
			}
			return t.Unmount(cmd.Context())
		},
	}
}

func (a *App) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the configured share is mounted",
		Long:  `Print "mounted" or "not mounted" for mount.target. Exit status is 0 either way.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Mount.Target == "" {
				return fmt.Errorf("%w: mount.target is required", domain.ErrConfigInvalid)
			}
			ok, err := mount.New(a.cfg.Mount).Status()
			if err != nil {
				return err
			}
			state := "not mounted"
			if ok {
				state = "mounted"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.cfg.Mount.Target, state)
			return nil
		},
	}
}

func (a *App) repo() (*vcs.Repo, error) {
	if err := a.cfg.ValidateVCS(); err != nil {
		return nil, err
	}
	return vcs.Open(a.cfg.VCS)
}

func (a *App) newCommitCommand() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit every change in the configured repository",
		Long: `Stage all changes in vcs.repo, deletions included, and commit them.
A clean tree is reported and is not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.repo()
			if err != nil {
				return err
			}
			hash, err := r.Commit(cmd.Context(), message)
			if errors.Is(err, domain.ErrNoChanges) {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to commit")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func (a *App) newPushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push the current branch to vcs.remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.repo()
			if err != nil {
				return err
			}
			return r.Push(cmd.Context())
		},
	}
}

func (a *App) newLockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect job locks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status SOURCE",
		Short: "Show which run, if any, holds the lock for SOURCE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := paths.ResolveSource(args[0])
			if err != nil {
				return err
			}
			locks, err := lock.New(a.cfg.LockDir)
			if err != nil {
				return err
			}

			key := paths.JobKey(src)
			st, err := locks.Holder(key)
			if err != nil {
				return fmt.Errorf("failed to inspect lock %s: %w", key, err)
			}

			out := cmd.OutOrStdout()
			if !st.Held {
				fmt.Fprintf(out, "%s: free\n", key)
				return nil
			}
			fmt.Fprintf(out, "%s: held\n", key)
			if h := st.Holder; h != nil {
				fmt.Fprintf(out, "  pid:   %d (alive: %t)\n", h.PID, st.ProcessAlive)
				fmt.Fprintf(out, "  host:  %s\n", h.Hostname)
				fmt.Fprintf(out, "  since: %s\n", h.StartTime.Format(time.RFC3339))
			}
			return nil
		},
	})
	return cmd
}
