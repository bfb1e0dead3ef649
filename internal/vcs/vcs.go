// Package vcs records a synchronized tree in its git repository.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/Ning0612/mirrorsync/internal/config"
	"github.com/Ning0612/mirrorsync/internal/domain"
	"github.com/Ning0612/mirrorsync/internal/logger"
)

const DefaultRemote = "origin"

// Repo is an opened working tree
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	cfg      config.VCSConfig
}

// Open opens the repository whose working tree is cfg.Repo
func Open(cfg config.VCSConfig) (*Repo, error) {
	if cfg.Repo == "" {
		return nil, fmt.Errorf("%w: vcs.repo is required", domain.ErrConfigInvalid)
	}
	if cfg.Remote == "" {
		cfg.Remote = DefaultRemote
	}

	wt := osfs.New(cfg.Repo)
	dot, err := wt.Chroot(git.GitDirName)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", git.GitDirName, err)
	}
	storage := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())

	repo, err := git.Open(storage, wt)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", cfg.Repo, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	return &Repo{repo: repo, worktree: worktree, cfg: cfg}, nil
}

// Commit stages every change in the working tree, deletions included, and
// records it. A clean tree yields domain.ErrNoChanges.
func (r *Repo) Commit(ctx context.Context, msg string) (string, error) {
	if msg == "" {
		return "", fmt.Errorf("%w: commit message cannot be empty", domain.ErrConfigInvalid)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := r.worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}

	status, err := r.worktree.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return "", domain.ErrNoChanges
	}

	who := &object.Signature{
		Name:  r.cfg.AuthorName,
		Email: r.cfg.AuthorEmail,
		When:  time.Now(),
	}
	hash, err := r.worktree.Commit(msg, &git.CommitOptions{Author: who, Committer: who})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", domain.ErrNoChanges
		}
		return "", fmt.Errorf("failed to create commit: %w", err)
	}

	logger.Get().Info("changes committed", "repo", r.cfg.Repo, "commit", hash.String()[:12], "files", len(status))
	return hash.String(), nil
}

// Push sends the current branch to the configured remote. Nothing to push
// is a success.
func (r *Repo) Push(ctx context.Context) error {
	if _, err := r.repo.Remote(r.cfg.Remote); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrNoRemote, r.cfg.Remote)
		}
		return fmt.Errorf("failed to get remote %s: %w", r.cfg.Remote, err)
	}

	err := r.repo.PushContext(ctx, &git.PushOptions{RemoteName: r.cfg.Remote})
	switch {
	case err == nil:
		logger.Get().Info("pushed", "repo", r.cfg.Repo, "remote", r.cfg.Remote)
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		logger.Get().Info("remote already up to date", "remote", r.cfg.Remote)
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("%w: %v", domain.ErrPushRejected, err)
	case errors.Is(err, git.ErrRemoteNotFound):
		return fmt.Errorf("%w: %s", domain.ErrNoRemote, r.cfg.Remote)
	default:
		return fmt.Errorf("failed to push to %s: %w", r.cfg.Remote, err)
	}
}
