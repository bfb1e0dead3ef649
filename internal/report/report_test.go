package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/mirrorsync/internal/core/filter"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

func testJob() *domain.SyncJob {
	return &domain.SyncJob{
		Source: domain.NewResolvedPath("src", "/data/src"),
		Dest:   domain.NewResolvedPath("dst", "/backup/dst"),
		Rules:  filter.Rules{{Verdict: filter.Exclude, Pattern: "*.log", Line: 1}},
		Mode:   domain.ModeApply,
		Options: domain.Options{
			Tolerance: 2 * time.Second,
		},
	}
}

func TestNew(t *testing.T) {
	plan := &domain.Plan{
		Items: []domain.ChangeItem{
			{Kind: domain.ChangeMkdir, Path: "docs", Type: domain.FileTypeDirectory},
			{Kind: domain.ChangeCreate, Path: "docs/a.txt", Type: domain.FileTypeRegular, Size: 5, Reason: "new"},
			{Kind: domain.ChangeDelete, Path: "c.tmp", Type: domain.FileTypeRegular},
		},
		Stats: domain.PlanStats{DirsToCreate: 1, FilesToCreate: 1, ToDelete: 1, BytesToSync: 5},
	}
	status := &domain.ExecStatus{Applied: plan.Items, BytesTransferred: 5}
	out := domain.RunOutcome{
		Class: domain.OutcomeWithWarnings,
		Code:  domain.CodeVanished,
		Warnings: []domain.Warning{
			{Path: "gone.txt", Op: domain.ChangeCreate, Code: domain.CodeVanished, Err: errors.New("vanished")},
		},
	}

	r := New(testJob(), plan, status, out, time.Now().Add(-time.Second))

	_, err := uuid.Parse(r.RunID)
	assert.NoError(t, err, "a missing job id is replaced by a uuid")
	assert.Equal(t, "/data/src", r.Source)
	assert.Equal(t, "/backup/dst", r.Dest)
	assert.Equal(t, "apply", r.Mode)
	assert.Equal(t, "2s", r.Options.Tolerance)
	assert.Equal(t, 1, r.Options.Rules)
	assert.Equal(t, 3, r.Stats.Applied)
	assert.Equal(t, int64(5), r.Stats.BytesTransferred)
	require.Len(t, r.Items, 3)
	assert.Equal(t, Item{Kind: "create", Path: "docs/a.txt", Type: "file", Size: 5, Reason: "new"}, r.Items[1])
	assert.Equal(t, "success-with-warnings", r.Outcome.Class)
	assert.Equal(t, 0, r.Outcome.ExitCode)
	require.Len(t, r.Outcome.Warnings, 1)
	assert.Equal(t, "vanished", r.Outcome.Warnings[0].Error)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
}

func TestNew_NoPlan(t *testing.T) {
	job := testJob()
	job.ID = "fixed"
	out := domain.RunOutcome{Class: domain.OutcomeFatal, Code: domain.ExitSourceMissing, Err: domain.ErrPathNotFound}

	r := New(job, nil, nil, out, time.Now())

	assert.Equal(t, "fixed", r.RunID)
	assert.Empty(t, r.Items)
	assert.Equal(t, 2, r.Outcome.ExitCode)
	assert.Equal(t, domain.ErrPathNotFound.Error(), r.Outcome.Error)
}

func TestNew_NoJob(t *testing.T) {
	out := domain.RunOutcome{Class: domain.OutcomeFatal, Code: domain.ExitConfig, Err: domain.ErrConfigInvalid}

	r := New(nil, nil, nil, out, time.Now())

	assert.NotEmpty(t, r.RunID)
	assert.Empty(t, r.Source)
	assert.Equal(t, 1, r.Outcome.ExitCode)
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	r := New(testJob(), &domain.Plan{}, nil, domain.RunOutcome{Class: domain.OutcomeSuccess}, time.Now())
	require.NoError(t, Encode(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "run_id: ")
	assert.Contains(t, out, "mode: apply")
	assert.Contains(t, out, "  mtime_tolerance: 2s")
	assert.Contains(t, out, "class: success")
	assert.NotContains(t, out, "items:")
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "last.yaml")
	r := New(testJob(), &domain.Plan{Items: []domain.ChangeItem{
		{Kind: domain.ChangeUpdate, Path: "b", Type: domain.FileTypeDirectory, Replace: true},
	}}, nil, domain.RunOutcome{Class: domain.OutcomeSuccess}, time.Now())

	require.NoError(t, Write(path, r))
	// a second write replaces the first
	require.NoError(t, Write(path, r))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, got.RunID)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Replace)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
