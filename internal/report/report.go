// Package report writes a machine readable record of a sync run.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// Report is the YAML document written after a run
type Report struct {
	RunID      string    `yaml:"run_id"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Source     string    `yaml:"source"`
	Dest       string    `yaml:"dest"`
	Mode       string    `yaml:"mode"`
	Options    Options   `yaml:"options"`
	Stats      Stats     `yaml:"stats"`
	Items      []Item    `yaml:"items,omitempty"`
	Outcome    Outcome   `yaml:"outcome"`
}

type Options struct {
	Tolerance      string `yaml:"mtime_tolerance"`
	Checksum       bool   `yaml:"checksum"`
	DeleteExcluded bool   `yaml:"delete_excluded"`
	Rules          int    `yaml:"filter_rules"`
}

type Stats struct {
	DirsToCreate     int   `yaml:"dirs_to_create"`
	FilesToCreate    int   `yaml:"files_to_create"`
	FilesToUpdate    int   `yaml:"files_to_update"`
	ToDelete         int   `yaml:"to_delete"`
	BytesToSync      int64 `yaml:"bytes_to_sync"`
	Applied          int   `yaml:"applied"`
	BytesTransferred int64 `yaml:"bytes_transferred"`
}

type Item struct {
	Kind    string `yaml:"kind"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"`
	Size    int64  `yaml:"size,omitempty"`
	Replace bool   `yaml:"replace,omitempty"`
	Reason  string `yaml:"reason,omitempty"`
}

type Outcome struct {
	Class    string    `yaml:"class"`
	Code     int       `yaml:"code"`
	ExitCode int       `yaml:"exit_code"`
	Message  string    `yaml:"message,omitempty"`
	Error    string    `yaml:"error,omitempty"`
	Warnings []Warning `yaml:"warnings,omitempty"`
}

type Warning struct {
	Path  string `yaml:"path"`
	Op    string `yaml:"op,omitempty"`
	Code  int    `yaml:"code"`
	Error string `yaml:"error,omitempty"`
}

// NewRunID returns a fresh identifier for a run
func NewRunID() string {
	return uuid.NewString()
}

// New builds a report from the job, its plan and the final state.
// job, plan and status may be nil when the run stopped early.
func New(job *domain.SyncJob, plan *domain.Plan, status *domain.ExecStatus, out domain.RunOutcome, started time.Time) *Report {
	r := &Report{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    outcomeOf(out),
	}
	if job != nil {
		r.RunID = job.ID
		r.Source = job.Source.Abs()
		r.Dest = job.Dest.Abs()
		r.Mode = string(job.Mode)
		r.Options = Options{
			Tolerance:      job.Options.Tolerance.String(),
			Checksum:       job.Options.Checksum,
			DeleteExcluded: job.Options.DeleteExcluded,
			Rules:          len(job.Rules),
		}
	}
	if r.RunID == "" {
		r.RunID = NewRunID()
	}

	if plan != nil {
		r.Stats = Stats{
			DirsToCreate:  plan.Stats.DirsToCreate,
			FilesToCreate: plan.Stats.FilesToCreate,
			FilesToUpdate: plan.Stats.FilesToUpdate,
			ToDelete:      plan.Stats.ToDelete,
			BytesToSync:   plan.Stats.BytesToSync,
		}
		r.Items = make([]Item, 0, len(plan.Items))
		for _, it := range plan.Items {
			r.Items = append(r.Items, Item{
				Kind:    string(it.Kind),
				Path:    it.Path,
				Type:    it.Type.String(),
				Size:    it.Size,
				Replace: it.Replace,
				Reason:  it.Reason,
			})
		}
	}
	if status != nil {
		r.Stats.Applied = len(status.Applied)
		r.Stats.BytesTransferred = status.BytesTransferred
	}
	return r
}

func outcomeOf(o domain.RunOutcome) Outcome {
	out := Outcome{
		Class:    string(o.Class),
		Code:     o.Code,
		ExitCode: o.ExitCode(),
		Message:  o.Message,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	for _, w := range o.Warnings {
		ww := Warning{Path: w.Path, Op: string(w.Op), Code: w.Code}
		if w.Err != nil {
			ww.Error = w.Err.Error()
		}
		out.Warnings = append(out.Warnings, ww)
	}
	return out
}

// Encode writes r as YAML to w
func Encode(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// Write stores r at path, replacing any previous report atomically.
func Write(path string, r *Report) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install report: %w", err)
	}
	return nil
}

// Read loads a report written by Write
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
