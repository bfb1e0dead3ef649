package progress

import (
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/mattn/go-isatty"
)

const barTemplate = `{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// maxPrefix bounds the file name shown in front of the bar.
const maxPrefix = 32

// BarReporter draws a single byte-based bar for the whole run.
type BarReporter struct {
	mu      sync.Mutex
	bar     *pb.ProgressBar
	out     io.Writer
	base    int64 // bytes of completed files
	current int64
	started bool
}

// NewBarReporter creates a bar that writes to out.
func NewBarReporter(out io.Writer) *BarReporter {
	return &BarReporter{out: out}
}

// Select returns a BarReporter writing to out when enabled and out is a
// terminal, and a NullReporter otherwise.
func Select(enabled bool, out *os.File) Reporter {
	if !enabled || out == nil {
		return NullReporter{}
	}
	if !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()) {
		return NullReporter{}
	}
	return NewBarReporter(out)
}

func (r *BarReporter) SetTotal(totalFiles int, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.bar.SetTotal(totalBytes)
		return
	}
	r.bar = pb.New64(totalBytes).
		SetTemplateString(barTemplate).
		SetWriter(r.out).
		Set(pb.Bytes, true).
		Set("prefix", "")
	r.bar.Start()
	r.started = true
}

func (r *BarReporter) Start(path string, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = 0
	if r.started {
		r.bar.Set("prefix", shorten(path))
	}
}

func (r *BarReporter) Update(bytesTransferred int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = bytesTransferred
	if r.started {
		r.bar.SetCurrent(r.base + r.current)
	}
}

func (r *BarReporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base += r.current
	r.current = 0
	if r.started {
		r.bar.SetCurrent(r.base)
	}
}

func (r *BarReporter) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = 0
	if r.started {
		r.bar.SetCurrent(r.base)
	}
}

func (r *BarReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.bar.Finish()
		r.started = false
	}
}

// Transferred returns the bytes of all completed transfers.
func (r *BarReporter) Transferred() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base
}

func shorten(path string) string {
	if len(path) <= maxPrefix {
		return path
	}
	return "..." + path[len(path)-maxPrefix+3:]
}
