package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter receives transfer progress from the sync executor.
// Calls arrive from a single goroutine, in plan order.
type Reporter interface {
	// SetTotal announces the planned work before the first transfer.
	SetTotal(totalFiles int, totalBytes int64)
	// Start begins tracking a new file transfer
	Start(path string, totalBytes int64)
	// Update reports the bytes copied so far for the current file
	Update(bytesTransferred int64)
	// Complete marks the current transfer as complete
	Complete()
	// Error reports a failure on the current transfer
	Error(err error)
	// Finish is called once after the last item, whatever the result.
	Finish()
}

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type           UpdateType
	CurrentFile    string
	CurrentBytes   int64
	CurrentTotal   int64
	FilesCompleted int
	FilesTotal     int
	BytesCompleted int64
	BytesTotal     int64
	BytesPerSecond float64
	Error          error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateStart UpdateType = iota
	UpdateProgress
	UpdateComplete
	UpdateError
	UpdateFinish
)

func (t UpdateType) String() string {
	switch t {
	case UpdateStart:
		return "start"
	case UpdateProgress:
		return "progress"
	case UpdateComplete:
		return "complete"
	case UpdateError:
		return "error"
	case UpdateFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// CallbackReporter implements Reporter with a callback function.
// The callback is invoked without the internal lock held, so it may call
// back into the reporter.
type CallbackReporter struct {
	callback Callback

	mu             sync.Mutex
	currentFile    string
	currentTotal   int64
	currentBytes   int64
	filesTotal     int
	bytesTotal     int64
	filesCompleted int
	bytesCompleted int64
	startTime      time.Time
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{callback: callback}
}

// snapshot must be called with r.mu held.
func (r *CallbackReporter) snapshot(t UpdateType) Update {
	u := Update{
		Type:           t,
		CurrentFile:    r.currentFile,
		CurrentBytes:   r.currentBytes,
		CurrentTotal:   r.currentTotal,
		FilesCompleted: r.filesCompleted,
		FilesTotal:     r.filesTotal,
		BytesCompleted: r.bytesCompleted,
		BytesTotal:     r.bytesTotal,
	}
	if elapsed := time.Since(r.startTime).Seconds(); !r.startTime.IsZero() && elapsed > 0 {
		u.BytesPerSecond = float64(r.currentBytes) / elapsed
	}
	return u
}

func (r *CallbackReporter) emit(u Update) {
	if r.callback != nil {
		r.callback(u)
	}
}

func (r *CallbackReporter) SetTotal(totalFiles int, totalBytes int64) {
	r.mu.Lock()
	r.filesTotal = totalFiles
	r.bytesTotal = totalBytes
	r.mu.Unlock()
}

func (r *CallbackReporter) Start(path string, totalBytes int64) {
	r.mu.Lock()
	r.currentFile = path
	r.currentTotal = totalBytes
	r.currentBytes = 0
	r.startTime = time.Now()
	u := r.snapshot(UpdateStart)
	r.mu.Unlock()
	r.emit(u)
}

func (r *CallbackReporter) Update(bytesTransferred int64) {
	r.mu.Lock()
	r.currentBytes = bytesTransferred
	u := r.snapshot(UpdateProgress)
	u.BytesCompleted += bytesTransferred
	r.mu.Unlock()
	r.emit(u)
}

func (r *CallbackReporter) Complete() {
	r.mu.Lock()
	r.filesCompleted++
	r.bytesCompleted += r.currentTotal
	r.currentBytes = r.currentTotal
	u := r.snapshot(UpdateComplete)
	r.mu.Unlock()
	r.emit(u)
}

func (r *CallbackReporter) Error(err error) {
	r.mu.Lock()
	u := r.snapshot(UpdateError)
	u.Error = err
	r.mu.Unlock()
	r.emit(u)
}

func (r *CallbackReporter) Finish() {
	r.mu.Lock()
	u := r.snapshot(UpdateFinish)
	r.mu.Unlock()
	r.emit(u)
}

// ProgressReader wraps an io.Reader to track read progress
type ProgressReader struct {
	reader      io.Reader
	reporter    Reporter
	transferred int64
}

// NewProgressReader creates a new progress-tracking reader
func NewProgressReader(r io.Reader, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   r,
		reporter: reporter,
	}
}

// Read implements io.Reader
func (pr *ProgressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.transferred += int64(n)
		if pr.reporter != nil {
			pr.reporter.Update(pr.transferred)
		}
	}
	return n, err
}

// Transferred returns the number of bytes read so far.
func (pr *ProgressReader) Transferred() int64 {
	return pr.transferred
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) SetTotal(int, int64) {}
func (NullReporter) Start(string, int64) {}
func (NullReporter) Update(int64)        {}
func (NullReporter) Complete()           {}
func (NullReporter) Error(error)         {}
func (NullReporter) Finish()             {}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed formats bytes per second into human-readable string
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}
