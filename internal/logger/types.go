package logger

import (
	"io"
	"strings"
)

// Logger 統一日誌介面
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Sync() error     // 強制 flush
	Shutdown() error // 優雅關閉
}

// Level 日誌級別
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level (case-insensitive)
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format 日誌格式
type Format int

const (
	// FormatLine renders "[2006-01-02 15:04:05] message key=value"
	FormatLine Format = iota
	FormatJSON
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	default:
		return "line"
	}
}

// ParseFormat parses a string into a Format (case-insensitive)
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	default:
		return FormatLine
	}
}

// Output 日誌輸出目標
type Output int

const (
	OutputStdout Output = iota
	OutputStderr
	OutputFile
)

// Config 日誌配置
type Config struct {
	Level   Level
	Format  Format
	Outputs []OutputConfig
	File    FileConfig
}

// OutputConfig 輸出配置
type OutputConfig struct {
	Type   Output
	Writer io.Writer // 可選，用於測試
}

// FileConfig 檔案日誌配置
//
// The file is only ever appended to. Rotation renames the full file and
// starts a new one, so lines from concurrent or back-to-back runs are
// never rewritten.
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int  // 單位：MB
	MaxAgeDays int  // 保留天數
	MaxBackups int  // 保留備份數
	Compress   bool // 是否壓縮
}

// DefaultConfig logs info and above to stdout only
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Format:  FormatLine,
		Outputs: []OutputConfig{{Type: OutputStdout}},
	}
}

// WithFile returns a copy of c that also appends to path
func (c Config) WithFile(path string) Config {
	if path == "" {
		return c
	}
	c.File.Enabled = true
	c.File.Path = path
	if c.File.MaxSizeMB == 0 {
		c.File.MaxSizeMB = 50
	}
	c.Outputs = append(append([]OutputConfig(nil), c.Outputs...), OutputConfig{Type: OutputFile})
	return c
}

// Settings are the user facing logging options
type Settings struct {
	Level   string
	Format  string
	File    string
	Verbose bool

	// Stdout replaces os.Stdout, for tests
	Stdout io.Writer
}

// FromSettings builds the run logger configuration: every line goes to
// stdout, and is appended to File when one is set. Verbose forces debug.
func FromSettings(s Settings) Config {
	c := DefaultConfig()
	c.Level = ParseLevel(s.Level)
	c.Format = ParseFormat(s.Format)
	if s.Verbose {
		c.Level = LevelDebug
	}
	c.Outputs = []OutputConfig{{Type: OutputStdout, Writer: s.Stdout}}
	return c.WithFile(s.File)
}
