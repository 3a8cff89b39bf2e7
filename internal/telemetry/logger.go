package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	clog "github.com/charmbracelet/log"
)

type Options struct {
	Path   string
	Format string
	Debug  bool
}

// Logger is a charmbracelet logger bound to the file it writes to. An empty
// Path discards everything: the terminal belongs to the viewer.
type Logger struct {
	*clog.Logger
	w io.WriteCloser
}

func New(opts Options) (*Logger, error) {
	formatter, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	var w io.WriteCloser = nopCloser{Writer: io.Discard}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
	}
	level := clog.InfoLevel
	if opts.Debug {
		level = clog.DebugLevel
	}
	return &Logger{
		Logger: clog.NewWithOptions(w, clog.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339Nano,
			Formatter:       formatter,
		}),
		w: w,
	}, nil
}

func ParseFormat(s string) (clog.Formatter, error) {
	switch s {
	case "", "json":
		return clog.JSONFormatter, nil
	case "text":
		return clog.TextFormatter, nil
	case "logfmt":
		return clog.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("invalid log format %q", s)
	}
}

func (l *Logger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	return l.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
