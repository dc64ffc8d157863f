package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	OutputFile string // empty = stdout only
	MaxSize    int64  // bytes before rotation (default: 10MB)
	MaxBackups int    // rotated files kept (default: 3)
	JSONFormat bool
	Output     io.Writer // overrides stdout, used by tests
}

// Logger is a logrus logger that owns its log file.
type Logger struct {
	*logrus.Logger
	file *os.File
}

// New creates a logrus logger writing to stdout and, optionally, a rotated file.
func New(config Config) (*Logger, error) {
	if config.MaxSize == 0 {
		config.MaxSize = 10 * 1024 * 1024
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}

	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	writers := []io.Writer{out}

	l := &Logger{Logger: logrus.New()}

	if config.OutputFile != "" {
		dir := filepath.Dir(config.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}

		if err := rotateIfNeeded(config.OutputFile, config.MaxSize, config.MaxBackups); err != nil {
			return nil, fmt.Errorf("failed to rotate logs: %w", err)
		}

		file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.OutputFile, err)
		}
		l.file = file
		writers = append(writers, file)
	}

	l.SetOutput(io.MultiWriter(writers...))
	l.SetLevel(level)
	if config.JSONFormat {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return l, nil
}

// ParseLevel maps a level name to a logrus level. Empty means info.
func ParseLevel(level string) (logrus.Level, error) {
	if strings.TrimSpace(level) == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// rotateIfNeeded shifts path -> path.1 -> path.2 ... once path reaches maxSize.
func rotateIfNeeded(path string, maxSize int64, maxBackups int) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	if info.Size() < maxSize {
		return nil
	}

	for i := maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", path, i)
		newPath := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}

	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	return nil
}

// Close closes the log file if one is open
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.SetOutput(os.Stdout)
	return err
}

// Discard returns a logger that drops everything, for tests and library callers.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
