// Package logging builds the process logger.
//
// Records always go to the console unless disabled. Optionally, records at
// info level and below are copied to an info file and records at warning
// level and above to an error file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type Config struct {
	Level         string `koanf:"level"`
	BaseDir       string `koanf:"baseDir"`
	AllowConsole  bool   `koanf:"allowConsole"`
	AllowInfoFile bool   `koanf:"allowInfoFile"`
	AllowErrFile  bool   `koanf:"allowErrFile"`
	InfoFilename  string `koanf:"infoFilename"`
	ErrFilename   string `koanf:"errFilename"`
}

func DefaultConfig() Config {
	return Config{
		Level:         "info",
		BaseDir:       ".",
		AllowConsole:  true,
		AllowInfoFile: true,
		AllowErrFile:  true,
		InfoFilename:  "infoFile.log",
		ErrFilename:   "errorFile.log",
	}
}

var (
	infoLevels  = []logrus.Level{logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel}
	errorLevels = []logrus.Level{logrus.WarnLevel, logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
)

// New returns the root log entry. Closing the returned io.Closer closes the
// log files opened for cfg.
func New(cfg Config, console io.Writer, verbose bool) (*logrus.Entry, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(formatterFor(console))
	if cfg.AllowConsole {
		logger.SetOutput(console)
	} else {
		logger.SetOutput(io.Discard)
	}

	var files closers
	if cfg.AllowInfoFile {
		hook, f, err := newFileHook(filepath.Join(cfg.BaseDir, cfg.InfoFilename), infoLevels)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, f)
		logger.AddHook(hook)
	}
	if cfg.AllowErrFile {
		hook, f, err := newFileHook(filepath.Join(cfg.BaseDir, cfg.ErrFilename), errorLevels)
		if err != nil {
			_ = files.Close()
			return nil, nil, err
		}
		files = append(files, f)
		logger.AddHook(hook)
	}

	return logrus.NewEntry(logger), files, nil
}

func formatterFor(w io.Writer) logrus.Formatter {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return &logrus.JSONFormatter{}
}

var _ logrus.Hook = &fileHook{}

// fileHook writes the records of its levels to a file as JSON lines.
type fileHook struct {
	mu        sync.Mutex
	levels    []logrus.Level
	w         io.Writer
	formatter logrus.Formatter
}

func newFileHook(path string, levels []logrus.Level) (*fileHook, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file '%s': %w", path, err)
	}
	return &fileHook{levels: levels, w: f, formatter: &logrus.JSONFormatter{}}, f, nil
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, closer := range c {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
