// Package logger owns the process-wide structured logger. Output goes to a
// rotating file next to the database; debug runs mirror it to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/quitlog/internal/constants"
)

const (
	rotateSizeMB  = 10
	rotateKeep    = 3
	rotateMaxDays = 28
)

var (
	// Logger is nil until Init; the package helpers discard in that case.
	Logger *log.Logger

	sink    *lumberjack.Logger
	discard = log.NewWithOptions(io.Discard, log.Options{})
)

type Config struct {
	Debug     bool
	ConfigDir string
}

// LogPath is the active log file for this config.
func (c Config) LogPath() string {
	return filepath.Join(c.ConfigDir, "logs", constants.AppName+".log")
}

// Init opens the log file and installs the global logger. Calling it again
// closes the previous file first.
func Init(cfg Config) error {
	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	_ = Close()

	sink = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotateSizeMB,
		MaxBackups: rotateKeep,
		MaxAge:     rotateMaxDays,
		Compress:   true,
	}
	var w io.Writer = sink
	if cfg.Debug {
		w = io.MultiWriter(os.Stderr, sink)
	}
	Logger = New(w, cfg.Debug)
	return nil
}

// New builds a logger in the application's format. Sync activity is kept at
// info so the file records it outside debug runs.
func New(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          constants.AppName,
		ReportTimestamp: true,
		ReportCaller:    debug,
	})
}

// Close releases the log file. Later calls log nowhere until the next Init.
func Close() error {
	Logger = nil
	if sink == nil {
		return nil
	}
	err := sink.Close()
	sink = nil
	return err
}

func current() *log.Logger {
	if l := Logger; l != nil {
		return l
	}
	return discard
}

// Component returns a child logger tagged with the component name.
func Component(name string) *log.Logger {
	return current().With("component", name)
}

func Debug(msg string, keyvals ...any) { current().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { current().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { current().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { current().Error(msg, keyvals...) }
