/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/pterm/pterm"
)

// init configures pterm styles to use foreground colors only (no backgrounds)
func init() {
	pterm.Info = *pterm.Info.WithPrefix(pterm.Prefix{
		Text:  "INFO",
		Style: pterm.NewStyle(pterm.FgBlue),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Warning = *pterm.Warning.WithPrefix(pterm.Prefix{
		Text:  "WARNING",
		Style: pterm.NewStyle(pterm.FgYellow),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Error = *pterm.Error.WithPrefix(pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.FgRed),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Debug = *pterm.Debug.WithPrefix(pterm.Prefix{
		Text:  "DEBUG",
		Style: pterm.NewStyle(pterm.FgCyan),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)
}

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerMode determines how logs are output
type LoggerMode int

const (
	// ModeCLI uses pterm for colorized CLI output
	ModeCLI LoggerMode = iota
	// ModeFile writes to a log file. Used while the broker is attached to
	// an editor: stdout carries the msgpack-rpc stream and must stay clean,
	// so only warnings and errors are mirrored to stderr.
	ModeFile
)

// Logger provides centralized logging that adapts to CLI vs attached-broker
// contexts, in the spirit of an LSP server that must not touch its protocol
// stream.
type Logger struct {
	mu           sync.RWMutex
	mode         LoggerMode
	file         *log.Logger
	debugEnabled bool
}

var globalLogger = &Logger{mode: ModeCLI}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	return globalLogger
}

// SetFileMode switches the logger to file output. An empty path selects
// $XDG_STATE_HOME/lspc/lspc.log.
func (l *Logger) SetFileMode(path string) error {
	if path == "" {
		var err error
		path, err = xdg.StateFile("lspc/lspc.log")
		if err != nil {
			return fmt.Errorf("resolve log file path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.mode = ModeFile
	l.file = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	return nil
}

// SetDebugEnabled controls whether debug messages are shown
func (l *Logger) SetDebugEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugEnabled = enabled
	if enabled {
		pterm.EnableDebugMessages()
	}
}

// IsDebugEnabled returns whether debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.debugEnabled
}

// Debug logs a debug message (only shown if debug is enabled)
func (l *Logger) Debug(format string, args ...any) {
	l.log(LogLevelDebug, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...any) {
	l.log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...any) {
	l.log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...any) {
	l.log(LogLevelError, format, args...)
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	l.mu.RLock()
	mode := l.mode
	file := l.file
	debugEnabled := l.debugEnabled
	l.mu.RUnlock()

	if level == LogLevelDebug && !debugEnabled {
		return
	}

	message := fmt.Sprintf(format, args...)

	switch mode {
	case ModeCLI:
		switch level {
		case LogLevelDebug:
			pterm.Debug.Println(message)
		case LogLevelInfo:
			pterm.Info.Println(message)
		case LogLevelWarning:
			pterm.Warning.Println(message)
		case LogLevelError:
			pterm.Error.Println(message)
		}
	case ModeFile:
		if file != nil {
			file.Printf("[%s] %s", level, message)
		}
		if level >= LogLevelWarning {
			fmt.Fprintf(os.Stderr, "lspc: [%s] %s\n", level, message)
		}
	}
}

// Package-level convenience functions on the global logger.

// Debug logs a debug message
func Debug(format string, args ...any) {
	globalLogger.Debug(format, args...)
}

// Info logs an informational message
func Info(format string, args ...any) {
	globalLogger.Info(format, args...)
}

// Warning logs a warning message
func Warning(format string, args ...any) {
	globalLogger.Warning(format, args...)
}

// Error logs an error message
func Error(format string, args ...any) {
	globalLogger.Error(format, args...)
}
