// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package icomclock

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ZaparooProject/go-icomclock/internal/syncutil"
)

// Logging state. The zap logger is rebuilt whenever one of its sinks
// changes.
var (
	logMu        syncutil.RWMutex
	debugEnabled = false
	consoleOut   io.Writer = os.Stdout
	sessionOut   io.Writer
	logger       = zap.NewNop()
)

func init() {
	// Enable debug logging if ICOMCLOCK_DEBUG or DEBUG is set
	if os.Getenv("ICOMCLOCK_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
	rebuildLogger()
}

// rebuildLogger must be called with logMu held for writing (or from init).
func rebuildLogger() {
	cores := make([]zapcore.Core, 0, 2)

	if debugEnabled && consoleOut != nil {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = ""
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(consoleOut), zapcore.DebugLevel))
	}

	// the session log records everything regardless of debug mode
	if sessionOut != nil {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(sessionOut), zapcore.DebugLevel))
	}

	if len(cores) == 0 {
		logger = zap.NewNop()
		return
	}
	logger = zap.New(zapcore.NewTee(cores...))
}

// Logger returns the package logger for structured debug output.
func Logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// Debugf logs a formatted debug message.
// Always written to the session log (if initialized); printed to the
// console only when debug mode is enabled.
func Debugf(format string, args ...any) {
	Logger().Debug(fmt.Sprintf(format, args...))
}

// Debugln logs its operands separated by spaces, like fmt.Println.
func Debugln(args ...any) {
	Logger().Debug(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// SetDebugEnabled turns console debug output on or off
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	debugEnabled = enabled
	rebuildLogger()
}

// DebugEnabled reports whether console debug output is on
func DebugEnabled() bool {
	logMu.RLock()
	defer logMu.RUnlock()
	return debugEnabled
}

// SetDebugOutput redirects console debug output. nil restores stdout.
func SetDebugOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	consoleOut = w
	rebuildLogger()
}

func setSessionOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	if sessionOut != nil {
		_ = logger.Sync()
	}
	sessionOut = w
	rebuildLogger()
}
