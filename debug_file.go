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
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Session log rotation limits
const (
	sessionLogMaxSizeMB  = 5
	sessionLogMaxBackups = 3
	sessionLogMaxAgeDays = 28
)

// Session log state
var (
	sessionLog     *lumberjack.Logger
	sessionLogPath string
	sessionID      string
)

// InitSessionLog starts a rotated session log. An empty path creates
// icomclock_YYYYMMDD_HHMMSS.log in the current directory. Returns the log
// file path for display to the user.
func InitSessionLog(path string) (string, error) {
	if sessionLog != nil {
		if err := CloseSessionLog(); err != nil {
			return "", err
		}
	}

	if path == "" {
		path = fmt.Sprintf("icomclock_%s.log", time.Now().Format("20060102_150405"))
	}

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    sessionLogMaxSizeMB,
		MaxBackups: sessionLogMaxBackups,
		MaxAge:     sessionLogMaxAgeDays,
	}

	id := uuid.NewString()
	// lumberjack opens the file on first write, so the header surfaces
	// any permission or path problem
	if _, err := lj.Write(sessionHeader(id)); err != nil {
		_ = lj.Close()
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLog = lj
	sessionLogPath = path
	sessionID = id
	setSessionOutput(lj)

	return path, nil
}

// CloseSessionLog writes the footer and closes the session log.
func CloseSessionLog() error {
	if sessionLog == nil {
		return nil
	}

	setSessionOutput(nil)

	footer := fmt.Sprintf("\n%s === Session %s ended ===\n", time.Now().Format("15:04:05.000"), sessionID)
	_, _ = sessionLog.Write([]byte(footer))

	err := sessionLog.Close()
	sessionLog = nil
	sessionLogPath = ""
	sessionID = ""
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the current session log file path.
func GetSessionLogPath() string {
	return sessionLogPath
}

// GetSessionID returns the run id written into the session log header.
func GetSessionID() string {
	return sessionID
}

// sessionHeader renders metadata about the run.
func sessionHeader(id string) []byte {
	var b bytes.Buffer
	_, _ = b.WriteString("=== icomclock Debug Session Log ===\n")
	_, _ = fmt.Fprintf(&b, "Session: %s\n", id)
	_, _ = fmt.Fprintf(&b, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&b, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(&b, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&b, "Go Version: %s\n", runtime.Version())
	if exe, err := os.Executable(); err == nil {
		_, _ = fmt.Fprintf(&b, "Executable: %s\n", exe)
	}
	_, _ = fmt.Fprintf(&b, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = b.WriteString("===================================\n\n")
	return b.Bytes()
}
