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
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// captureDebug routes console debug output into a buffer for one test.
func captureDebug(t *testing.T, enabled bool) *bytes.Buffer {
	t.Helper()
	orig := DebugEnabled()
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	SetDebugEnabled(enabled)
	t.Cleanup(func() {
		SetDebugEnabled(orig)
		SetDebugOutput(nil)
	})
	return &buf
}

func TestDebugf_ConsoleWhenEnabled(t *testing.T) {
	buf := captureDebug(t, true)

	Debugf("test message %d", 42)

	assert.Contains(t, buf.String(), "DEBUG\ttest message 42")
	assert.Contains(t, buf.String(), "\n")
}

func TestDebugf_SilentWhenDisabled(t *testing.T) {
	buf := captureDebug(t, false)

	Debugf("test message %d", 42)

	assert.Empty(t, buf.String())
}

func TestDebugln_SpacesOperands(t *testing.T) {
	buf := captureDebug(t, true)

	Debugln("rig", 1, "online")

	assert.Contains(t, buf.String(), "rig 1 online\n")
}

func TestLogger_StructuredFields(t *testing.T) {
	buf := captureDebug(t, true)

	Logger().Debug("sent", zap.String("frame", "FEFE94E0FD"))

	assert.Contains(t, buf.String(), "sent")
	assert.Contains(t, buf.String(), `"frame": "FEFE94E0FD"`)
}

func TestSetDebugEnabled(t *testing.T) {
	captureDebug(t, false)

	assert.False(t, DebugEnabled())
	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())
}
