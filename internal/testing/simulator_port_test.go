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

package testing

import (
	"testing"
	"time"

	"github.com/ZaparooProject/go-icomclock/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestSimulatorPort_ReadWrite(t *testing.T) {
	t.Parallel()

	rig := NewVirtualRig(0x94)
	port := NewSimulatorPort(rig)
	require.NoError(t, port.SetMode(&serial.Mode{BaudRate: 19200}))
	assert.Equal(t, 19200, port.Mode().BaudRate)

	_, err := port.Write(timeFrame)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(timeFrame)+frame.OKReplyLength, n)

	writes := port.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, timeFrame, writes[0].Data)
}

func TestSimulatorPort_ReadTimeout(t *testing.T) {
	t.Parallel()

	port := NewSimulatorPort(NewVirtualRig(0x94))
	require.NoError(t, port.SetReadTimeout(15*time.Millisecond))

	start := time.Now()
	n, err := port.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSimulatorPort_Closed(t *testing.T) {
	t.Parallel()

	port := NewSimulatorPort(NewVirtualRig(0x94))
	require.NoError(t, port.ResetInputBuffer())
	assert.Equal(t, 1, port.InputResets())

	require.NoError(t, port.Close())
	assert.True(t, port.IsClosed())

	_, err := port.Write(timeFrame)
	require.ErrorIs(t, err, ErrPortClosed)
	_, err = port.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrPortClosed)
}
