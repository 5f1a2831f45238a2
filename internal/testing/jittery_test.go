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
)

func readN(t *testing.T, j *JitteryConnection, want int) ([]byte, int) {
	t.Helper()
	buf := make([]byte, 64)
	var out []byte
	reads := 0
	for len(out) < want && reads < 200 {
		n, err := j.Read(buf)
		require.NoError(t, err)
		if n > 0 {
			out = append(out, buf[:n]...)
			reads++
		}
	}
	return out, reads
}

func TestJitteryConnection_BasicReadWrite(t *testing.T) {
	t.Parallel()

	rig := NewVirtualRig(0x94)
	jittery := NewJitteryConnection(rig, JitterConfig{Seed: 12345})

	written, err := jittery.Write(timeFrame)
	require.NoError(t, err)
	assert.Equal(t, len(timeFrame), written)

	out, reads := readN(t, jittery, len(timeFrame)+frame.OKReplyLength)
	assert.Equal(t, 1, reads)
	assert.Equal(t, timeFrame, out[:len(timeFrame)])
	assert.Equal(t, frame.OKReply(0x94), out[len(timeFrame):])
}

func TestJitteryConnection_Fragmentation(t *testing.T) {
	t.Parallel()

	rig := NewVirtualRig(0x94)
	jittery := NewJitteryConnection(rig, JitterConfig{
		FragmentReads:    true,
		FragmentMinBytes: 1,
		Seed:             42,
	})

	_, err := jittery.Write(timeFrame)
	require.NoError(t, err)

	want := len(timeFrame) + frame.OKReplyLength
	out, reads := readN(t, jittery, want)
	require.Len(t, out, want, "fragmentation must not lose bytes")
	t.Logf("read %d bytes in %d calls", len(out), reads)

	// the reassembled stream still scans into echo and reply
	echo, rest, ok := frame.Next(out)
	require.True(t, ok)
	assert.Equal(t, timeFrame, echo)
	reply, _, ok := frame.Next(rest)
	require.True(t, ok)
	assert.Equal(t, frame.OKReply(0x94), reply)
}

func TestJitteryConnection_Latency(t *testing.T) {
	t.Parallel()

	rig := NewVirtualRig(0x94)
	jittery := NewJitteryConnection(rig, JitterConfig{MaxLatencyMs: 10, Seed: 99})

	_, err := jittery.Write(timeFrame)
	require.NoError(t, err)

	start := time.Now()
	out, _ := readN(t, jittery, len(timeFrame)+frame.OKReplyLength)
	assert.Len(t, out, len(timeFrame)+frame.OKReplyLength)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestJitteryConnection_StallAfterBytes(t *testing.T) {
	t.Parallel()

	rig := NewVirtualRig(0x94)
	jittery := NewJitteryConnection(rig, JitterConfig{
		StallAfterBytes: 4,
		StallDuration:   20 * time.Millisecond,
		Seed:            7,
	})

	_, err := jittery.Write(timeFrame)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := jittery.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	start := time.Now()
	n, err = jittery.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(timeFrame)+frame.OKReplyLength-4, n)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestJitteryConnection_ResetAndClear(t *testing.T) {
	t.Parallel()

	rig := NewVirtualRig(0x94)
	jittery := NewJitteryConnection(rig, JitterConfig{StallAfterBytes: 2, Seed: 3})

	_, err := jittery.Write(timeFrame)
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = jittery.Read(buf)
	require.NoError(t, err)

	jittery.ClearBuffer()
	jittery.ResetStallState()
	assert.Equal(t, 0, jittery.bytesReadSinceStall)
	assert.False(t, jittery.stallTriggered)

	n, err := jittery.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "cleared buffer and drained rig")
}

func TestDefaultJitterConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultJitterConfig()
	assert.True(t, cfg.FragmentReads)
	assert.Equal(t, 1, cfg.FragmentMinBytes)
	assert.Positive(t, cfg.MaxLatencyMs)
}
