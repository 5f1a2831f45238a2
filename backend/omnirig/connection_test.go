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

package omnirig

import (
	"context"
	"fmt"
	"testing"
	"time"

	icomclock "github.com/ZaparooProject/go-icomclock"
	"github.com/ZaparooProject/go-icomclock/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnector(variant Variant, server *fakeServer) (*Connector, *fakeDialer) {
	d := &fakeDialer{server: server}
	return New(variant, WithDialer(d.dial), WithSettleDelay(0)), d
}

func TestConnect_Online(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	server.addRig(1, "IC-7300", nativeOnline)
	c, d := newTestConnector(VariantA, server)

	conn, err := c.Connect(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, icomclock.StatusOnline, conn.Status())
	assert.Equal(t, "IC-7300", conn.RigType())
	assert.Equal(t, 1, conn.Slot())
	assert.Equal(t, icomclock.BackendOmniRig1, conn.Type())
	assert.Equal(t, []string{"OmniRig.OmniRigX"}, d.progIDs)

	// the connector no longer owns the server
	require.NoError(t, c.Close())
	assert.Equal(t, 0, server.releaseCount())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, server.releaseCount(), "released exactly once")
	assert.Equal(t, 1, server.rigs[1].releases)
}

func TestConnect_SlotRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		variant Variant
		slot    int
		valid   bool
	}{
		{name: "A slot 1", variant: VariantA, slot: 1, valid: true},
		{name: "A slot 2", variant: VariantA, slot: 2, valid: true},
		{name: "A slot 3", variant: VariantA, slot: 3},
		{name: "A slot 0", variant: VariantA, slot: 0},
		{name: "B slot 4", variant: VariantB, slot: 4, valid: true},
		{name: "B slot 5", variant: VariantB, slot: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newFakeServer()
			for slot := 1; slot <= 4; slot++ {
				server.addRig(slot, "IC-705", nativeOnline)
			}
			c, d := newTestConnector(tt.variant, server)

			conn, err := c.Connect(context.Background(), tt.slot)
			if tt.valid {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.ErrorIs(t, err, icomclock.ErrSlotOutOfRange)
			assert.Equal(t, icomclock.ExitRigNumber, icomclock.ExitCode(err))
			assert.Equal(t, 0, d.dials(), "slot validated before the service is touched")
		})
	}
}

func TestConnect_NotOnline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		native int32
		want   icomclock.RigStatus
		exit   int
	}{
		{name: "not configured", native: nativeNotConfigured, want: icomclock.StatusNotConfigured, exit: 50},
		{name: "disabled", native: nativeDisabled, want: icomclock.StatusDisabled, exit: 51},
		{name: "port busy", native: nativePortBusy, want: icomclock.StatusPortBusy, exit: 52},
		{name: "not responding", native: nativeNotResponding, want: icomclock.StatusNotResponding, exit: 53},
		{name: "undefined code", native: 9, want: icomclock.StatusUnknown, exit: 54},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newFakeServer()
			rig := server.addRig(2, "IC-7610", tt.native)
			c, _ := newTestConnector(VariantB, server)

			_, err := c.Connect(context.Background(), 2)
			require.ErrorIs(t, err, icomclock.ErrRigUnavailable)
			status, ok := icomclock.RigStatusFromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.exit, icomclock.ExitCode(err))

			assert.Equal(t, 1, server.releaseCount(), "session released before returning")
			assert.Equal(t, 1, rig.releases)
			assert.Empty(t, rig.commands, "nothing transmitted")
		})
	}
}

func TestConnect_ServiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		exit int
	}{
		{name: "init", err: fmt.Errorf("%w: CoInitializeEx", icomclock.ErrServiceInit), exit: icomclock.ExitServiceInit},
		{name: "create", err: fmt.Errorf("%w: class not registered", icomclock.ErrServiceCreate), exit: icomclock.ExitServiceCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := &fakeDialer{err: tt.err}
			c := New(VariantA, WithDialer(d.dial), WithSettleDelay(0))
			_, err := c.Connect(context.Background(), 1)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.exit, icomclock.ExitCode(err))

			var connErr *icomclock.ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, icomclock.BackendOmniRig1, connErr.Backend)
		})
	}
}

func TestConnect_StatusReadError(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	rig := server.addRig(1, "IC-7300", nativeOnline)
	rig.statusErr = errCOM
	c, _ := newTestConnector(VariantA, server)

	_, err := c.Connect(context.Background(), 1)
	require.ErrorIs(t, err, errCOM)
	assert.Equal(t, 1, server.releaseCount())
}

func TestConnect_SettleDelayHonorsContext(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	server.addRig(1, "IC-7300", nativeOnline)
	d := &fakeDialer{server: server}
	c := New(VariantB, WithDialer(d.dial), WithSettleDelay(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Connect(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, server.releaseCount())
	assert.Equal(t, icomclock.ExitInterrupted, icomclock.ExitCode(err))
}

func TestServiceInfo_SharesSession(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	server.addRig(1, "IC-7300", nativeOnline)
	server.addRig(2, "", nativeNotConfigured)
	c, d := newTestConnector(VariantA, server)

	info, err := c.ServiceInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.20", info.SoftwareVersion)
	assert.Equal(t, "1.15", info.InterfaceVersion)
	require.Len(t, info.Rigs, 2)
	assert.Equal(t, icomclock.RigInfo{
		RigType:    "IC-7300",
		StatusText: fmt.Sprintf("status %d", nativeOnline),
		Slot:       1,
		Status:     icomclock.StatusOnline,
	}, info.Rigs[0])
	assert.Equal(t, icomclock.StatusNotConfigured, info.Rigs[1].Status)

	conn, err := c.Connect(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, d.dials(), "server object created once")

	require.NoError(t, conn.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, server.releaseCount())
}

func TestServiceInfo_UnusedSessionReleasedOnClose(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	for slot := 1; slot <= 4; slot++ {
		server.addRig(slot, "IC-9700", nativeDisabled)
	}
	c, _ := newTestConnector(VariantB, server)

	info, err := c.ServiceInfo(context.Background())
	require.NoError(t, err)
	assert.Len(t, info.Rigs, 4)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, server.releaseCount())
}

func TestServiceInfo_RigError(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	server.addRig(1, "IC-7300", nativeOnline)
	c, _ := newTestConnector(VariantA, server)

	_, err := c.ServiceInfo(context.Background())
	require.ErrorIs(t, err, errCOM, "Rig2 is missing")
	require.NoError(t, c.Close())
}

func TestSendFrame(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	rig := server.addRig(1, "IC-7300", nativeOnline)
	c, _ := newTestConnector(VariantA, server)
	conn, err := c.Connect(context.Background(), 1)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	data, err := frame.HexToBytes("FEFE94E01A0500951405FD")
	require.NoError(t, err)

	ack, err := conn.SendFrame(context.Background(), data, len(data)+6)
	require.NoError(t, err)
	assert.True(t, ack.Verified)
	assert.Equal(t, frame.OKReply(0x94), ack.Reply)
	assert.Equal(t, 17, ack.Expected)

	require.Len(t, rig.commands, 1)
	assert.Equal(t, data, rig.commands[0])
	assert.Equal(t, []int32{17}, rig.replyLens)
	assert.Equal(t, []string{""}, rig.replyEnds)
}

func TestSendFrame_Errors(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	rig := server.addRig(1, "IC-7300", nativeOnline)
	c, _ := newTestConnector(VariantA, server)
	conn, err := c.Connect(context.Background(), 1)
	require.NoError(t, err)

	oversized := make([]byte, frame.TxBufferSize+1)
	_, err = conn.SendFrame(context.Background(), oversized, len(oversized)+6)
	require.ErrorIs(t, err, icomclock.ErrFrameBufferAllocation)
	assert.Equal(t, icomclock.ExitFrameBuffer, icomclock.ExitCode(err))

	rig.sendErr = errCOM
	data := frame.Build(0x94, frame.ControllerAddress, 0x1A, 0x05, 0x00, 0x95, 0x14, 0x05)
	_, err = conn.SendFrame(context.Background(), data, len(data)+6)
	require.ErrorIs(t, err, icomclock.ErrTransmitFailed)
	require.ErrorIs(t, err, errCOM)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = conn.SendFrame(ctx, data, len(data)+6)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, conn.Close())
	_, err = conn.SendFrame(context.Background(), data, len(data)+6)
	require.ErrorIs(t, err, icomclock.ErrConnectionClosed)
}

// connectSlot connects to slot of a fresh VariantB server with a short
// reply timeout.
func connectSlot(t *testing.T, slot int) (*fakeServer, *fakeRig, icomclock.Connection) {
	t.Helper()

	server := newFakeServer()
	rig := server.addRig(slot, "IC-7610", nativeOnline)
	d := &fakeDialer{server: server}
	c := New(VariantB, WithDialer(d.dial), WithSettleDelay(0), WithReplyTimeout(50*time.Millisecond))
	conn, err := c.Connect(context.Background(), slot)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return server, rig, conn
}

func TestSendFrame_Replies(t *testing.T) {
	t.Parallel()

	data := frame.Build(0x98, frame.ControllerAddress, 0x1A, 0x05, 0x00, 0x95, 0x14, 0x05)
	okReply := append(append([]byte(nil), data...), frame.OKReply(0x98)...)

	tests := []struct {
		wantErr error
		answer  func(cmd []byte) []fakeEvent
		name    string
	}{
		{name: "accepted", answer: accept(3)},
		{name: "rejected", answer: reject(3), wantErr: icomclock.ErrNegativeAck},
		{name: "no reply", answer: silent, wantErr: icomclock.ErrAckTimeout},
		{
			name: "reply for another rig",
			answer: func(cmd []byte) []fakeEvent {
				return []fakeEvent{{rig: 1, command: cmd, reply: okReply}}
			},
			wantErr: icomclock.ErrAckTimeout,
		},
		{
			name: "reply for another command first",
			answer: func(cmd []byte) []fakeEvent {
				other := frame.Build(0x98, frame.ControllerAddress, 0x03)
				return []fakeEvent{
					{rig: 3, command: other, reply: other},
					{rig: 3, command: cmd, reply: okReply},
				}
			},
		},
		{
			name: "reply without echo",
			answer: func(cmd []byte) []fakeEvent {
				return []fakeEvent{{rig: 3, command: cmd, reply: frame.OKReply(0x98)}}
			},
			wantErr: icomclock.ErrAckTimeout,
		},
		{
			name: "garbage after echo",
			answer: func(cmd []byte) []fakeEvent {
				reply := append(append([]byte(nil), cmd...), 0x00, 0xFD)
				return []fakeEvent{{rig: 3, command: cmd, reply: reply}}
			},
			wantErr: icomclock.ErrNegativeAck,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, rig, conn := connectSlot(t, 3)
			rig.answer = tt.answer

			ack, err := conn.SendFrame(context.Background(), data, len(data)+6)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, ack.Verified)
				assert.Equal(t, frame.OKReply(0x98), ack.Reply)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			var txErr *icomclock.TransmitError
			require.ErrorAs(t, err, &txErr)
			assert.Equal(t, data, txErr.Frame)
			assert.Nil(t, ack)
		})
	}
}

func TestSendFrame_StaleReplyDiscarded(t *testing.T) {
	t.Parallel()

	server, rig, conn := connectSlot(t, 2)
	data := frame.Build(0x94, frame.ControllerAddress, 0x1A, 0x05, 0x00, 0x96, 0x01)

	// a late NG for the same command from an earlier attempt
	ng := frame.Build(frame.ControllerAddress, 0x94, frame.ReplyNG)
	server.emit(fakeEvent{rig: 2, command: data, reply: append(append([]byte(nil), data...), ng...)})

	ack, err := conn.SendFrame(context.Background(), data, len(data)+6)
	require.NoError(t, err)
	assert.True(t, ack.Verified)
	assert.Len(t, rig.commands, 1)
}

func TestSendFrame_ContextCanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	rig := server.addRig(1, "IC-7300", nativeOnline)
	rig.answer = silent
	d := &fakeDialer{server: server}
	c := New(VariantA, WithDialer(d.dial), WithSettleDelay(0), WithReplyTimeout(time.Minute))
	conn, err := c.Connect(context.Background(), 1)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	data := frame.Build(0x94, frame.ControllerAddress, 0x1A, 0x05, 0x00, 0x95, 0x14, 0x05)
	start := time.Now()
	_, err = conn.SendFrame(ctx, data, len(data)+6)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, rig.commands, 1)
}

func TestSendFrame_MalformedFrame(t *testing.T) {
	t.Parallel()

	_, rig, conn := connectSlot(t, 1)

	_, err := conn.SendFrame(context.Background(), []byte{0xFE, 0xFE, 0x94}, 9)
	require.ErrorIs(t, err, frame.ErrMalformedFrame)
	assert.Empty(t, rig.commands)
}

func TestConnect_ReplyEvents(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	server.addRig(1, "IC-7300", nativeOnline)
	c, _ := newTestConnector(VariantA, server)

	conn, err := c.Connect(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, server.unsubscribeCount())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, server.unsubscribeCount(), "disconnected exactly once")
}

func TestConnect_ReplyEventsUnavailable(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	rig := server.addRig(1, "IC-7300", nativeOnline)
	server.subscribeErr = errCOM
	c, _ := newTestConnector(VariantA, server)

	_, err := c.Connect(context.Background(), 1)
	require.ErrorIs(t, err, errCOM)

	var connErr *icomclock.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 1, server.releaseCount())
	assert.Equal(t, 1, rig.releases)
}
