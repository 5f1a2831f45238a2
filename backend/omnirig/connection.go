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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	icomclock "github.com/ZaparooProject/go-icomclock"
	"github.com/ZaparooProject/go-icomclock/internal/frame"
	"github.com/ZaparooProject/go-icomclock/internal/syncutil"
)

// DefaultReplyTimeout bounds the wait for the CustomReply event of a
// command. OmniRig polls the rig itself, so this is much longer than the
// direct serial timeout.
const DefaultReplyTimeout = 4 * time.Second

// replyQueue is how many undelivered CustomReply events a connection keeps.
const replyQueue = 8

// Option configures a Connector.
type Option func(*Connector)

// WithDialer replaces the COM dialer, mainly for tests.
func WithDialer(dial Dialer) Option {
	return func(c *Connector) {
		c.dial = dial
	}
}

// WithSettleDelay overrides the variant's settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Connector) {
		c.settle = d
	}
}

// WithReplyTimeout sets how long SendFrame waits for the rig's reply.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.replyTimeout = d
		}
	}
}

// Connector opens rig slots of one OmniRig variant. The server object is
// created on first use and shared by ServiceInfo and Connect; Connect
// hands it over to the returned Connection.
type Connector struct {
	dial         Dialer
	session      automation
	settle       time.Duration
	replyTimeout time.Duration
	variant      Variant
	mu           syncutil.Mutex
}

// New creates a connector for variant.
func New(variant Variant, opts ...Option) *Connector {
	c := &Connector{
		dial:         dialOLE,
		variant:      variant,
		settle:       variant.SettleDelay(),
		replyTimeout: DefaultReplyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Variant returns the connector's OmniRig variant
func (c *Connector) Variant() Variant {
	return c.variant
}

// acquire returns the cached server object, creating it if needed.
// Callers hold c.mu.
func (c *Connector) acquire(ctx context.Context) (automation, error) {
	if c.session != nil {
		return c.session, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	auto, err := c.dial(ctx, c.variant.ProgID())
	if err != nil {
		return nil, icomclock.NewConnectionError(c.variant.BackendType(), "create", 0, err)
	}

	if c.settle > 0 {
		icomclock.Debugf("omnirig: waiting %v for %s to start", c.settle, c.variant)
		timer := time.NewTimer(c.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = auto.Release()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.session = auto
	return auto, nil
}

// release drops the cached server object. Callers hold c.mu.
func (c *Connector) release() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Release()
	c.session = nil
	if err != nil {
		return icomclock.NewConnectionError(c.variant.BackendType(), "release", 0, err)
	}
	return nil
}

// Connect validates slot, reads the rig status and returns a connection for
// an online rig. Any other status releases the server before returning.
func (c *Connector) Connect(ctx context.Context, slot int) (icomclock.Connection, error) {
	backend := c.variant.BackendType()
	if err := icomclock.ValidateSlot(backend, slot, c.variant.Slots()); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	auto, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	rig, err := auto.Rig(slot)
	if err != nil {
		_ = c.release()
		return nil, icomclock.NewConnectionError(backend, "connect", slot, err)
	}

	native, err := rig.Status()
	if err != nil {
		_ = rig.Release()
		_ = c.release()
		return nil, icomclock.NewConnectionError(backend, "status", slot, err)
	}
	status := c.variant.MapStatus(native)
	icomclock.Debugf("omnirig: rig %d native status %d (%s)", slot, native, status)

	if status != icomclock.StatusOnline {
		_ = rig.Release()
		_ = c.release()
		return nil, &icomclock.RigUnavailableError{Slot: slot, Status: status}
	}

	rigType, err := rig.RigType()
	if err != nil {
		_ = rig.Release()
		_ = c.release()
		return nil, icomclock.NewConnectionError(backend, "rig type", slot, err)
	}

	conn := &Connection{
		auto:         auto,
		rig:          rig,
		replies:      make(chan customReply, replyQueue),
		backend:      backend,
		rigType:      rigType,
		replyTimeout: c.replyTimeout,
		slot:         slot,
		status:       status,
	}
	unsubscribe, err := auto.OnCustomReply(conn.deliver)
	if err != nil {
		_ = rig.Release()
		_ = c.release()
		return nil, icomclock.NewConnectionError(backend, "events", slot, err)
	}
	conn.unsubscribe = unsubscribe
	// the connection owns the server object now
	c.session = nil
	return conn, nil
}

// ServiceInfo reads the server versions and every rig slot.
func (c *Connector) ServiceInfo(ctx context.Context) (*icomclock.ServiceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	auto, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	backend := c.variant.BackendType()
	software, err := auto.SoftwareVersion()
	if err != nil {
		return nil, icomclock.NewConnectionError(backend, "software version", 0, err)
	}
	iface, err := auto.InterfaceVersion()
	if err != nil {
		return nil, icomclock.NewConnectionError(backend, "interface version", 0, err)
	}

	info := &icomclock.ServiceInfo{
		SoftwareVersion:  SoftwareVersion(software),
		InterfaceVersion: InterfaceVersion(iface),
	}
	for slot := 1; slot <= c.variant.Slots(); slot++ {
		rigInfo, err := c.readRig(auto, slot)
		if err != nil {
			return nil, icomclock.NewConnectionError(backend, "rig info", slot, err)
		}
		info.Rigs = append(info.Rigs, rigInfo)
	}
	return info, nil
}

func (c *Connector) readRig(auto automation, slot int) (icomclock.RigInfo, error) {
	rig, err := auto.Rig(slot)
	if err != nil {
		return icomclock.RigInfo{}, err
	}
	defer func() { _ = rig.Release() }()

	rigType, err := rig.RigType()
	if err != nil {
		return icomclock.RigInfo{}, err
	}
	native, err := rig.Status()
	if err != nil {
		return icomclock.RigInfo{}, err
	}
	text, err := rig.StatusText()
	if err != nil {
		return icomclock.RigInfo{}, err
	}
	return icomclock.RigInfo{
		RigType:    rigType,
		StatusText: text,
		Slot:       slot,
		Status:     c.variant.MapStatus(native),
	}, nil
}

// Slots returns the variant's slot count
func (c *Connector) Slots() int {
	return c.variant.Slots()
}

// Close releases a server object that was created but not handed to a
// connection.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release()
}

// Type returns the backend type
func (c *Connector) Type() icomclock.BackendType {
	return c.variant.BackendType()
}

// customReply is one CustomReply event for the connection's rig.
type customReply struct {
	command []byte
	reply   []byte
}

// Connection is an open OmniRig session bound to one rig slot.
type Connection struct {
	auto         automation
	rig          rigObject
	unsubscribe  func() error
	replies      chan customReply
	closer       syncutil.CloseOnce
	backend      icomclock.BackendType
	rigType      string
	replyTimeout time.Duration
	slot         int
	status       icomclock.RigStatus
	mu           syncutil.Mutex
}

// deliver queues a CustomReply event. It runs on the COM event thread and
// never blocks; events for other rigs and events beyond the queue are
// dropped.
func (c *Connection) deliver(rig int, command, reply []byte) {
	if rig != c.slot {
		return
	}
	ev := customReply{
		command: append([]byte(nil), command...),
		reply:   append([]byte(nil), reply...),
	}
	select {
	case c.replies <- ev:
	default:
		icomclock.Debugf("omnirig: dropped reply for rig %d: % X", rig, reply)
	}
}

// drain discards replies left over from earlier commands.
func (c *Connection) drain() {
	for {
		select {
		case <-c.replies:
		default:
			return
		}
	}
}

// SendFrame passes the frame to SendCustomCommand and waits for the
// CustomReply event carrying it. OmniRig reports the echo followed by the
// transceiver's answer; anything but FB is a rejection.
func (c *Connection) SendFrame(ctx context.Context, data []byte, ackLen int) (*icomclock.Ack, error) {
	if err := ctx.Err(); err != nil {
		return nil, icomclock.NewTransmitError(c.backend, data, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closer.Done() {
		return nil, icomclock.NewTransmitError(c.backend, data, icomclock.ErrConnectionClosed)
	}

	buf, err := frame.AcquireTx(data)
	if err != nil {
		return nil, icomclock.NewTransmitError(c.backend, data, err)
	}
	defer buf.Release()
	if err := frame.Validate(data); err != nil {
		return nil, icomclock.NewTransmitError(c.backend, data, err)
	}

	c.drain()
	if err := c.rig.SendCustomCommand(buf.Bytes(), int32(ackLen), ""); err != nil { //nolint:gosec // ackLen is a frame length
		return nil, icomclock.NewTransmitError(c.backend, data,
			fmt.Errorf("%w: %w", icomclock.ErrTransmitFailed, err))
	}

	reply, err := c.awaitReply(ctx, data)
	if err != nil {
		return nil, icomclock.NewTransmitError(c.backend, data, err)
	}
	if !bytes.Equal(reply, frame.OKReply(data[2])) {
		icomclock.Debugf("omnirig: rig %d rejected command: % X", c.slot, reply)
		return nil, icomclock.NewTransmitError(c.backend, data, icomclock.ErrNegativeAck)
	}

	return &icomclock.Ack{
		Frame:    append([]byte(nil), data...),
		Reply:    reply,
		Expected: ackLen,
		Verified: true,
	}, nil
}

// awaitReply waits for the event whose command is data and returns the part
// of the reply after the echo.
func (c *Connection) awaitReply(ctx context.Context, data []byte) ([]byte, error) {
	timer := time.NewTimer(c.replyTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, icomclock.ErrAckTimeout
		case ev := <-c.replies:
			if !bytes.Equal(ev.command, data) || !bytes.HasPrefix(ev.reply, data) {
				icomclock.Debugf("omnirig: ignoring reply to % X", ev.command)
				continue
			}
			return ev.reply[len(data):], nil
		}
	}
}

// Status returns the status read when the connection was opened
func (c *Connection) Status() icomclock.RigStatus {
	return c.status
}

// RigType returns OmniRig's rig type name, e.g. "IC-7300"
func (c *Connection) RigType() string {
	return c.rigType
}

// Slot returns the rig number
func (c *Connection) Slot() int {
	return c.slot
}

// Close releases the rig and server objects once.
func (c *Connection) Close() error {
	return c.closer.Do(func() error {
		var eventErr error
		if c.unsubscribe != nil {
			eventErr = c.unsubscribe()
		}
		rigErr := c.rig.Release()
		autoErr := c.auto.Release()
		if err := errors.Join(eventErr, rigErr, autoErr); err != nil {
			return icomclock.NewConnectionError(c.backend, "close", c.slot, err)
		}
		return nil
	})
}

// Type returns the backend type
func (c *Connection) Type() icomclock.BackendType {
	return c.backend
}

var (
	_ icomclock.Connector           = (*Connector)(nil)
	_ icomclock.ServiceInfoProvider = (*Connector)(nil)
	_ icomclock.Connection          = (*Connection)(nil)
)
