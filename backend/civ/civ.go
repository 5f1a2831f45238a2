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

// Package civ talks CI-V directly over a serial port, without an automation
// service. It drives Icom transceivers with built-in USB or a CI-V level
// converter cable.
package civ

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	icomclock "github.com/ZaparooProject/go-icomclock"
	"github.com/ZaparooProject/go-icomclock/internal/frame"
	"github.com/ZaparooProject/go-icomclock/internal/syncutil"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the CI-V speed Icom transceivers ship with
	DefaultBaudRate = 19200
	// DefaultReplyTimeout bounds the wait for a transceiver reply
	DefaultReplyTimeout = 500 * time.Millisecond

	cmdReadID     = 0x19
	subReadID     = 0x00
	broadcastAddr = 0x00
	slotCount     = 1
)

// Opener opens a serial port. It matches serial.Open.
type Opener func(name string, mode *serial.Mode) (serial.Port, error)

// Option configures a Connector.
type Option func(*Connector)

// WithBaudRate sets the serial speed.
func WithBaudRate(baud int) Option {
	return func(c *Connector) {
		if baud > 0 {
			c.baudRate = baud
		}
	}
}

// WithAddress sets the transceiver address used to identify the rig. Without
// it the ID request goes to the broadcast address.
func WithAddress(address string) Option {
	return func(c *Connector) {
		c.address = address
	}
}

// WithRegistry sets the registry used to name the connected model.
func WithRegistry(registry *icomclock.Registry) Option {
	return func(c *Connector) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithReplyTimeout sets how long to wait for a reply to each frame.
func WithReplyTimeout(timeout time.Duration) Option {
	return func(c *Connector) {
		if timeout > 0 {
			c.replyTimeout = timeout
		}
	}
}

// WithOpener replaces serial.Open, mainly for tests.
func WithOpener(open Opener) Option {
	return func(c *Connector) {
		c.open = open
	}
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// readTimeout returns the per-read timeout. Windows USB serial drivers need
// a longer one.
func readTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Connector opens the single CI-V "slot" behind a serial port.
type Connector struct {
	open         Opener
	registry     *icomclock.Registry
	portName     string
	address      string
	baudRate     int
	replyTimeout time.Duration
}

// New creates a connector for portName.
func New(portName string, opts ...Option) *Connector {
	c := &Connector{
		open:         serial.Open,
		registry:     icomclock.DefaultRegistry(),
		portName:     portName,
		baudRate:     DefaultBaudRate,
		replyTimeout: DefaultReplyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the port and asks the transceiver for its ID. A rig that
// does not answer is reported as not responding.
func (c *Connector) Connect(ctx context.Context, slot int) (icomclock.Connection, error) {
	if err := icomclock.ValidateSlot(icomclock.BackendCIV, slot, slotCount); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idAddr := byte(broadcastAddr)
	if c.address != "" {
		addr, err := icomclock.NormalizeAddress(c.address)
		if err != nil {
			return nil, icomclock.NewConnectionError(icomclock.BackendCIV, "connect", slot, err)
		}
		decoded, err := frame.HexToBytes(addr)
		if err != nil {
			return nil, icomclock.NewConnectionError(icomclock.BackendCIV, "connect", slot, err)
		}
		idAddr = decoded[0]
	}

	port, err := c.open(c.portName, &serial.Mode{
		BaudRate: c.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		if status, ok := statusFromOpenError(err); ok {
			icomclock.Debugf("civ: open %s: %v", c.portName, err)
			return nil, &icomclock.RigUnavailableError{Slot: slot, Status: status}
		}
		return nil, icomclock.NewConnectionError(icomclock.BackendCIV, "open", slot,
			fmt.Errorf("serial port %s: %w", c.portName, err))
	}

	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, icomclock.NewConnectionError(icomclock.BackendCIV, "open", slot,
			fmt.Errorf("set read timeout: %w", err))
	}

	conn := &Connection{
		port:         port,
		portName:     c.portName,
		replyTimeout: c.replyTimeout,
		slot:         slot,
	}

	status, rigType, err := conn.identify(ctx, idAddr, c.registry)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.status = status
	conn.rigType = rigType

	if status != icomclock.StatusOnline {
		_ = conn.Close()
		return nil, &icomclock.RigUnavailableError{Slot: slot, Status: status}
	}

	icomclock.Debugf("civ: %s online, rig type %q", c.portName, rigType)
	return conn, nil
}

// Slots returns 1; a serial port carries one rig.
func (*Connector) Slots() int {
	return slotCount
}

// Close is a no-op. The connector holds no session of its own.
func (*Connector) Close() error {
	return nil
}

// Type returns the backend type
func (*Connector) Type() icomclock.BackendType {
	return icomclock.BackendCIV
}

// statusFromOpenError classifies port open failures that describe the rig
// slot rather than a broken backend.
func statusFromOpenError(err error) (icomclock.RigStatus, bool) {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return icomclock.StatusUnknown, false
	}
	switch portErr.Code() {
	case serial.PortBusy, serial.PermissionDenied:
		return icomclock.StatusPortBusy, true
	case serial.PortNotFound:
		return icomclock.StatusNotConfigured, true
	default:
		return icomclock.StatusUnknown, false
	}
}

// Connection is an open CI-V serial session.
type Connection struct {
	port         serial.Port
	closer       syncutil.CloseOnce
	portName     string
	rigType      string
	replyTimeout time.Duration
	slot         int
	status       icomclock.RigStatus
	mu           syncutil.Mutex
}

// SendFrame writes one frame and waits for the transceiver's FB or FA.
// The bus echo of the frame itself is skipped.
func (c *Connection) SendFrame(ctx context.Context, data []byte, ackLen int) (*icomclock.Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closer.Done() {
		return nil, icomclock.NewTransmitError(icomclock.BackendCIV, data, icomclock.ErrConnectionClosed)
	}
	if err := frame.Validate(data); err != nil {
		return nil, icomclock.NewTransmitError(icomclock.BackendCIV, data, err)
	}

	buf, err := frame.AcquireTx(data)
	if err != nil {
		return nil, icomclock.NewTransmitError(icomclock.BackendCIV, data, err)
	}
	defer buf.Release()

	xcvr := data[2]
	reply, err := c.exchange(ctx, buf.Bytes(), func(msg frame.Message) bool {
		return msg.To == frame.ControllerAddress && msg.From == xcvr && (msg.IsOK() || msg.IsNG())
	})
	if err != nil {
		return nil, icomclock.NewTransmitError(icomclock.BackendCIV, data, err)
	}

	replyMsg, err := frame.Parse(reply)
	if err != nil {
		return nil, icomclock.NewTransmitError(icomclock.BackendCIV, data, err)
	}
	if replyMsg.IsNG() {
		return nil, icomclock.NewTransmitError(icomclock.BackendCIV, data, icomclock.ErrNegativeAck)
	}

	return &icomclock.Ack{
		Frame:    append([]byte(nil), data...),
		Reply:    reply,
		Expected: ackLen,
		Verified: true,
	}, nil
}

// identify sends "read transceiver ID" and derives the rig status and type
// from the answer.
func (c *Connection) identify(ctx context.Context, addr byte,
	registry *icomclock.Registry,
) (icomclock.RigStatus, string, error) {
	request := frame.Build(addr, frame.ControllerAddress, cmdReadID, subReadID)
	reply, err := c.exchange(ctx, request, func(msg frame.Message) bool {
		if msg.To != frame.ControllerAddress {
			return false
		}
		if addr != broadcastAddr && msg.From != addr {
			return false
		}
		return msg.IsNG() || (len(msg.Body) == 3 && msg.Body[0] == cmdReadID && msg.Body[1] == subReadID)
	})
	switch {
	case errors.Is(err, icomclock.ErrAckTimeout):
		return icomclock.StatusNotResponding, "", nil
	case err != nil:
		return icomclock.StatusUnknown, "", icomclock.NewConnectionError(icomclock.BackendCIV, "identify", c.slot, err)
	}

	msg, err := frame.Parse(reply)
	if err != nil || msg.IsNG() {
		// the rig is there but will not identify itself
		return icomclock.StatusOnline, "", nil //nolint:nilerr // a rejected ID request still proves the rig is online
	}
	return icomclock.StatusOnline, modelForID(registry, msg.Body[2]), nil
}

// modelForID names the model whose default address is id. Addresses shared
// by several models give no name.
func modelForID(registry *icomclock.Registry, id byte) string {
	want := frame.BytesToHex([]byte{id})
	match := ""
	for _, model := range registry.Models() {
		addr, err := registry.DefaultAddress(model)
		if err != nil || addr != want {
			continue
		}
		if match != "" {
			return ""
		}
		match = model
	}
	return match
}

// exchange writes request and reads until a frame accepted by match
// arrives, the reply timeout expires or ctx is done. Frames equal to the
// request are taken as the bus echo.
func (c *Connection) exchange(ctx context.Context, request []byte,
	match func(frame.Message) bool,
) ([]byte, error) {
	if err := c.port.ResetInputBuffer(); err != nil {
		icomclock.Debugf("civ: reset input buffer: %v", err)
	}

	icomclock.Debugf("civ TX: %s", frame.FormatHex(request))
	n, err := c.port.Write(request)
	if err != nil {
		return nil, fmt.Errorf("%w: write: %w", icomclock.ErrTransmitFailed, err)
	}
	if n != len(request) {
		return nil, fmt.Errorf("%w: short write %d of %d bytes", icomclock.ErrTransmitFailed, n, len(request))
	}

	deadline := time.Now().Add(c.replyTimeout)
	var pending []byte
	chunk := make([]byte, 64)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		read, err := c.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: read: %w", icomclock.ErrTransmitFailed, err)
		}
		if read == 0 {
			continue
		}
		pending = append(pending, chunk[:read]...)

		for {
			msg, rest, ok := frame.Next(pending)
			if !ok {
				pending = rest
				break
			}
			pending = rest
			if bytes.Equal(msg, request) {
				continue
			}
			icomclock.Debugf("civ RX: %s", frame.FormatHex(msg))
			parsed, err := frame.Parse(msg)
			if err != nil || !match(parsed) {
				continue
			}
			return append([]byte(nil), msg...), nil
		}
	}
	return nil, icomclock.ErrAckTimeout
}

// Status returns the status found by the ID request at connect
func (c *Connection) Status() icomclock.RigStatus {
	return c.status
}

// RigType returns the model named by the transceiver ID, or "" when the ID
// is not unique to one model.
func (c *Connection) RigType() string {
	return c.rigType
}

// Slot returns the slot number, always 1
func (c *Connection) Slot() int {
	return c.slot
}

// Close closes the serial port once
func (c *Connection) Close() error {
	return c.closer.Do(func() error {
		if err := c.port.Close(); err != nil {
			return icomclock.NewConnectionError(icomclock.BackendCIV, "close", c.slot,
				fmt.Errorf("serial port %s: %w", c.portName, err))
		}
		return nil
	})
}

// Type returns the backend type
func (*Connection) Type() icomclock.BackendType {
	return icomclock.BackendCIV
}

var (
	_ icomclock.Connector  = (*Connector)(nil)
	_ icomclock.Connection = (*Connection)(nil)
)
