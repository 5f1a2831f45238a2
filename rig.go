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
	"context"
	"fmt"

	"github.com/ZaparooProject/go-icomclock/internal/frame"
	"github.com/ZaparooProject/go-icomclock/internal/syncutil"
)

// RigStatus is the backend independent state of a rig slot.
type RigStatus int

const (
	// StatusUnknown is any native status without a mapping
	StatusUnknown RigStatus = iota
	StatusNotConfigured
	StatusDisabled
	StatusPortBusy
	StatusNotResponding
	StatusOnline
)

func (s RigStatus) String() string {
	switch s {
	case StatusNotConfigured:
		return "NotConfigured"
	case StatusDisabled:
		return "Disabled"
	case StatusPortBusy:
		return "PortBusy"
	case StatusNotResponding:
		return "NotResponding"
	case StatusOnline:
		return "Online"
	default:
		return "Unknown"
	}
}

// Description returns an operator facing explanation of the status.
func (s RigStatus) Description() string {
	switch s {
	case StatusNotConfigured:
		return "is not configured"
	case StatusDisabled:
		return "is disabled"
	case StatusPortBusy:
		return "port is busy (is the transceiver connected? is the port used by another program?)"
	case StatusNotResponding:
		return "does not respond (is the transceiver turned on?)"
	case StatusOnline:
		return "is online"
	default:
		return "reports an unknown status"
	}
}

// BackendType identifies the rig control backend
type BackendType string

const (
	// BackendOmniRig1 is the original OmniRig by VE3NEA.
	BackendOmniRig1 BackendType = "omnirig1"
	// BackendOmniRig2 is the updated OmniRig by HB9RYZ.
	BackendOmniRig2 BackendType = "omnirig2"
	// BackendCIV talks CI-V directly over a serial port.
	BackendCIV BackendType = "civ"
	// BackendMock is the in-memory test backend
	BackendMock BackendType = "mock"
)

// Ack describes the outcome of a SendFrame call.
type Ack struct {
	// Frame is the frame that was sent
	Frame []byte
	// Reply holds the transceiver's reply when the backend can read it
	Reply []byte
	// Expected is the reply length passed to the backend
	Expected int
	// Verified is true when Reply was checked against an OK reply
	Verified bool
}

// Connection is an open session to one rig slot. Connections are only
// handed out for rigs that reported StatusOnline.
type Connection interface {
	// SendFrame transmits one CI-V frame. ackLen is the number of bytes the
	// backend should expect back (echo plus reply).
	SendFrame(ctx context.Context, data []byte, ackLen int) (*Ack, error)

	// Status returns the rig status read when the connection was opened
	Status() RigStatus

	// RigType returns the backend's name for the connected rig
	RigType() string

	// Slot returns the rig number this connection is bound to
	Slot() int

	// Close releases the session. It is safe to call more than once.
	Close() error

	// Type returns the backend type
	Type() BackendType
}

// Connector opens connections to rig slots of one backend.
type Connector interface {
	// Connect validates the slot, opens the backend session and checks the
	// rig status. Any status other than online fails with a
	// *RigUnavailableError after the session has been released.
	Connect(ctx context.Context, slot int) (Connection, error)

	// Slots returns the number of rig slots the backend exposes
	Slots() int

	// Close releases any session held by the connector itself
	Close() error

	// Type returns the backend type
	Type() BackendType
}

// RigInfo describes one rig slot of a backend. StatusText is the backend's
// own wording of the status, if it has one.
type RigInfo struct {
	RigType    string
	StatusText string
	Slot       int
	Status     RigStatus
}

// ServiceInfo is informational data about the automation service.
type ServiceInfo struct {
	SoftwareVersion  string
	InterfaceVersion string
	Rigs             []RigInfo
}

// ServiceInfoProvider is implemented by connectors that can describe the
// automation service and its rig slots.
type ServiceInfoProvider interface {
	ServiceInfo(ctx context.Context) (*ServiceInfo, error)
}

// ValidateSlot checks slot against a backend's slot count.
func ValidateSlot(backend BackendType, slot, slots int) error {
	if slot < 1 || slot > slots {
		return NewConnectionError(backend, "connect", 0,
			fmt.Errorf("%w: %d (valid 1-%d)", ErrSlotOutOfRange, slot, slots))
	}
	return nil
}

// MockConnection provides an in-memory Connection for testing
type MockConnection struct {
	callErrors map[int]error
	err        error
	rigType    string
	frames     [][]byte
	ackLens    []int
	closer     syncutil.CloseOnce
	mu         syncutil.RWMutex
	slot       int
	status     RigStatus
	closeCalls int
}

// NewMockConnection creates an online mock connection on slot 1
func NewMockConnection(rigType string) *MockConnection {
	return &MockConnection{
		rigType:    rigType,
		slot:       1,
		status:     StatusOnline,
		callErrors: make(map[int]error),
	}
}

// SendFrame implements Connection
func (m *MockConnection) SendFrame(ctx context.Context, data []byte, ackLen int) (*Ack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closer.Done() {
		return nil, NewTransmitError(BackendMock, data, ErrConnectionClosed)
	}

	m.frames = append(m.frames, append([]byte(nil), data...))
	m.ackLens = append(m.ackLens, ackLen)
	call := len(m.frames)

	if err, ok := m.callErrors[call]; ok {
		return nil, NewTransmitError(BackendMock, data, err)
	}
	if m.err != nil {
		return nil, NewTransmitError(BackendMock, data, m.err)
	}

	if err := frame.Validate(data); err != nil {
		return nil, NewTransmitError(BackendMock, data, err)
	}
	reply := frame.OKReply(data[2])
	return &Ack{
		Frame:    append([]byte(nil), data...),
		Reply:    reply,
		Expected: ackLen,
		Verified: true,
	}, nil
}

// Status implements Connection
func (m *MockConnection) Status() RigStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// RigType implements Connection
func (m *MockConnection) RigType() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rigType
}

// Slot implements Connection
func (m *MockConnection) Slot() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slot
}

// Close implements Connection
func (m *MockConnection) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	return m.closer.Do(func() error { return nil })
}

// Type implements Connection
func (*MockConnection) Type() BackendType {
	return BackendMock
}

// Test helper methods

// SetStatus sets the status reported by the connection
func (m *MockConnection) SetStatus(status RigStatus) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

// SetSlot sets the slot reported by the connection
func (m *MockConnection) SetSlot(slot int) {
	m.mu.Lock()
	m.slot = slot
	m.mu.Unlock()
}

// SetError makes every SendFrame call fail with err
func (m *MockConnection) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// SetErrorOnCall makes the nth SendFrame call (1-based) fail with err
func (m *MockConnection) SetErrorOnCall(n int, err error) {
	m.mu.Lock()
	m.callErrors[n] = err
	m.mu.Unlock()
}

// Frames returns copies of all frames sent so far
func (m *MockConnection) Frames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.frames))
	for i, f := range m.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// AckLens returns the ackLen argument of every SendFrame call
func (m *MockConnection) AckLens() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.ackLens...)
}

// GetCallCount returns how many times SendFrame was called
func (m *MockConnection) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

// IsClosed reports whether Close has released the connection
func (m *MockConnection) IsClosed() bool {
	return m.closer.Done()
}

// CloseCalls returns how many times Close was called
func (m *MockConnection) CloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCalls
}

// MockConnector hands out a single MockConnection
type MockConnector struct {
	conn       *MockConnection
	connectErr error
	info       *ServiceInfo
	slots      int
	connects   int
	mu         syncutil.Mutex
}

// NewMockConnector creates a connector with the given slot count
func NewMockConnector(conn *MockConnection, slots int) *MockConnector {
	return &MockConnector{conn: conn, slots: slots}
}

// Connect implements Connector
func (m *MockConnector) Connect(ctx context.Context, slot int) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateSlot(BackendMock, slot, m.slots); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.connects++
	connectErr := m.connectErr
	m.mu.Unlock()

	if connectErr != nil {
		return nil, NewConnectionError(BackendMock, "connect", slot, connectErr)
	}

	m.conn.SetSlot(slot)
	if status := m.conn.Status(); status != StatusOnline {
		_ = m.conn.Close()
		return nil, &RigUnavailableError{Slot: slot, Status: status}
	}
	return m.conn, nil
}

// Slots implements Connector
func (m *MockConnector) Slots() int {
	return m.slots
}

// Close implements Connector
func (*MockConnector) Close() error {
	return nil
}

// Type implements Connector
func (*MockConnector) Type() BackendType {
	return BackendMock
}

// ServiceInfo implements ServiceInfoProvider
func (m *MockConnector) ServiceInfo(context.Context) (*ServiceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info != nil {
		return m.info, nil
	}
	return &ServiceInfo{
		SoftwareVersion:  "mock",
		InterfaceVersion: "mock",
		Rigs:             []RigInfo{{Slot: 1, RigType: m.conn.RigType(), Status: m.conn.Status()}},
	}, nil
}

// SetConnectError makes Connect fail with err after slot validation
func (m *MockConnector) SetConnectError(err error) {
	m.mu.Lock()
	m.connectErr = err
	m.mu.Unlock()
}

// SetServiceInfo overrides the reported service info
func (m *MockConnector) SetServiceInfo(info *ServiceInfo) {
	m.mu.Lock()
	m.info = info
	m.mu.Unlock()
}

// ConnectCalls returns how many connections were attempted
func (m *MockConnector) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}
