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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-icomclock/internal/syncutil"
	"go.bug.st/serial"
)

// ErrPortClosed is returned when a closed SimulatorPort is used
var ErrPortClosed = errors.New("port is closed")

const pollStep = time.Millisecond

// WriteLogEntry records one Write call on a SimulatorPort
type WriteLogEntry struct {
	Timestamp time.Time
	Data      []byte
}

// SimulatorPort adapts a simulator to the serial.Port interface so the
// direct serial backend can be tested against a VirtualRig.
type SimulatorPort struct {
	backend     io.ReadWriter
	mode        *serial.Mode
	writeLog    []WriteLogEntry
	readTimeout time.Duration
	resets      int
	mu          syncutil.Mutex
	closed      bool
}

// NewSimulatorPort wraps backend, usually a *VirtualRig or a jittery wrapper
// around one.
func NewSimulatorPort(backend io.ReadWriter) *SimulatorPort {
	return &SimulatorPort{
		backend:     backend,
		readTimeout: 50 * time.Millisecond,
	}
}

// SetMode records the requested mode
func (p *SimulatorPort) SetMode(mode *serial.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
	return nil
}

// Mode returns the last mode set, or nil
func (p *SimulatorPort) Mode() *serial.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Read blocks until data is available or the read timeout expires, like a
// real port. A timeout returns 0, nil.
func (p *SimulatorPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	timeout := p.readTimeout
	p.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if p.isClosed() {
			return 0, ErrPortClosed
		}
		n, err := p.backend.Read(buf)
		if err != nil {
			return n, fmt.Errorf("simulator read: %w", err)
		}
		if n > 0 || !time.Now().Before(deadline) {
			return n, nil
		}
		time.Sleep(pollStep)
	}
}

// Write passes data to the simulator and logs it
func (p *SimulatorPort) Write(data []byte) (int, error) {
	if p.isClosed() {
		return 0, ErrPortClosed
	}
	p.mu.Lock()
	p.writeLog = append(p.writeLog, WriteLogEntry{
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now(),
	})
	p.mu.Unlock()

	n, err := p.backend.Write(data)
	if err != nil {
		return n, fmt.Errorf("simulator write: %w", err)
	}
	return n, nil
}

// Drain is a no-op
func (*SimulatorPort) Drain() error {
	return nil
}

// ResetInputBuffer counts resets. Pending simulator output is kept so tests
// can inject stale bytes.
func (p *SimulatorPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return nil
}

// ResetOutputBuffer is a no-op
func (*SimulatorPort) ResetOutputBuffer() error {
	return nil
}

// SetDTR is a no-op
func (*SimulatorPort) SetDTR(bool) error {
	return nil
}

// SetRTS is a no-op
func (*SimulatorPort) SetRTS(bool) error {
	return nil
}

// GetModemStatusBits reports all lines low
func (*SimulatorPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// SetReadTimeout sets how long Read waits for data
func (p *SimulatorPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

// Close marks the port closed
func (p *SimulatorPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Break is a no-op
func (*SimulatorPort) Break(time.Duration) error {
	return nil
}

// IsClosed reports whether Close was called
func (p *SimulatorPort) IsClosed() bool {
	return p.isClosed()
}

// Writes returns a copy of the write log
func (p *SimulatorPort) Writes() []WriteLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WriteLogEntry, len(p.writeLog))
	copy(out, p.writeLog)
	return out
}

// InputResets returns how many times ResetInputBuffer was called
func (p *SimulatorPort) InputResets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

func (p *SimulatorPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

var _ serial.Port = (*SimulatorPort)(nil)
