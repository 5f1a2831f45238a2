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

// Package testing provides test utilities including a wire-level CI-V
// transceiver simulator.
//
// VirtualRig implements io.ReadWriter and behaves like an Icom transceiver on
// a CI-V bus: every frame written is echoed back, frames addressed to the rig
// are answered with OK (FB) or NG (FA), and clock settings are stored.
package testing

import (
	"bytes"
	"fmt"

	"github.com/ZaparooProject/go-icomclock/internal/frame"
	"github.com/ZaparooProject/go-icomclock/internal/syncutil"
)

// CI-V command codes understood by the simulator
const (
	cmdReadID      = 0x19
	cmdSettings    = 0x1A
	subReadID      = 0x00
	subSettings    = 0x05
	broadcastAddr  = 0x00
	settingsHeader = 4 // 1A 05 p1 p2
)

// ReceivedFrame records a frame addressed to the rig
type ReceivedFrame struct {
	Data    []byte
	Opcode  string
	Payload []byte
}

// VirtualRig simulates an Icom transceiver at the CI-V wire level.
type VirtualRig struct {
	settings     map[string][]byte
	rxBuffer     bytes.Buffer
	txBuffer     bytes.Buffer
	noise        []byte
	received     []ReceivedFrame
	rejectNext   int
	dropReplies  int
	mu           syncutil.Mutex
	address      byte
	echo         bool
	poweredOff   bool
	rejectAll    bool
	wrongAddress bool
}

// NewVirtualRig creates a simulator answering at the given CI-V address.
// Echo is enabled, as on a single-wire CI-V bus.
func NewVirtualRig(address byte) *VirtualRig {
	return &VirtualRig{
		address:  address,
		echo:     true,
		settings: make(map[string][]byte),
	}
}

// Write receives bytes from the controller and queues echo and replies.
func (v *VirtualRig) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	v.processReceivedData()
	return len(data), nil
}

// Read returns queued bytes. It returns 0, nil when nothing is pending.
func (v *VirtualRig) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

// Address returns the rig's CI-V address
func (v *VirtualRig) Address() byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.address
}

// SetEcho enables or disables the bus echo
func (v *VirtualRig) SetEcho(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.echo = enabled
}

// SetPoweredOff makes the rig stop answering. The interface still echoes.
func (v *VirtualRig) SetPoweredOff(off bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.poweredOff = off
}

// RejectNext answers the next n addressed commands with NG.
func (v *VirtualRig) RejectNext(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejectNext = n
}

// RejectAll answers every addressed command with NG.
func (v *VirtualRig) RejectAll(reject bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejectAll = reject
}

// DropReplies suppresses the replies to the next n addressed commands.
func (v *VirtualRig) DropReplies(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropReplies = n
}

// ReplyFromWrongAddress makes replies come from a different transceiver.
func (v *VirtualRig) ReplyFromWrongAddress(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wrongAddress = enabled
}

// InjectNoise queues bytes that are sent ahead of the next reply.
func (v *VirtualRig) InjectNoise(noise []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.noise = append(v.noise, noise...)
}

// Setting returns the stored value of a 1A 05 setting, keyed by the four hex
// digits of its parameter number (e.g. "0095").
func (v *VirtualRig) Setting(param string) ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok := v.settings[param]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), value...), true
}

// Received returns the frames addressed to the rig, in order.
func (v *VirtualRig) Received() []ReceivedFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ReceivedFrame, len(v.received))
	copy(out, v.received)
	return out
}

// HasPendingResponse returns true if bytes are waiting to be read.
func (v *VirtualRig) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len() > 0
}

// ClearPending discards bytes waiting to be read.
func (v *VirtualRig) ClearPending() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txBuffer.Reset()
}

// Reset clears all state and buffers.
func (v *VirtualRig) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Reset()
	v.txBuffer.Reset()
	v.settings = make(map[string][]byte)
	v.received = nil
	v.noise = nil
	v.rejectNext = 0
	v.dropReplies = 0
	v.rejectAll = false
	v.poweredOff = false
	v.wrongAddress = false
	v.echo = true
}

// processReceivedData consumes complete frames from the receive buffer.
func (v *VirtualRig) processReceivedData() {
	for {
		msg, rest, ok := frame.Next(v.rxBuffer.Bytes())
		if !ok {
			// keep a partial frame, drop leading garbage
			pending := append([]byte(nil), rest...)
			v.rxBuffer.Reset()
			v.rxBuffer.Write(pending)
			return
		}
		pending := append([]byte(nil), rest...)
		v.rxBuffer.Reset()
		v.rxBuffer.Write(pending)

		if v.echo {
			v.txBuffer.Write(msg)
		}
		v.processFrame(msg)
	}
}

func (v *VirtualRig) processFrame(data []byte) {
	parsed, err := frame.Parse(data)
	if err != nil {
		return
	}
	if parsed.To != v.address && parsed.To != broadcastAddr {
		return
	}
	if v.poweredOff {
		return
	}

	v.received = append(v.received, ReceivedFrame{
		Data:    append([]byte(nil), data...),
		Opcode:  frame.BytesToHex(parsed.Body[:min(len(parsed.Body), settingsHeader)]),
		Payload: payloadOf(parsed.Body),
	})

	if v.dropReplies > 0 {
		v.dropReplies--
		return
	}

	reply := v.handleCommand(parsed)
	if len(v.noise) > 0 {
		v.txBuffer.Write(v.noise)
		v.noise = nil
	}
	v.txBuffer.Write(reply)
}

func payloadOf(body []byte) []byte {
	if len(body) > settingsHeader && body[0] == cmdSettings {
		return append([]byte(nil), body[settingsHeader:]...)
	}
	return nil
}

func (v *VirtualRig) replyAddress() byte {
	if v.wrongAddress {
		return v.address + 1
	}
	return v.address
}

func (v *VirtualRig) ng() []byte {
	return frame.Build(frame.ControllerAddress, v.replyAddress(), frame.ReplyNG)
}

func (v *VirtualRig) ok() []byte {
	return frame.Build(frame.ControllerAddress, v.replyAddress(), frame.ReplyOK)
}

// handleCommand builds the reply for one addressed frame.
func (v *VirtualRig) handleCommand(msg frame.Message) []byte {
	if v.rejectAll {
		return v.ng()
	}
	if v.rejectNext > 0 {
		v.rejectNext--
		return v.ng()
	}

	body := msg.Body
	switch {
	case len(body) == 2 && body[0] == cmdReadID && body[1] == subReadID:
		return frame.Build(frame.ControllerAddress, v.replyAddress(), cmdReadID, subReadID, v.address)
	case len(body) >= settingsHeader && body[0] == cmdSettings && body[1] == subSettings:
		return v.handleSetting(body)
	default:
		return v.ng()
	}
}

// handleSetting stores a 1A 05 value, or reads it back when no value is
// given.
func (v *VirtualRig) handleSetting(body []byte) []byte {
	param := frame.BytesToHex(body[2:settingsHeader])
	value := body[settingsHeader:]
	if len(value) == 0 {
		stored, ok := v.settings[param]
		if !ok {
			return v.ng()
		}
		reply := append([]byte(nil), body[:settingsHeader]...)
		reply = append(reply, stored...)
		return frame.Build(frame.ControllerAddress, v.replyAddress(), reply...)
	}
	v.settings[param] = append([]byte(nil), value...)
	return v.ok()
}
