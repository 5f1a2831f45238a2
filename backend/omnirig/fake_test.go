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
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/go-icomclock/internal/frame"
)

var errCOM = errors.New("COM call failed")

// fakeEvent is a CustomReply event raised by the fake server
type fakeEvent struct {
	command []byte
	reply   []byte
	rig     int
}

// fakeRig records commands. answer returns the events raised for a
// command; when nil the rig echoes the command and accepts it.
type fakeRig struct {
	sendErr   error
	statusErr error
	server    *fakeServer
	answer    func(cmd []byte) []fakeEvent
	rigType   string
	replyLens []int32
	commands  [][]byte
	replyEnds []string
	slot      int
	status    int32
	releases  int
	mu        sync.Mutex
}

// accept is the answer of a rig that takes every command.
func accept(slot int) func([]byte) []fakeEvent {
	return func(cmd []byte) []fakeEvent {
		reply := append(append([]byte(nil), cmd...), frame.OKReply(cmd[2])...)
		return []fakeEvent{{rig: slot, command: cmd, reply: reply}}
	}
}

// reject answers every command with the echo and an FA frame.
func reject(slot int) func([]byte) []fakeEvent {
	return func(cmd []byte) []fakeEvent {
		ng := frame.Build(frame.ControllerAddress, cmd[2], frame.ReplyNG)
		reply := append(append([]byte(nil), cmd...), ng...)
		return []fakeEvent{{rig: slot, command: cmd, reply: reply}}
	}
}

// silent never raises an event.
func silent([]byte) []fakeEvent {
	return nil
}

func (r *fakeRig) Status() (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.statusErr
}

func (r *fakeRig) StatusText() (string, error) {
	return fmt.Sprintf("status %d", r.status), nil
}

func (r *fakeRig) RigType() (string, error) {
	return r.rigType, nil
}

func (r *fakeRig) SendCustomCommand(data []byte, replyLength int32, replyEnd string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, append([]byte(nil), data...))
	r.replyLens = append(r.replyLens, replyLength)
	r.replyEnds = append(r.replyEnds, replyEnd)
	if r.sendErr != nil {
		return r.sendErr
	}
	answer := r.answer
	if answer == nil {
		answer = accept(r.slot)
	}
	for _, ev := range answer(data) {
		r.server.emit(ev)
	}
	return nil
}

func (r *fakeRig) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
	return nil
}

type fakeServer struct {
	subscribeErr error
	rigs         map[int]*fakeRig
	handler      replyHandler
	software     int32
	iface        int32
	releases     int
	rigCalls     int
	unsubscribes int
	mu           sync.Mutex
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		rigs:     make(map[int]*fakeRig),
		software: 0x0001_0014, // 1.20
		iface:    0x0000_010F, // 1.15
	}
}

func (s *fakeServer) addRig(slot int, rigType string, status int32) *fakeRig {
	r := &fakeRig{server: s, rigType: rigType, slot: slot, status: status}
	s.rigs[slot] = r
	return r
}

func (s *fakeServer) SoftwareVersion() (int32, error) {
	return s.software, nil
}

func (s *fakeServer) InterfaceVersion() (int32, error) {
	return s.iface, nil
}

func (s *fakeServer) Rig(slot int) (rigObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rigCalls++
	r, ok := s.rigs[slot]
	if !ok {
		return nil, fmt.Errorf("%w: no Rig%d", errCOM, slot)
	}
	return r, nil
}

func (s *fakeServer) OnCustomReply(h replyHandler) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	s.handler = h
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.handler = nil
		s.unsubscribes++
		return nil
	}, nil
}

// emit raises ev on the connected handler, if any.
func (s *fakeServer) emit(ev fakeEvent) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(ev.rig, ev.command, ev.reply)
	}
}

func (s *fakeServer) unsubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribes
}

func (s *fakeServer) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

func (s *fakeServer) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// fakeDialer hands out server and counts dials
type fakeDialer struct {
	server  *fakeServer
	err     error
	progIDs []string
	mu      sync.Mutex
}

func (d *fakeDialer) dial(_ context.Context, progID string) (automation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progIDs = append(d.progIDs, progID)
	if d.err != nil {
		return nil, d.err
	}
	return d.server, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.progIDs)
}
