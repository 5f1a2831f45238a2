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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-icomclock/internal/frame"
)

// Step is a state of the clock sync sequence.
type Step int

const (
	StepIdle Step = iota
	StepWaitForAlignment
	StepComputeOffset
	StepSendTime
	StepSendDate
	StepSendUTCOffset
	StepDone
	StepAborted
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "Idle"
	case StepWaitForAlignment:
		return "WaitForAlignment"
	case StepComputeOffset:
		return "ComputeOffset"
	case StepSendTime:
		return "SendTime"
	case StepSendDate:
		return "SendDate"
	case StepSendUTCOffset:
		return "SendUtcOffset"
	case StepDone:
		return "Done"
	case StepAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// SyncResult lists the frames a successful sync sent.
type SyncResult struct {
	AlignedAt    time.Time
	TimeFrame    string
	DateFrame    string
	OffsetFrame  string
	Bias         int
	DateResent   bool
	FramesSent   int
	ReversedZone bool
}

// Syncer drives one clock sync over a Connection.
type Syncer struct {
	conn         Connection
	clock        Clock
	registry     *Registry
	bias         BiasFunc
	location     *time.Location
	out          io.Writer
	model        string
	address      string
	pollInterval time.Duration
	state        Step
	reversed     bool
}

// SyncOption configures a Syncer
type SyncOption func(*Syncer)

// WithClock replaces the host clock
func WithClock(clock Clock) SyncOption {
	return func(s *Syncer) {
		s.clock = clock
	}
}

// WithBias replaces the system UTC bias lookup
func WithBias(bias BiasFunc) SyncOption {
	return func(s *Syncer) {
		s.bias = bias
	}
}

// WithLocation sets the local time zone. Defaults to time.Local.
func WithLocation(loc *time.Location) SyncOption {
	return func(s *Syncer) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRegistry selects the command registry
func WithRegistry(r *Registry) SyncOption {
	return func(s *Syncer) {
		s.registry = r
	}
}

// WithReversedTimeZone shows UTC on the transceiver clock and local time
// on its UTC display.
func WithReversedTimeZone(reversed bool) SyncOption {
	return func(s *Syncer) {
		s.reversed = reversed
	}
}

// WithPollInterval sets the alignment poll interval
func WithPollInterval(d time.Duration) SyncOption {
	return func(s *Syncer) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithOutput sets where progress messages are printed. nil silences them.
func WithOutput(w io.Writer) SyncOption {
	return func(s *Syncer) {
		if w == nil {
			w = io.Discard
		}
		s.out = w
	}
}

// NewSyncer creates a sync for model on conn. An empty address uses the
// model's default address.
func NewSyncer(conn Connection, model, address string, opts ...SyncOption) *Syncer {
	s := &Syncer{
		conn:         conn,
		model:        model,
		address:      address,
		clock:        SystemClock(),
		registry:     DefaultRegistry(),
		bias:         LocalUTCBias,
		location:     time.Local,
		out:          io.Discard,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the step the sync is in, or ended in.
func (s *Syncer) State() Step {
	return s.state
}

// now reads the clock in the zone shown on the transceiver clock: local
// time normally, UTC when reversed.
func (s *Syncer) now() time.Time {
	return s.view(s.clock.Now())
}

func (s *Syncer) view(t time.Time) time.Time {
	if s.reversed {
		return t.UTC()
	}
	return t.In(s.location)
}

func (s *Syncer) abort(step Step, err error) error {
	s.state = StepAborted
	Debugf("clock sync aborted in %s: %v", step, err)
	return &StepError{Step: step, Err: err}
}

// Run waits for the top of the minute and sends the time, date and UTC
// offset. The first failure aborts the remaining steps.
func (s *Syncer) Run(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{ReversedZone: s.reversed}

	if err := s.validate(); err != nil {
		s.state = StepAborted
		return nil, err
	}

	s.state = StepWaitForAlignment
	s.printf("Waiting for the full minute to set time\n")
	aligned, err := waitForSecondZero(ctx, s.clock, s.view, s.pollInterval)
	if err != nil {
		return nil, s.abort(StepWaitForAlignment, err)
	}
	result.AlignedAt = aligned
	Debugf("aligned at %s", aligned.Format(time.RFC3339))

	s.state = StepComputeOffset
	bias, err := s.bias(aligned.In(s.location))
	if err != nil {
		return nil, s.abort(StepComputeOffset, err)
	}
	result.Bias = bias
	offsetPayload := EncodeUTCOffset(bias, s.reversed)
	Debugf("utc bias %d minutes, offset payload %s", bias, offsetPayload)

	s.state = StepSendTime
	result.TimeFrame, err = s.send(ctx, CommandSetTime, EncodeTime(aligned))
	if err != nil {
		return nil, s.abort(StepSendTime, err)
	}
	result.FramesSent++

	s.state = StepSendDate
	date := s.now()
	result.DateFrame, err = s.send(ctx, CommandSetDate, EncodeDate(date))
	if err != nil {
		return nil, s.abort(StepSendDate, err)
	}
	result.FramesSent++

	// the day may have rolled over between reading and setting the date
	if later := s.now(); later.Day() != date.Day() {
		Debugf("day changed while setting date, resending")
		result.DateFrame, err = s.send(ctx, CommandSetDate, EncodeDate(later))
		if err != nil {
			return nil, s.abort(StepSendDate, err)
		}
		result.DateResent = true
		result.FramesSent++
	}

	s.state = StepSendUTCOffset
	result.OffsetFrame, err = s.send(ctx, CommandSetUTCOffset, offsetPayload)
	if err != nil {
		return nil, s.abort(StepSendUTCOffset, err)
	}
	result.FramesSent++

	s.state = StepDone
	return result, nil
}

// validate resolves every command template once so that an unknown model,
// a missing command or a bad address fails before the alignment wait.
func (s *Syncer) validate() error {
	for _, command := range []string{CommandSetTime, CommandSetDate, CommandSetUTCOffset} {
		if _, err := s.registry.Resolve(s.model, command, s.address, ""); err != nil {
			return err
		}
	}
	return nil
}

// send resolves, encodes and transmits one command.
func (s *Syncer) send(ctx context.Context, command, payload string) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	hexFrame, err := s.registry.Resolve(s.model, command, s.address, payload)
	if err != nil {
		return "", err
	}
	data, err := frame.HexToBytes(hexFrame)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", command, err)
	}

	s.printf("Sending command: %s", hexFrame)
	Debugf("TX %s", frame.FormatHex(data))
	ack, err := s.conn.SendFrame(ctx, data, len(data)+frame.OKReplyLength)
	if errors.Is(err, ErrAckTimeout) {
		s.printf(" - Rig response: timed out\n")
		return "", err
	}
	if err != nil {
		s.printf(" - Rig response: Error\n")
		return "", err
	}
	if ack != nil && len(ack.Reply) > 0 {
		Debugf("RX %s", frame.FormatHex(ack.Reply))
	}
	s.printf(" - Rig response: OK\n")
	return hexFrame, nil
}

func (s *Syncer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
