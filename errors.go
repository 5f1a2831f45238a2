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

	"github.com/ZaparooProject/go-icomclock/internal/frame"
)

// Error categories
var (
	// Configuration errors - detected before any connection attempt
	ErrUnknownModel      = errors.New("unknown transceiver model")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrUnknownRigType    = errors.New("rig type does not match any transceiver model")
	ErrInvalidAddress    = errors.New("invalid transceiver address")
	ErrInvalidDefinition = errors.New("invalid transceiver definition")
	ErrModelMismatch     = errors.New("transceiver model does not match rig type")

	// Connection errors - fatal, never retried
	ErrServiceInit      = errors.New("automation service initialization failed")
	ErrServiceCreate    = errors.New("automation service object creation failed")
	ErrSlotOutOfRange   = errors.New("rig number out of range")
	ErrRigUnavailable   = errors.New("rig unavailable")
	ErrConnectionClosed = errors.New("connection is closed")

	// Transmission errors - abort the remaining command sequence
	ErrTransmitFailed = errors.New("custom command failed")
	ErrNegativeAck    = errors.New("transceiver rejected command")
	ErrAckTimeout     = errors.New("no reply from transceiver")

	// Encoder errors
	ErrInvalidHexDigit       = frame.ErrInvalidHexDigit
	ErrOddLength             = frame.ErrOddLength
	ErrFrameBufferAllocation = frame.ErrFrameBufferAllocation
)

// ConnectionError wraps failures while establishing or tearing down a
// backend session.
type ConnectionError struct {
	Err     error
	Backend BackendType
	Op      string
	Slot    int
}

func (e *ConnectionError) Error() string {
	if e.Slot > 0 {
		return fmt.Sprintf("%s %s rig %d: %v", e.Backend, e.Op, e.Slot, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RigUnavailableError reports a rig slot whose status is not Online.
type RigUnavailableError struct {
	Slot   int
	Status RigStatus
}

func (e *RigUnavailableError) Error() string {
	return fmt.Sprintf("rig %d %s", e.Slot, e.Status.Description())
}

// Unwrap lets errors.Is match ErrRigUnavailable
func (*RigUnavailableError) Unwrap() error {
	return ErrRigUnavailable
}

// TransmitError wraps a failed SendFrame call.
type TransmitError struct {
	Err     error
	Backend BackendType
	Frame   []byte
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("%s send %s: %v", e.Backend, frame.BytesToHex(e.Frame), e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

// RegistryError wraps command registry lookup failures.
type RegistryError struct {
	Err     error
	Model   string
	Command string
}

func (e *RegistryError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%s for transceiver %s: %v", e.Command, e.Model, e.Err)
	}
	if e.Model != "" {
		return fmt.Sprintf("transceiver %s: %v", e.Model, e.Err)
	}
	return e.Err.Error()
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// StepError records which clock sync step aborted the sequence.
type StepError struct {
	Err  error
	Step Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a connection error for a backend operation
func NewConnectionError(backend BackendType, op string, slot int, err error) *ConnectionError {
	return &ConnectionError{Backend: backend, Op: op, Slot: slot, Err: err}
}

// NewTransmitError creates a transmit error, copying the frame
func NewTransmitError(backend BackendType, data []byte, err error) *TransmitError {
	return &TransmitError{Backend: backend, Frame: append([]byte(nil), data...), Err: err}
}

// RigStatusFromError extracts the rig status from a RigUnavailableError.
func RigStatusFromError(err error) (RigStatus, bool) {
	var rue *RigUnavailableError
	if errors.As(err, &rue) {
		return rue.Status, true
	}
	return StatusUnknown, false
}

// FailedStep returns the step that aborted a sync, if any.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return StepDone, false
}

// IsInterrupted reports whether err stems from context cancellation.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsConfigurationError reports errors that are detected before talking to
// the automation service.
func IsConfigurationError(err error) bool {
	if _, ok := FailedStep(err); ok {
		return false
	}
	return errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrUnknownRigType) ||
		errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrModelMismatch) ||
		errors.Is(err, ErrSlotOutOfRange)
}
