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
	"errors"
)

// Process exit codes
const (
	ExitSuccess = 0

	// Option errors
	ExitInvalidOption = 1
	ExitRigNumber     = 2
	ExitModel         = 3
	ExitAddress       = 4
	ExitBackend       = 5
	ExitConfig        = 6

	// Automation service errors
	ExitServiceInit   = -10
	ExitServiceCreate = -11

	// Rig status errors
	ExitStatusNotConfigured = 50
	ExitStatusDisabled      = 51
	ExitStatusPortBusy      = 52
	ExitStatusNotResponding = 53
	ExitStatusUnknown       = 54

	// Internal errors
	ExitRegistry    = 60
	ExitEncoder     = 61
	ExitFrameBuffer = 62
	ExitInternal    = 63

	// Command errors
	ExitSetTime          = 100
	ExitSetTimeTimeout   = 101
	ExitSetDate          = 110
	ExitSetDateTimeout   = 111
	ExitSetOffset        = 120
	ExitSetOffsetTimeout = 121

	ExitInterrupted = 130
)

// ExitCoder is implemented by errors that carry their own exit code.
type ExitCoder interface {
	ExitCode() int
}

// StatusExitCode maps a rig status to its exit code.
func StatusExitCode(status RigStatus) int {
	switch status {
	case StatusNotConfigured:
		return ExitStatusNotConfigured
	case StatusDisabled:
		return ExitStatusDisabled
	case StatusPortBusy:
		return ExitStatusPortBusy
	case StatusNotResponding:
		return ExitStatusNotResponding
	case StatusOnline:
		return ExitSuccess
	default:
		return ExitStatusUnknown
	}
}

// ExitCode classifies err into a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	if IsInterrupted(err) {
		return ExitInterrupted
	}

	if status, ok := RigStatusFromError(err); ok {
		return StatusExitCode(status)
	}

	switch {
	case errors.Is(err, ErrServiceInit):
		return ExitServiceInit
	case errors.Is(err, ErrServiceCreate):
		return ExitServiceCreate
	case errors.Is(err, ErrSlotOutOfRange):
		return ExitRigNumber
	}

	if step, ok := FailedStep(err); ok {
		return stepExitCode(step, err)
	}

	switch {
	case errors.Is(err, ErrUnknownModel),
		errors.Is(err, ErrUnknownRigType),
		errors.Is(err, ErrModelMismatch):
		return ExitModel
	case errors.Is(err, ErrInvalidAddress):
		return ExitAddress
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrInvalidDefinition):
		return ExitRegistry
	}
	if code, ok := internalExitCode(err); ok {
		return code
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return ExitBackend
	}
	return ExitInternal
}

func stepExitCode(step Step, err error) int {
	if code, ok := internalExitCode(err); ok {
		return code
	}
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		return ExitRegistry
	}
	timedOut := errors.Is(err, ErrAckTimeout)
	switch {
	case step == StepSendTime && timedOut:
		return ExitSetTimeTimeout
	case step == StepSendTime:
		return ExitSetTime
	case step == StepSendDate && timedOut:
		return ExitSetDateTimeout
	case step == StepSendDate:
		return ExitSetDate
	case step == StepSendUTCOffset && timedOut:
		return ExitSetOffsetTimeout
	case step == StepSendUTCOffset:
		return ExitSetOffset
	default:
		return ExitInternal
	}
}

func internalExitCode(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrInvalidHexDigit), errors.Is(err, ErrOddLength):
		return ExitEncoder, true
	case errors.Is(err, ErrFrameBufferAllocation):
		return ExitFrameBuffer, true
	default:
		return 0, false
	}
}
