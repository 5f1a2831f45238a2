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

import "context"

// replyHandler receives a CustomReply event: the rig number, the command
// that was sent and everything OmniRig read back for it.
type replyHandler func(rig int, command, reply []byte)

// automation is the OmniRigX server object.
type automation interface {
	SoftwareVersion() (int32, error)
	InterfaceVersion() (int32, error)
	// Rig returns the Rig1..Rig4 object
	Rig(slot int) (rigObject, error)
	// OnCustomReply connects h to the server's CustomReply event. The
	// returned function disconnects it.
	OnCustomReply(h replyHandler) (func() error, error)
	Release() error
}

// rigObject is one RigX object of the server.
type rigObject interface {
	Status() (int32, error)
	StatusText() (string, error)
	RigType() (string, error)
	// SendCustomCommand passes raw bytes to the rig. OmniRig waits for
	// replyLength bytes, or for replyEnd when it is not empty.
	SendCustomCommand(data []byte, replyLength int32, replyEnd string) error
	Release() error
}

// Dialer creates the server object for a COM class name. Failures wrap
// icomclock.ErrServiceInit or icomclock.ErrServiceCreate.
type Dialer func(ctx context.Context, progID string) (automation, error)
