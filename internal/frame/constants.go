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

package frame

// Frame markers. Every CI-V frame starts with two preamble bytes and ends
// with a single postamble byte.
const (
	Preamble  = 0xFE
	Postamble = 0xFD
)

// Hex text forms of the frame markers, as used by the command registry.
const (
	PreambleHex  = "FEFE"
	PostambleHex = "FD"
)

// ControllerAddress is the CI-V address of the controlling computer.
const (
	ControllerAddress    = 0xE0
	ControllerAddressHex = "E0"
)

// Status bytes a transceiver answers with after a set command
const (
	ReplyOK = 0xFB
	ReplyNG = 0xFA
)

// Frame size limits
const (
	// MinFrameLength is preamble(2) + to + from + command + postamble.
	MinFrameLength = 6
	// OKReplyLength is the size of the FE FE E0 xx FB FD acknowledgment.
	OKReplyLength = 6
	// TxBufferSize is the capacity of a transmit buffer. Clock-set frames are
	// at most 13 bytes long.
	TxBufferSize = 20
)
