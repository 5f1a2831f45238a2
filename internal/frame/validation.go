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

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned for byte sequences that are not CI-V frames.
var ErrMalformedFrame = errors.New("malformed CI-V frame")

// Message is a decoded CI-V frame.
type Message struct {
	// Body holds the command, sub command and data bytes
	Body []byte
	To   byte
	From byte
}

// IsOK reports whether the message is a bare FB acknowledgment.
func (m Message) IsOK() bool {
	return len(m.Body) == 1 && m.Body[0] == ReplyOK
}

// IsNG reports whether the message is a bare FA rejection.
func (m Message) IsNG() bool {
	return len(m.Body) == 1 && m.Body[0] == ReplyNG
}

// Build assembles a frame addressed from one station to another.
func Build(to, from byte, body ...byte) []byte {
	out := make([]byte, 0, MinFrameLength-1+len(body))
	out = append(out, Preamble, Preamble, to, from)
	out = append(out, body...)
	return append(out, Postamble)
}

// OKReply returns the acknowledgment a transceiver sends to the controller
// after accepting a set command.
func OKReply(transceiver byte) []byte {
	return Build(ControllerAddress, transceiver, ReplyOK)
}

// Validate checks the preamble, postamble and minimum length of a frame.
func Validate(data []byte) error {
	if len(data) < MinFrameLength {
		return fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(data))
	}
	if data[0] != Preamble || data[1] != Preamble {
		return fmt.Errorf("%w: missing preamble", ErrMalformedFrame)
	}
	if data[len(data)-1] != Postamble {
		return fmt.Errorf("%w: missing postamble", ErrMalformedFrame)
	}
	if bytes.IndexByte(data[2:len(data)-1], Postamble) >= 0 {
		return fmt.Errorf("%w: embedded postamble", ErrMalformedFrame)
	}
	return nil
}

// Parse validates and decodes a single frame.
func Parse(data []byte) (Message, error) {
	if err := Validate(data); err != nil {
		return Message{}, err
	}
	body := make([]byte, len(data)-5)
	copy(body, data[4:len(data)-1])
	return Message{To: data[2], From: data[3], Body: body}, nil
}

// Next extracts the first complete frame from a receive buffer. Bytes before
// the preamble are discarded. It returns the frame, the unconsumed remainder
// and whether a frame was found.
func Next(buf []byte) (msg, rest []byte, ok bool) {
	start := bytes.Index(buf, []byte{Preamble, Preamble})
	if start < 0 {
		return nil, buf, false
	}
	// collapse runs of preamble bytes so FE FE FE ... is tolerated
	for start+2 < len(buf) && buf[start+2] == Preamble {
		start++
	}
	end := bytes.IndexByte(buf[start:], Postamble)
	if end < 0 {
		return nil, buf[start:], false
	}
	end += start + 1
	return buf[start:end], buf[end:], true
}
