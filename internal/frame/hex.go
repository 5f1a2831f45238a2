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
	"errors"
	"fmt"
	"strings"
)

// Hex codec errors
var (
	ErrInvalidHexDigit = errors.New("invalid hex digit")
	ErrOddLength       = errors.New("odd length hex input")
)

const hexDigits = "0123456789ABCDEF"

// nibble decodes a single hex character
func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

// HexToBytes decodes a textual hex command two characters at a time.
//
// Input must have an even number of characters, all in [0-9a-fA-F]. A dangling
// half byte is rejected with ErrOddLength rather than dropped. On error no
// partial output is returned.
func HexToBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: %d characters", ErrOddLength, len(s))
	}

	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		hi, ok := nibble(s[i])
		if !ok {
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidHexDigit, s[i], i)
		}
		lo, ok := nibble(s[i+1])
		if !ok {
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidHexDigit, s[i+1], i+1)
		}
		out[i/2] = hi<<4 | lo
	}
	return out, nil
}

// BytesToHex encodes bytes as upper-case hex text without separators.
func BytesToHex(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 2)
	for _, b := range data {
		_ = sb.WriteByte(hexDigits[b>>4])
		_ = sb.WriteByte(hexDigits[b&0x0F])
	}
	return sb.String()
}

// IsHexByte reports whether s is exactly two hex characters.
func IsHexByte(s string) bool {
	if len(s) != 2 {
		return false
	}
	_, ok1 := nibble(s[0])
	_, ok2 := nibble(s[1])
	return ok1 && ok2
}

// FormatHex formats a byte slice as space-separated hex values
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
	}
	return strings.Join(parts, " ")
}
