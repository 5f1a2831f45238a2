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
	"fmt"
	"time"
)

// Clock supplies the current time. The sync uses it for alignment and for
// the time and date payloads.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns the host clock.
func SystemClock() Clock {
	return systemClock{}
}

// BiasFunc returns the UTC bias in minutes (UTC minus local time) in effect
// at the given instant.
type BiasFunc func(at time.Time) (int, error)

// EncodeTime formats the HHMM time payload.
func EncodeTime(t time.Time) string {
	return fmt.Sprintf("%02d%02d", t.Hour(), t.Minute())
}

// EncodeDate formats the YYYYMMDD date payload.
func EncodeDate(t time.Time) string {
	return fmt.Sprintf("%04d%02d%02d", t.Year(), int(t.Month()), t.Day())
}

// EncodeUTCOffset formats the HHMM plus flag UTC offset payload.
//
// bias follows the Windows convention: minutes to add to local time to get
// UTC, so zones west of Greenwich have a positive bias. The flag is 01 for
// a positive bias and 00 otherwise; reversed inverts the flag. Both signs
// share the same zero padded magnitude.
func EncodeUTCOffset(bias int, reversed bool) string {
	magnitude := bias
	if magnitude < 0 {
		magnitude = -magnitude
	}
	behind := bias > 0
	if reversed {
		behind = !behind
	}
	flag := "00"
	if behind {
		flag = "01"
	}
	return fmt.Sprintf("%02d%02d%s", magnitude/60, magnitude%60, flag)
}

// zoneBias derives the bias from the zone of t.
func zoneBias(t time.Time) int {
	_, offset := t.Zone()
	return -offset / 60
}
