//go:build windows

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

	"golang.org/x/sys/windows"
)

// timeZoneIDDaylight is TIME_ZONE_ID_DAYLIGHT from winbase.h
const timeZoneIDDaylight = 2

// LocalUTCBias reads the system time zone bias, adding the daylight bias
// while daylight saving time is in effect. t is unused; Windows reports
// the bias for the current instant.
func LocalUTCBias(_ time.Time) (int, error) {
	var tzi windows.Timezoneinformation
	rc, err := windows.GetTimeZoneInformation(&tzi)
	if err != nil {
		return 0, fmt.Errorf("failed to read time zone information: %w", err)
	}
	bias := int(tzi.Bias)
	if rc == timeZoneIDDaylight {
		bias += int(tzi.DaylightBias)
	} else {
		bias += int(tzi.StandardBias)
	}
	return bias, nil
}
