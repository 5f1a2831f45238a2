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
	"time"
)

// DefaultPollInterval is how often the clock is sampled while waiting for
// the top of the minute.
const DefaultPollInterval = 100 * time.Millisecond

// checkContext returns the context error if ctx is already done.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// sleepWithContext sleeps for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitForSecondZero polls clock until its seconds field reads zero and
// returns that instant converted by view.
func waitForSecondZero(
	ctx context.Context, clock Clock, view func(time.Time) time.Time, interval time.Duration,
) (time.Time, error) {
	for {
		if err := checkContext(ctx); err != nil {
			return time.Time{}, err
		}
		now := view(clock.Now())
		if now.Second() == 0 {
			return now, nil
		}
		if err := sleepWithContext(ctx, interval); err != nil {
			return time.Time{}, err
		}
	}
}
