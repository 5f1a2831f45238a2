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

import (
	"testing"
	"time"

	icomclock "github.com/ZaparooProject/go-icomclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	t.Parallel()

	v, err := ParseVariant(1)
	require.NoError(t, err)
	assert.Equal(t, VariantA, v)

	v, err = ParseVariant(2)
	require.NoError(t, err)
	assert.Equal(t, VariantB, v)

	for _, n := range []int{0, 3, -1} {
		_, err := ParseVariant(n)
		require.ErrorIs(t, err, ErrInvalidVariant)
	}
}

func TestVariant_Properties(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, VariantA.Slots())
	assert.Equal(t, 4, VariantB.Slots())
	assert.Equal(t, "OmniRig.OmniRigX", VariantA.ProgID())
	assert.Equal(t, "Omnirig2.OmniRigX", VariantB.ProgID())
	assert.Equal(t, icomclock.BackendOmniRig1, VariantA.BackendType())
	assert.Equal(t, icomclock.BackendOmniRig2, VariantB.BackendType())
	assert.Zero(t, VariantA.SettleDelay())
	assert.Equal(t, 3*time.Second, VariantB.SettleDelay())
	assert.Equal(t, "OmniRig 2", VariantB.String())
	assert.Equal(t, "Variant(7)", Variant(7).String())
}

func TestVariant_MapStatusIsTotal(t *testing.T) {
	t.Parallel()

	want := map[int32]icomclock.RigStatus{
		0: icomclock.StatusNotConfigured,
		1: icomclock.StatusDisabled,
		2: icomclock.StatusPortBusy,
		3: icomclock.StatusNotResponding,
		4: icomclock.StatusOnline,
	}
	for _, v := range []Variant{VariantA, VariantB} {
		for native := int32(-3); native <= 12; native++ {
			expected, ok := want[native]
			if !ok {
				expected = icomclock.StatusUnknown
			}
			assert.Equal(t, expected, v.MapStatus(native), "%s native %d", v, native)
		}
	}
}

func TestVariant_MapStatusUsesVariantTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		variant Variant
		native  int32
		want    icomclock.RigStatus
	}{
		{name: "A online", variant: VariantA, native: nativeOnline, want: icomclock.StatusOnline},
		{name: "B port busy", variant: VariantB, native: nativePortBusy, want: icomclock.StatusPortBusy},
		{name: "unknown variant online", variant: Variant(7), native: nativeOnline, want: icomclock.StatusUnknown},
		{name: "zero variant not configured", variant: 0, native: nativeNotConfigured, want: icomclock.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.variant.MapStatus(tt.native))
		})
	}

	require.Len(t, statusTables, 2)
	assert.NotNil(t, statusTables[VariantA])
	assert.NotNil(t, statusTables[VariantB])
}

func TestVersions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.20", SoftwareVersion(0x00010014))
	assert.Equal(t, "2.1", SoftwareVersion(0x00020001))
	assert.Equal(t, "1.15", InterfaceVersion(0x010F))
	assert.Equal(t, "0.0", InterfaceVersion(0))
}
