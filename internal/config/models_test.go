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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icomclock "github.com/ZaparooProject/go-icomclock"
)

func TestParseModels(t *testing.T) {
	t.Parallel()

	models, err := ParseModels([]byte(`
transceivers:
  - model: IC-7760
    address: "b2"
    commands:
      setDateCommand: "1a050001"
      setTimeCommand: "1A050002"
      setUtcOffsetCommand: "1A050004"
`))
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "IC-7760", models[0].Model)
	assert.Equal(t, "b2", models[0].Address)
	assert.Equal(t, "1A050004", models[0].Commands[icomclock.CommandSetUTCOffset])

	r, err := icomclock.DefaultRegistry().With(models...)
	require.NoError(t, err)
	addr, err := r.DefaultAddress("IC-7760")
	require.NoError(t, err)
	assert.Equal(t, "B2", addr)
}

func TestParseModels_SchemaErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty document", yaml: ``},
		{name: "no transceivers", yaml: `transceivers: []`},
		{name: "unknown top level key", yaml: "extra: 1\ntransceivers: []"},
		{
			name: "missing command",
			yaml: `
transceivers:
  - model: IC-X
    address: "10"
    commands:
      setDateCommand: "1A"
      setTimeCommand: "1B"
`,
		},
		{
			name: "unquoted numeric address",
			yaml: `
transceivers:
  - model: IC-X
    address: 10
    commands: {setDateCommand: "1A", setTimeCommand: "1B", setUtcOffsetCommand: "1C"}
`,
		},
		{
			name: "odd opcode",
			yaml: `
transceivers:
  - model: IC-X
    address: "10"
    commands: {setDateCommand: "1A0", setTimeCommand: "1B", setUtcOffsetCommand: "1C"}
`,
		},
		{name: "not yaml", yaml: "transceivers: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseModels([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrModelsFile)
		})
	}
}
