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
	"sort"
	"strings"

	"github.com/ZaparooProject/go-icomclock/internal/frame"
)

// Logical command names understood by every registered transceiver.
const (
	CommandSetDate      = "setDateCommand"
	CommandSetTime      = "setTimeCommand"
	CommandSetUTCOffset = "setUtcOffsetCommand"
)

// requiredCommands lists the commands every model must define
var requiredCommands = []string{CommandSetDate, CommandSetTime, CommandSetUTCOffset}

// Transceiver describes one Icom model: its factory CI-V address, the
// opcode for each clock command and the OmniRig rig types that identify it.
type Transceiver struct {
	Commands map[string]string `yaml:"commands"`
	Model    string            `yaml:"model"`
	Address  string            `yaml:"address"`
	RigTypes []string          `yaml:"rig_types"`
}

func (t Transceiver) clone() Transceiver {
	out := Transceiver{
		Model:    t.Model,
		Address:  t.Address,
		Commands: make(map[string]string, len(t.Commands)),
		RigTypes: append([]string(nil), t.RigTypes...),
	}
	for k, v := range t.Commands {
		out.Commands[k] = v
	}
	return out
}

// Opcode returns the opcode hex for a command name.
func (t Transceiver) Opcode(command string) (string, bool) {
	op, ok := t.Commands[command]
	return op, ok
}

var builtinTransceivers = []Transceiver{
	{
		Model: "IC-705", Address: "A4",
		Commands: commands("1A050165", "1A050166", "1A050170"),
		RigTypes: []string{"IC-705", "IC-705-DATA"},
	},
	{
		Model: "IC-7100", Address: "88",
		Commands: commands("1A050120", "1A050121", "1A050123"),
		RigTypes: []string{"IC-7100", "IC-7100-DATA-FIL1", "IC-7100e4", "IC-7100e4-DATA"},
	},
	{
		Model: "IC-7300", Address: "94",
		Commands: commands("1A050094", "1A050095", "1A050096"),
		RigTypes: []string{"IC-7300", "IC-7300-DATA"},
	},
	{
		Model: "IC-7600", Address: "7A",
		Commands: commands("1A050053", "1A050054", "1A050056"),
		RigTypes: []string{"IC-7600", "IC-7600v2", "IC-7600v2-DATA"},
	},
	{
		Model: "IC-7610", Address: "98",
		Commands: commands("1A050158", "1A050159", "1A050162"),
		RigTypes: []string{"IC-7610", "IC-7610-DATA", "IC-7610-DATA-FIL1"},
	},
	{
		Model: "IC-7700", Address: "74",
		Commands: commands("1A050058", "1A050059", "1A050061"),
		RigTypes: []string{"IC-7700", "IC-7700v2", "IC-7700v2-DATA"},
	},
	{
		Model: "IC-7850", Address: "8E",
		Commands: commands("1A050095", "1A050096", "1A050099"),
		RigTypes: []string{"IC-7850", "IC-7850-DATA", "IC-7850-DATA-FIL1"},
	},
	{
		Model: "IC-7851", Address: "8E",
		Commands: commands("1A050095", "1A050096", "1A050099"),
		RigTypes: []string{"IC-7851", "IC-7851-DATA", "IC-7851-DATA-FIL1"},
	},
	{
		Model: "IC-9700", Address: "A2",
		Commands: commands("1A050179", "1A050180", "1A050184"),
		RigTypes: []string{"IC-9700", "IC-9700-DATA", "IC-9700-SAT"},
	},
	{
		Model: "IC-R8600", Address: "96",
		Commands: commands("1A050131", "1A050132", "1A050135"),
		RigTypes: []string{"IC-R8600"},
	},
	{
		Model: "IC-R9500", Address: "72",
		Commands: commands("1A050048", "1A050049", "1A050051"),
		RigTypes: []string{"IC-R9500"},
	},
}

func commands(date, clock, offset string) map[string]string {
	return map[string]string{
		CommandSetDate:      date,
		CommandSetTime:      clock,
		CommandSetUTCOffset: offset,
	}
}

type rigTypeAlias struct {
	alias string
	model string
}

// Registry maps transceiver models to their CI-V command opcodes.
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	models  map[string]Transceiver
	names   []string
	aliases []rigTypeAlias
}

var defaultRegistry = mustRegistry(builtinTransceivers...)

func mustRegistry(models ...Transceiver) *Registry {
	r, err := NewRegistry(models...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the registry of built-in Icom models.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry builds a registry from transceiver definitions. Every model
// must define a valid address and all three clock commands. Later
// definitions replace earlier ones with the same model id.
func NewRegistry(models ...Transceiver) (*Registry, error) {
	r := &Registry{models: make(map[string]Transceiver, len(models))}
	for _, m := range models {
		normalized, err := validateTransceiver(m)
		if err != nil {
			return nil, err
		}
		r.models[strings.ToUpper(normalized.Model)] = normalized
	}
	r.index()
	return r, nil
}

// With returns a new registry holding the receiver's models plus extra.
func (r *Registry) With(extra ...Transceiver) (*Registry, error) {
	all := make([]Transceiver, 0, len(r.models)+len(extra))
	for _, name := range r.names {
		all = append(all, r.models[strings.ToUpper(name)])
	}
	all = append(all, extra...)
	return NewRegistry(all...)
}

func (r *Registry) index() {
	r.names = make([]string, 0, len(r.models))
	r.aliases = r.aliases[:0]
	for _, m := range r.models {
		r.names = append(r.names, m.Model)
		r.aliases = append(r.aliases, rigTypeAlias{alias: m.Model, model: m.Model})
		for _, rt := range m.RigTypes {
			r.aliases = append(r.aliases, rigTypeAlias{alias: rt, model: m.Model})
		}
	}
	sort.Strings(r.names)
	// longest alias first so prefix matching picks the most specific model
	sort.Slice(r.aliases, func(i, j int) bool {
		if len(r.aliases[i].alias) != len(r.aliases[j].alias) {
			return len(r.aliases[i].alias) > len(r.aliases[j].alias)
		}
		return r.aliases[i].alias < r.aliases[j].alias
	})
}

func validateTransceiver(t Transceiver) (Transceiver, error) {
	t = t.clone()
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		return t, &RegistryError{Err: fmt.Errorf("%w: empty model id", ErrInvalidDefinition)}
	}

	addr, err := NormalizeAddress(t.Address)
	if err != nil {
		return t, &RegistryError{Model: t.Model, Err: fmt.Errorf("%w: %w", ErrInvalidDefinition, err)}
	}
	t.Address = addr

	for _, cmd := range requiredCommands {
		op, ok := t.Commands[cmd]
		if !ok {
			return t, &RegistryError{Model: t.Model, Command: cmd, Err: ErrUnknownCommand}
		}
		op = strings.ToUpper(op)
		if _, err := frame.HexToBytes(op); err != nil || op == "" {
			return t, &RegistryError{
				Model: t.Model, Command: cmd,
				Err: fmt.Errorf("%w: opcode %q", ErrInvalidDefinition, op),
			}
		}
		t.Commands[cmd] = op
	}
	return t, nil
}

// Lookup returns a copy of the definition for model.
func (r *Registry) Lookup(model string) (Transceiver, error) {
	t, ok := r.models[strings.ToUpper(strings.TrimSpace(model))]
	if !ok {
		return Transceiver{}, &RegistryError{Model: model, Err: ErrUnknownModel}
	}
	return t.clone(), nil
}

// Models returns the registered model ids in sorted order.
func (r *Registry) Models() []string {
	return append([]string(nil), r.names...)
}

// DefaultAddress returns the factory CI-V address of model.
func (r *Registry) DefaultAddress(model string) (string, error) {
	t, err := r.Lookup(model)
	if err != nil {
		return "", err
	}
	return t.Address, nil
}

// DetectModel maps an OmniRig rig type such as "IC-7300-DATA" to a
// registered model. An exact alias match wins, otherwise the longest alias
// that prefixes the rig type followed by a dash.
func (r *Registry) DetectModel(rigType string) (string, error) {
	rigType = strings.TrimSpace(rigType)
	for _, a := range r.aliases {
		if strings.EqualFold(a.alias, rigType) {
			return a.model, nil
		}
	}
	upper := strings.ToUpper(rigType)
	for _, a := range r.aliases {
		if strings.HasPrefix(upper, strings.ToUpper(a.alias)+"-") {
			return a.model, nil
		}
	}
	return "", &RegistryError{Model: rigType, Err: ErrUnknownRigType}
}

// Resolve assembles the hex frame for command on model. An empty address
// selects the model's default address. The payload is appended verbatim.
func (r *Registry) Resolve(model, command, address, payload string) (string, error) {
	t, err := r.Lookup(model)
	if err != nil {
		return "", err
	}
	opcode, ok := t.Opcode(command)
	if !ok {
		return "", &RegistryError{Model: t.Model, Command: command, Err: ErrUnknownCommand}
	}

	addr := t.Address
	if address != "" {
		addr, err = NormalizeAddress(address)
		if err != nil {
			return "", &RegistryError{Model: t.Model, Command: command, Err: err}
		}
	}

	var sb strings.Builder
	sb.Grow(len(frame.PreambleHex) + 4 + len(opcode) + len(payload) + len(frame.PostambleHex))
	_, _ = sb.WriteString(frame.PreambleHex)
	_, _ = sb.WriteString(addr)
	_, _ = sb.WriteString(frame.ControllerAddressHex)
	_, _ = sb.WriteString(opcode)
	_, _ = sb.WriteString(payload)
	_, _ = sb.WriteString(frame.PostambleHex)
	return sb.String(), nil
}

// NormalizeAddress validates a two digit hex CI-V address and returns it
// in upper case.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !frame.IsHexByte(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return strings.ToUpper(address), nil
}
