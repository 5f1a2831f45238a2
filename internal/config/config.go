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

// Package config turns command line flags, environment variables and an
// optional YAML file into validated program options.
package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	icomclock "github.com/ZaparooProject/go-icomclock"
)

// EnvPrefix prefixes environment overrides, e.g. ICOMCLOCK_MODEL.
const EnvPrefix = "ICOMCLOCK"

// Defaults
const (
	DefaultRig      = 1
	DefaultOmniRig  = 1
	DefaultBaudRate = 19200
)

// Option keys, shared by flags, environment and config file
const (
	KeyReverse   = "reverse"
	KeyRig       = "rig"
	KeyModel     = "model"
	KeyAddress   = "address"
	KeyOmniRig   = "omnirig"
	KeyQuiet     = "quiet"
	KeyHelp      = "help"
	KeyForce     = "force"
	KeyPort      = "port"
	KeyBaud      = "baud"
	KeyConfig    = "config"
	KeyModels    = "models"
	KeyLogFile   = "log-file"
	KeyDebug     = "debug"
	KeyListPorts = "list-ports"
)

// Option errors
var (
	ErrInvalidOption  = errors.New("invalid option")
	ErrInvalidRig     = errors.New("invalid rig number")
	ErrInvalidOmniRig = errors.New("invalid OmniRig version")
	ErrInvalidBaud    = errors.New("invalid baud rate")
	ErrConfigFile     = errors.New("cannot read config file")
)

// OptionError is an option problem together with the exit code it maps to.
type OptionError struct {
	Err    error
	Option string
	Code   int
}

func (e *OptionError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("option %s: %v", e.Option, e.Err)
	}
	return e.Err.Error()
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// ExitCode implements icomclock.ExitCoder
func (e *OptionError) ExitCode() int {
	return e.Code
}

func optionError(option string, code int, err error) *OptionError {
	return &OptionError{Option: option, Code: code, Err: err}
}

// Options is the resolved program configuration.
type Options struct {
	// Registry holds the built-in models plus any loaded from ModelsFile
	Registry *icomclock.Registry

	Model      string
	Address    string
	Port       string
	ConfigFile string
	ModelsFile string
	LogFile    string
	Rig        int
	OmniRig    int
	BaudRate   int
	Reversed   bool
	Quiet      bool
	Help       bool
	Force      bool
	Debug      bool
	ListPorts  bool
}

// DirectSerial reports whether CI-V is sent straight to a serial port
// instead of through OmniRig.
func (o *Options) DirectSerial() bool {
	return o.Port != ""
}

// NewFlagSet defines the command line flags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	fs.SetOutput(io.Discard)

	fs.BoolP(KeyReverse, "u", false,
		"Reverse local and UTC time (show UTC as clock and local time as on UTC display)")
	fs.StringP(KeyRig, "r", strconv.Itoa(DefaultRig), "The selected rig in OmniRig")
	fs.StringP(KeyModel, "m", "", "The Icom transceiver model (default: auto detect from the rig type)")
	fs.StringP(KeyAddress, "a", "", "The Icom transceiver address in hex (default: model default address)")
	fs.StringP(KeyOmniRig, "o", strconv.Itoa(DefaultOmniRig),
		"OmniRig version: 1 = original OmniRig by VE3NEA, 2 = updated OmniRig by HB9RYZ")
	fs.BoolP(KeyForce, "f", false, "Skip the check that the model matches the rig type")
	fs.StringP(KeyPort, "p", "", "Send CI-V directly to this serial port instead of OmniRig")
	fs.IntP(KeyBaud, "b", DefaultBaudRate, "Serial baud rate for -p")
	fs.StringP(KeyConfig, "c", "", "YAML configuration file")
	fs.String(KeyModels, "", "YAML file with additional transceiver definitions")
	fs.String(KeyLogFile, "", "Write a rotated debug session log to this file")
	fs.BoolP(KeyDebug, "d", false, "Print debug output")
	fs.BoolP(KeyListPorts, "l", false, "List serial ports and exit")
	fs.BoolP(KeyQuiet, "q", false, "Quiet, don't output messages")
	fs.BoolP(KeyHelp, "h", false, "Show this help message")
	return fs
}

func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(KeyRig, strconv.Itoa(DefaultRig))
	v.SetDefault(KeyOmniRig, strconv.Itoa(DefaultOmniRig))
	v.SetDefault(KeyBaud, DefaultBaudRate)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// Load parses args (without the program name) and resolves the options.
// Precedence is flags, then ICOMCLOCK_* environment variables, then the
// config file, then defaults.
func Load(args []string) (*Options, error) {
	fs := NewFlagSet("icomclock")
	if err := fs.Parse(args); err != nil {
		return nil, optionError("", icomclock.ExitInvalidOption, fmt.Errorf("%w: %w", ErrInvalidOption, err))
	}
	if fs.NArg() > 0 {
		return nil, optionError("", icomclock.ExitInvalidOption,
			fmt.Errorf("%w: unexpected argument %q", ErrInvalidOption, fs.Arg(0)))
	}

	v, err := newViper(fs)
	if err != nil {
		return nil, optionError("", icomclock.ExitConfig, err)
	}

	opts := &Options{
		Help:       v.GetBool(KeyHelp),
		ConfigFile: v.GetString(KeyConfig),
	}
	if opts.Help {
		return opts, nil
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, optionError(KeyConfig, icomclock.ExitConfig, fmt.Errorf("%w: %w", ErrConfigFile, err))
		}
	}

	opts.Reversed = v.GetBool(KeyReverse)
	opts.Quiet = v.GetBool(KeyQuiet)
	opts.Force = v.GetBool(KeyForce)
	opts.Debug = v.GetBool(KeyDebug)
	opts.ListPorts = v.GetBool(KeyListPorts)
	opts.Port = strings.TrimSpace(v.GetString(KeyPort))
	opts.ModelsFile = v.GetString(KeyModels)
	opts.LogFile = v.GetString(KeyLogFile)

	if err := resolve(v, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func resolve(v *viper.Viper, opts *Options) error {
	rig, err := parseRig(v.GetString(KeyRig))
	if err != nil {
		return optionError(KeyRig, icomclock.ExitRigNumber, err)
	}
	opts.Rig = rig

	switch raw := strings.TrimSpace(v.GetString(KeyOmniRig)); raw {
	case "1", "2":
		opts.OmniRig = int(raw[0] - '0')
	default:
		return optionError(KeyOmniRig, icomclock.ExitBackend, fmt.Errorf("%w: %q", ErrInvalidOmniRig, raw))
	}

	opts.BaudRate = v.GetInt(KeyBaud)
	if opts.BaudRate <= 0 {
		return optionError(KeyBaud, icomclock.ExitInvalidOption,
			fmt.Errorf("%w: %q", ErrInvalidBaud, v.GetString(KeyBaud)))
	}

	opts.Registry = icomclock.DefaultRegistry()
	if opts.ModelsFile != "" {
		extra, err := LoadModels(opts.ModelsFile)
		if err != nil {
			return optionError(KeyModels, icomclock.ExitConfig, err)
		}
		if opts.Registry, err = opts.Registry.With(extra...); err != nil {
			return optionError(KeyModels, icomclock.ExitConfig, err)
		}
	}

	if model := strings.TrimSpace(v.GetString(KeyModel)); model != "" {
		t, err := opts.Registry.Lookup(model)
		if err != nil {
			return optionError(KeyModel, icomclock.ExitModel, err)
		}
		opts.Model = t.Model
	}

	if addr := v.GetString(KeyAddress); addr != "" {
		opts.Address, err = icomclock.NormalizeAddress(addr)
		if err != nil {
			return optionError(KeyAddress, icomclock.ExitAddress, err)
		}
	}
	return nil
}

// parseRig accepts decimal digits only
func parseRig(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidRig)
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRig, raw)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRig, raw)
	}
	return n, nil
}

// Usage renders the help text.
func Usage(program string, models []string) string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Usage: %s [options]\nOptions:\n", program)
	_, _ = sb.WriteString(NewFlagSet(program).FlagUsages())
	_, _ = fmt.Fprintf(&sb, "\nValid models: %s\n", strings.Join(models, ", "))
	_, _ = fmt.Fprintf(&sb, "Every option can also be set with a %s_<OPTION> environment variable.\n", EnvPrefix)
	return sb.String()
}
