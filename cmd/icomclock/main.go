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

// Command icomclock sets the clock, date and UTC offset of an Icom
// transceiver from the computer's clock, through OmniRig or a direct CI-V
// serial port.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	icomclock "github.com/ZaparooProject/go-icomclock"
	"github.com/ZaparooProject/go-icomclock/backend/civ"
	"github.com/ZaparooProject/go-icomclock/backend/omnirig"
	"github.com/ZaparooProject/go-icomclock/internal/config"
)

const banner = "" +
	" ::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::\n" +
	" ::                                                                    ::\n" +
	" ::   icomclock  -  set the Icom transceiver clock to your computer's  ::\n" +
	" ::                 time, date and UTC offset                          ::\n" +
	" ::                                                                    ::\n" +
	" ::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::::\n\n"

// app holds the process dependencies so tests can swap backends and the
// clock.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	newOmniRig func(variant omnirig.Variant) icomclock.Connector
	newSerial  func(opts *config.Options, idAddress string) icomclock.Connector
	listPorts  func() ([]civ.PortInfo, error)
	program    string
	syncOpts   []icomclock.SyncOption
}

func defaultApp() *app {
	return &app{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		program: filepath.Base(os.Args[0]),
		newOmniRig: func(variant omnirig.Variant) icomclock.Connector {
			return omnirig.New(variant)
		},
		newSerial: func(opts *config.Options, idAddress string) icomclock.Connector {
			return civ.New(opts.Port,
				civ.WithBaudRate(opts.BaudRate),
				civ.WithRegistry(opts.Registry),
				civ.WithAddress(idAddress))
		},
		listPorts: civ.ListPorts,
	}
}

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return defaultApp().run(ctx, os.Args[1:])
}

// run executes one invocation and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	opts, err := config.Load(args)
	if err != nil {
		a.errorf("ERROR: %v\n\n", err)
		_, _ = fmt.Fprint(a.stderr, config.Usage(a.program, icomclock.DefaultRegistry().Models()))
		return icomclock.ExitCode(err)
	}

	if opts.Help {
		_, _ = fmt.Fprint(a.stdout, banner)
		_, _ = fmt.Fprint(a.stdout, config.Usage(a.program, icomclock.DefaultRegistry().Models()))
		return icomclock.ExitSuccess
	}

	if !opts.Quiet {
		_, _ = fmt.Fprint(a.stdout, banner)
	}
	if opts.Debug {
		icomclock.SetDebugEnabled(true)
	}
	if opts.LogFile != "" {
		path, err := icomclock.InitSessionLog(opts.LogFile)
		if err != nil {
			a.errorf("ERROR: %v\n", err)
			return icomclock.ExitConfig
		}
		defer func() { _ = icomclock.CloseSessionLog() }()
		a.infof(opts, "Session log: %s\n\n", path)
	}
	icomclock.Debugf("options: %+v", *opts)

	if opts.ListPorts {
		return a.printPorts()
	}

	err = a.sync(ctx, opts)
	if err != nil {
		a.report(err)
	}
	return icomclock.ExitCode(err)
}

// sync connects, resolves the model and address and runs the clock sync.
func (a *app) sync(ctx context.Context, opts *config.Options) error {
	connector, err := a.connector(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := connector.Close(); err != nil {
			icomclock.Debugf("close connector: %v", err)
		}
	}()

	if err := icomclock.ValidateSlot(connector.Type(), opts.Rig, connector.Slots()); err != nil {
		return err
	}

	if !opts.Quiet {
		if provider, ok := connector.(icomclock.ServiceInfoProvider); ok {
			info, err := provider.ServiceInfo(ctx)
			if err != nil {
				return err
			}
			a.printServiceInfo(info)
		}
	}

	conn, err := connector.Connect(ctx, opts.Rig)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			a.errorf("ERROR: %v\n", err)
		}
	}()

	model, err := resolveModel(opts.Registry, opts.Model, conn.RigType(), opts.Force)
	if err != nil {
		return err
	}
	address := opts.Address
	if address == "" {
		if address, err = opts.Registry.DefaultAddress(model); err != nil {
			return err
		}
	}

	if !opts.Quiet {
		a.printOptions(opts, model, address)
	}

	var out io.Writer
	if !opts.Quiet {
		out = a.stdout
	}
	syncOpts := append([]icomclock.SyncOption{
		icomclock.WithRegistry(opts.Registry),
		icomclock.WithReversedTimeZone(opts.Reversed),
		icomclock.WithOutput(out),
	}, a.syncOpts...)

	result, err := icomclock.NewSyncer(conn, model, address, syncOpts...).Run(ctx)
	if err != nil {
		return err
	}
	icomclock.Debugf("clock sync done: %d frames, bias %d", result.FramesSent, result.Bias)
	return nil
}

// connector picks the backend from the options.
func (a *app) connector(opts *config.Options) (icomclock.Connector, error) {
	if opts.DirectSerial() {
		idAddr := opts.Address
		if idAddr == "" && opts.Model != "" {
			addr, err := opts.Registry.DefaultAddress(opts.Model)
			if err != nil {
				return nil, err
			}
			idAddr = addr
		}
		return a.newSerial(opts, idAddr), nil
	}

	variant, err := omnirig.ParseVariant(opts.OmniRig)
	if err != nil {
		return nil, icomclock.NewConnectionError(icomclock.BackendOmniRig1, "select", 0, err)
	}
	return a.newOmniRig(variant), nil
}

// resolveModel returns the model to use. Without -m it is detected from the
// rig type; with -m the rig type must agree unless force is set.
func resolveModel(registry *icomclock.Registry, model, rigType string, force bool) (string, error) {
	if model == "" {
		if rigType == "" {
			return "", fmt.Errorf("%w: the rig did not report its type, select the model with -m",
				icomclock.ErrUnknownRigType)
		}
		return registry.DetectModel(rigType)
	}
	if force || rigType == "" {
		return model, nil
	}

	detected, err := registry.DetectModel(rigType)
	if err != nil || detected != model {
		return "", fmt.Errorf("%w: %s selected but the rig is %q. "+
			"This check can be overridden with -f, but be careful",
			icomclock.ErrModelMismatch, model, rigType)
	}
	return model, nil
}

func (a *app) printServiceInfo(info *icomclock.ServiceInfo) {
	_, _ = fmt.Fprintf(a.stdout, "OmniRig Software Version:  %s\n", info.SoftwareVersion)
	_, _ = fmt.Fprintf(a.stdout, "OmniRig Interface Version: %s\n", info.InterfaceVersion)
	for _, rig := range info.Rigs {
		_, _ = fmt.Fprintf(a.stdout, "Rig %d\n", rig.Slot)
		_, _ = fmt.Fprintf(a.stdout, "    Rig Type: %s\n", rig.RigType)
		status := rig.StatusText
		if status == "" {
			status = rig.Status.String()
		}
		_, _ = fmt.Fprintf(a.stdout, "    Status:   %s\n", status)
	}
	_, _ = fmt.Fprintln(a.stdout)
}

func (a *app) printOptions(opts *config.Options, model, address string) {
	_, _ = fmt.Fprint(a.stdout, "Program Options:\n")
	if opts.DirectSerial() {
		_, _ = fmt.Fprintf(a.stdout, "    Using serial port: %s at %d baud\n", opts.Port, opts.BaudRate)
	} else {
		author := "1 (by VE3NEA)"
		if opts.OmniRig == int(omnirig.VariantB) {
			author = "2 (by HB9RYZ)"
		}
		_, _ = fmt.Fprintf(a.stdout, "    Using OmniRig version: %s\n", author)
		_, _ = fmt.Fprintf(a.stdout, "    Using OmniRig rig: %d\n", opts.Rig)
	}
	_, _ = fmt.Fprintf(a.stdout, "    Using transceiver model: %s\n", model)
	_, _ = fmt.Fprintf(a.stdout, "    Using transceiver address: %s\n", address)
	reversed := "no"
	if opts.Reversed {
		reversed = "yes"
	}
	_, _ = fmt.Fprintf(a.stdout, "    Reverse clock and UTC time: %s\n\n", reversed)
}

func (a *app) printPorts() int {
	ports, err := a.listPorts()
	if err != nil {
		a.errorf("ERROR: %v\n", err)
		return icomclock.ExitBackend
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No serial ports found")
		return icomclock.ExitSuccess
	}
	for _, port := range ports {
		line := port.Name
		if port.VIDPID != "" {
			line += "  " + port.VIDPID
		}
		if port.Product != "" {
			line += "  " + port.Product
		}
		if port.Likely {
			line += "  (likely CI-V)"
		}
		_, _ = fmt.Fprintln(a.stdout, line)
	}
	return icomclock.ExitSuccess
}

// report prints the error that ends the run. Messages are printed even
// with -q.
func (a *app) report(err error) {
	if icomclock.IsInterrupted(err) {
		a.errorf("\nInterrupted\n")
		return
	}
	a.errorf("ERROR: %v\n", err)
	if icomclock.IsConfigurationError(err) {
		a.errorf("Run %s -h for the valid options and transceiver models\n", a.program)
	}
	if step, ok := icomclock.FailedStep(err); ok {
		icomclock.Debugf("failed step: %s", step)
	}
}

func (a *app) infof(opts *config.Options, format string, args ...any) {
	if opts.Quiet {
		return
	}
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stderr, format, args...)
}
