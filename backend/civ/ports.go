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

package civ

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
	// Likely is set for adapters commonly used for CI-V
	Likely bool
}

// ListPorts enumerates serial ports, likely CI-V interfaces first.
func ListPorts() ([]PortInfo, error) {
	return listPorts(enumerator.GetDetailedPortsList)
}

func listPorts(fetch func() ([]*enumerator.PortDetails, error)) ([]PortInfo, error) {
	details, err := fetch()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		port := PortInfo{
			Name:         d.Name,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
			IsUSB:        d.IsUSB,
		}
		if d.IsUSB && d.VID != "" && d.PID != "" {
			port.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		port.Likely = isLikelyCIV(&port)
		ports = append(ports, port)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Likely != ports[j].Likely {
			return ports[i].Likely
		}
		return ports[i].Name < ports[j].Name
	})
	return ports, nil
}

// isLikelyCIV checks if a serial port is likely an Icom USB port or a CI-V
// level converter.
func isLikelyCIV(port *PortInfo) bool {
	knownAdapters := []string{
		"10C4:EA60", // Silicon Labs CP210x, built into Icom USB rigs
		"0403:6001", // FTDI FT232, CT-17 style cables
		"067B:2303", // Prolific PL2303
		"1A86:7523", // QinHeng CH340
	}

	for _, known := range knownAdapters {
		if port.VIDPID == known {
			return true
		}
	}

	lowerProduct := strings.ToLower(port.Product)
	lowerSerial := strings.ToLower(port.SerialNumber)
	for _, keyword := range []string{"icom", "ic-", "ci-v"} {
		if strings.Contains(lowerProduct, keyword) || strings.Contains(lowerSerial, keyword) {
			return true
		}
	}

	return false
}
