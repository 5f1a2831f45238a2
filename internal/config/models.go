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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	icomclock "github.com/ZaparooProject/go-icomclock"
)

//go:embed schema/models-v1.json
var modelsSchemaJSON string

const modelsSchemaURL = "models-v1.json"

// ErrModelsFile is returned for unreadable or invalid models files.
var ErrModelsFile = errors.New("invalid models file")

type modelsFile struct {
	Transceivers []icomclock.Transceiver `yaml:"transceivers"`
}

var modelsSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(modelsSchemaURL, strings.NewReader(modelsSchemaJSON)); err != nil {
		panic(fmt.Sprintf("failed to add models schema: %v", err))
	}
	modelsSchema = compiler.MustCompile(modelsSchemaURL)
}

// LoadModels reads additional transceiver definitions from a YAML file.
func LoadModels(path string) ([]icomclock.Transceiver, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is an operator supplied option
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelsFile, err)
	}
	return ParseModels(data)
}

// ParseModels validates YAML model definitions against the models schema
// and decodes them.
func ParseModels(data []byte) ([]icomclock.Transceiver, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelsFile, err)
	}

	// round trip through JSON so the validator sees plain JSON values
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelsFile, err)
	}
	var instance any
	if err := json.Unmarshal(doc, &instance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelsFile, err)
	}
	if err := modelsSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelsFile, err)
	}

	var file modelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelsFile, err)
	}
	return file.Transceivers, nil
}
