// Copyright 2023 Greptime Team
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
	"fmt"
	"os"

	"github.com/imdario/mergo"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a YAML deployment document from path, then
// validates it. The full schema and parser are an external collaborator
// per the core engine's scope; this loader exists only because the CLI
// needs some way to turn a file on disk into a DeployConfig.
func LoadFile(path string) (*DeployConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw YAML bytes into a DeployConfig and validates it.
func Parse(data []byte) (*DeployConfig, error) {
	var cfg DeployConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	v := NewValidator()
	if _, err := v.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with the project's baseline
// settings. Scalar defaults that don't depend on a sibling field are
// expressed as a merge so new defaults only need adding to the template;
// the state path default stays conditional since it only makes sense
// alongside a local backend.
func applyDefaults(cfg *DeployConfig) error {
	defaults := DeployConfig{
		Project: Project{Env: "dev"},
		State:   StateBackend{Type: "local"},
	}
	if err := mergo.Merge(cfg, defaults); err != nil {
		return err
	}

	if cfg.State.Type == "local" && cfg.State.Path == "" {
		cfg.State.Path = "./.haldctl"
	}
	for i := range cfg.Pods {
		if cfg.Pods[i].GPU.Count == 0 {
			cfg.Pods[i].GPU.Count = 1
		}
	}
	return nil
}
