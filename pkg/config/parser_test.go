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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
project:
  name: proj
  env: prod
state:
  type: local
  path: ./state
pods:
  - name: web
    gpu:
      type: NVIDIA A40
      count: 1
    ports:
      - port: 8000
        protocol: http
    runtime:
      image: svc:1.0
`

func TestParseValidYAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "proj", cfg.Project.Name)
	assert.Len(t, cfg.Pods, 1)
	assert.Equal(t, 8000, cfg.Pods[0].Ports[0].Port)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
project:
  name: proj
state:
  type: local
pods:
  - name: web
    gpu:
      type: NVIDIA A40
      count: 1
    runtime:
      image: svc:1.0
`))
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Project.Env)
	assert.Equal(t, "./.haldctl", cfg.State.Path)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	_, err := Parse([]byte(`
project:
  name: Proj
state:
  type: local
pods: []
`))
	assert.Error(t, err)
}

func TestParsePortRoundTrip(t *testing.T) {
	p, err := ParsePort("8000/http")
	require.NoError(t, err)
	assert.Equal(t, 8000, p.Port)
	assert.Equal(t, "http", p.Protocol)
	assert.Equal(t, "8000/http", p.String())

	p2, err := ParsePort("22/tcp")
	require.NoError(t, err)
	assert.Equal(t, 22, p2.Port)
	assert.Equal(t, "tcp", p2.Protocol)

	_, err = ParsePort("invalid")
	assert.Error(t, err)
}
