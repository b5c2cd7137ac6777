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
)

func TestIsValidNameAccepts(t *testing.T) {
	for _, name := range []string{"pod", "pod-1", "a1-b2-c3", "pod-text", "my-pod-123", "a", "test"} {
		assert.True(t, IsValidName(name), "expected %q to be valid", name)
	}
}

func TestIsValidNameRejects(t *testing.T) {
	for _, name := range []string{"", "Pod", "1pod", "pod_", "pod-", "pod--x", "pod_text", "123-pod"} {
		assert.False(t, IsValidName(name), "expected %q to be invalid", name)
	}
}

func validConfig() *DeployConfig {
	return &DeployConfig{
		Project: Project{Name: "proj", Env: "prod"},
		State:   StateBackend{Type: "local", Path: "./state"},
		Pods: []PodSpec{
			{
				Name:    "web",
				GPU:     GPUSpec{Type: "NVIDIA A40", Count: 1},
				Runtime: RuntimeSpec{Image: "svc:1.0"},
			},
		},
	}
}

func TestValidatorAcceptsValidConfig(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(validConfig())
	assert.NoError(t, err)
	assert.True(t, result.IsValid())
}

func TestValidatorRejectsDuplicatePodNames(t *testing.T) {
	v := NewValidator()
	cfg := validConfig()
	cfg.Pods = append(cfg.Pods, cfg.Pods[0])

	result, err := v.Validate(cfg)
	assert.Error(t, err)
	assert.False(t, result.IsValid())
}

func TestValidatorRejectsGuardrailOverflow(t *testing.T) {
	v := NewValidator()
	cfg := validConfig()
	cfg.Pods[0].GPU.Count = 4
	maxGPUs := 2
	cfg.Guardrails = &Guardrails{MaxGPUs: &maxGPUs}

	result, err := v.Validate(cfg)
	assert.Error(t, err)
	assert.False(t, result.IsValid())
}

func TestValidatorRejectsNonAbsoluteMount(t *testing.T) {
	v := NewValidator()
	cfg := validConfig()
	cfg.Pods[0].Volumes = []VolumeSpec{{Name: "data", Mount: "relative/path"}}

	result, err := v.Validate(cfg)
	assert.Error(t, err)
	assert.False(t, result.IsValid())
}

func TestValidatorRequiresS3Bucket(t *testing.T) {
	v := NewValidator()
	cfg := validConfig()
	cfg.State = StateBackend{Type: "s3"}

	result, err := v.Validate(cfg)
	assert.Error(t, err)
	assert.False(t, result.IsValid())
}
