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

package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/provider"
	"github.com/halldyll/haldctl/pkg/state"
)

func testConfig() *config.DeployConfig {
	return &config.DeployConfig{
		Project: config.Project{Name: "proj", Env: "dev"},
		Pods: []config.PodSpec{
			{
				Name:    "web",
				GPU:     config.GPUSpec{Type: "NVIDIA A100 80GB PCIe", Count: 1},
				Runtime: config.RuntimeSpec{Image: "vllm/vllm-openai:latest"},
			},
		},
	}
}

func TestComputeCreateWhenAbsentEverywhere(t *testing.T) {
	e := NewEngine(nil)
	result := e.Compute(testConfig(), nil, nil)

	assert.Equal(t, 1, result.Creates)
	assert.True(t, result.HasChanges())
	assert.Equal(t, Create, result.Resources[0].Type)
}

func TestComputeNoChangeWhenHashMatches(t *testing.T) {
	e := NewEngine(nil)
	cfg := testConfig()
	hash := e.hasher.HashPod(&cfg.Pods[0])

	observed := []provider.ObservedPod{{
		PodName:  "web",
		SpecHash: hash,
		Image:    cfg.Pods[0].Runtime.Image,
		GPUType:  cfg.Pods[0].GPU.Type,
		GPUCount: cfg.Pods[0].GPU.Count,
	}}

	result := e.Compute(cfg, nil, observed)
	assert.False(t, result.HasChanges())
	assert.Equal(t, 1, result.Unchanged)
}

func TestComputeUpdateWhenHashDiffers(t *testing.T) {
	e := NewEngine(nil)
	cfg := testConfig()

	observed := []provider.ObservedPod{{
		PodName:  "web",
		SpecHash: "stale-hash",
		Image:    "old-image:latest",
		GPUType:  cfg.Pods[0].GPU.Type,
		GPUCount: cfg.Pods[0].GPU.Count,
	}}

	result := e.Compute(cfg, nil, observed)
	assert.Equal(t, 1, result.Updates)
	assert.Equal(t, Update, result.Resources[0].Type)
	assert.Contains(t, result.Resources[0].Details[0].Field, "image")
}

func TestComputeDriftWhenObservedHasNoRecordedHash(t *testing.T) {
	e := NewEngine(nil)
	cfg := testConfig()

	observed := []provider.ObservedPod{{
		PodName:  "web",
		SpecHash: "",
		Image:    "drifted-image:latest",
	}}

	result := e.Compute(cfg, nil, observed)
	assert.Equal(t, Drift, result.Resources[0].Type)
}

func TestComputeDetectsOrphanedPod(t *testing.T) {
	e := NewEngine(nil)
	cfg := testConfig()

	observed := []provider.ObservedPod{
		{ID: "p-1", PodName: "web", SpecHash: e.hasher.HashPod(&cfg.Pods[0]), Image: cfg.Pods[0].Runtime.Image, GPUType: cfg.Pods[0].GPU.Type, GPUCount: cfg.Pods[0].GPU.Count},
		{ID: "p-2", PodName: "leftover", SpecHash: "whatever"},
	}

	result := e.Compute(cfg, nil, observed)
	assert.Equal(t, 1, result.Deletes)

	var orphan Resource
	for _, r := range result.Resources {
		if r.Name == "leftover" {
			orphan = r
		}
	}
	assert.Equal(t, Delete, orphan.Type)
}

func TestComputeRecreatesPodMissingFromProviderButInState(t *testing.T) {
	e := NewEngine(nil)
	cfg := testConfig()

	ds := state.New("proj", "dev")
	ds.SetPod(state.NewPodRecord("web", "p-1", "old-hash"))

	result := e.Compute(cfg, ds, nil)
	assert.Equal(t, 1, result.Creates)
	assert.Equal(t, Create, result.Resources[0].Type)
}

func TestComputeIsIdempotentForSameInputs(t *testing.T) {
	e := NewEngine(nil)
	cfg := testConfig()
	observed := []provider.ObservedPod{{PodName: "web", SpecHash: "stale"}}

	first := e.Compute(cfg, nil, observed)
	second := e.Compute(cfg, nil, observed)

	assert.Equal(t, first.Creates, second.Creates)
	assert.Equal(t, first.Updates, second.Updates)
	assert.Equal(t, first.Deletes, second.Deletes)
	assert.Equal(t, first.Resources[0].Type, second.Resources[0].Type)
}
