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

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/diff"
)

func cfgWithPods(maxGPUs *int, pods ...config.PodSpec) *config.DeployConfig {
	cfg := &config.DeployConfig{
		Project: config.Project{Name: "proj", Env: "dev"},
		Pods:    pods,
	}
	if maxGPUs != nil {
		cfg.Guardrails = &config.Guardrails{MaxGPUs: maxGPUs}
	}
	return cfg
}

func TestFromDiffEmptyWhenNoChanges(t *testing.T) {
	result := diff.Result{Resources: []diff.Resource{{Name: "web", Type: diff.NoChange}}}
	p := NewPlanner().FromDiff(result, cfgWithPods(nil), "hash")
	assert.True(t, p.IsEmpty())
	assert.True(t, p.PassesGuardrails)
}

func TestFromDiffOrdersDeletesBeforeCreates(t *testing.T) {
	cfg := cfgWithPods(nil, config.PodSpec{Name: "new-pod", GPU: config.GPUSpec{Count: 1}})
	result := diff.Result{
		Resources: []diff.Resource{
			{Name: "orphan", Type: diff.Delete, Details: []diff.Detail{{Field: "pod", OldValue: "p-99"}}},
			{Name: "new-pod", Type: diff.Create},
		},
		Creates: 1,
		Deletes: 1,
	}

	p := NewPlanner().FromDiff(result, cfg, "hash")
	require.Len(t, p.Actions, 2)
	assert.Equal(t, DeletePod, p.Actions[0].Type)
	assert.Equal(t, "p-99", p.Actions[0].ProviderID)
	assert.Equal(t, CreatePod, p.Actions[1].Type)
}

func TestFromDiffUpdateRecreatesWithDependency(t *testing.T) {
	cfg := cfgWithPods(nil, config.PodSpec{Name: "web", GPU: config.GPUSpec{Count: 1}})
	result := diff.Result{
		Resources: []diff.Resource{{Name: "web", Type: diff.Update, Details: []diff.Detail{{Field: "image", OldValue: "p-1"}}}},
		Updates:   1,
	}

	p := NewPlanner().FromDiff(result, cfg, "hash")
	require.Len(t, p.Actions, 2)
	assert.Equal(t, DeletePod, p.Actions[0].Type)
	assert.Equal(t, CreatePod, p.Actions[1].Type)
	assert.Equal(t, []int{0}, p.Actions[1].Dependencies)
}

func TestFromDiffGuardrailViolationOnGPUQuota(t *testing.T) {
	maxGPUs := 2
	cfg := cfgWithPods(&maxGPUs, config.PodSpec{Name: "web", GPU: config.GPUSpec{Count: 4}})
	result := diff.Result{Resources: []diff.Resource{{Name: "web", Type: diff.Create}}, Creates: 1}

	p := NewPlanner().FromDiff(result, cfg, "hash")
	assert.False(t, p.PassesGuardrails)
	assert.Len(t, p.GuardrailViolations, 1)
}

func TestFromDiffGuardrailPassesWithinQuota(t *testing.T) {
	maxGPUs := 8
	cfg := cfgWithPods(&maxGPUs, config.PodSpec{Name: "web", GPU: config.GPUSpec{Count: 4}})
	result := diff.Result{Resources: []diff.Resource{{Name: "web", Type: diff.Create}}, Creates: 1}

	p := NewPlanner().FromDiff(result, cfg, "hash")
	assert.True(t, p.PassesGuardrails)
	assert.Empty(t, p.GuardrailViolations)
}

func TestReadyActionsOnlyReturnsUnblocked(t *testing.T) {
	cfg := cfgWithPods(nil, config.PodSpec{Name: "web", GPU: config.GPUSpec{Count: 1}})
	result := diff.Result{Resources: []diff.Resource{{Name: "web", Type: diff.Update}}, Updates: 1}

	p := NewPlanner().FromDiff(result, cfg, "hash")
	ready := p.ReadyActions()
	require.Len(t, ready, 1)
	assert.Equal(t, DeletePod, ready[0].Type)
}
