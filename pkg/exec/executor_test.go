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

package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/herr"
	"github.com/halldyll/haldctl/pkg/plan"
	"github.com/halldyll/haldctl/pkg/provider"
	"github.com/halldyll/haldctl/pkg/state"
)

type fakeProvisioner struct {
	createErr  error
	deleteErr  error
	nextPodID  int
	created    []string
	deleted    []string
	lastReq    provider.CreateRequest
}

func (f *fakeProvisioner) CreatePod(_ context.Context, req provider.CreateRequest) (*provider.ObservedPod, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextPodID++
	f.created = append(f.created, req.Name)
	f.lastReq = req
	return &provider.ObservedPod{ID: "pod-id-1", Name: req.Name, GPUType: req.GPUType, GPUCount: req.GPUCount, Image: req.Image}, nil
}

func (f *fakeProvisioner) DeletePod(_ context.Context, podID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, podID)
	return nil
}

func (f *fakeProvisioner) StopPod(_ context.Context, _ string) error   { return nil }
func (f *fakeProvisioner) ResumePod(_ context.Context, _ string) error { return nil }

func TestExecuteCreateUpdatesState(t *testing.T) {
	prov := &fakeProvisioner{}
	e := NewExecutor(prov)

	p := plan.Plan{
		ConfigHash: "hash-1",
		Actions: []plan.Action{
			{Type: plan.CreatePod, ResourceName: "web", PodSpec: &config.PodSpec{Name: "web", GPU: config.GPUSpec{Type: "A100", Count: 1}, Runtime: config.RuntimeSpec{Image: "img:latest"}}, NewHash: "hash-1"},
		},
		PassesGuardrails: true,
	}

	st := state.New("proj", "dev")
	result, err := e.Execute(context.Background(), p, st)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Successful)
	rec, ok := st.GetPod("web")
	require.True(t, ok)
	assert.Equal(t, "pod-id-1", rec.ProviderID)
	assert.Equal(t, "hash-1", st.ConfigHash)
}

func TestExecuteCreateSetsSystemTagsAndVolume(t *testing.T) {
	prov := &fakeProvisioner{}
	e := NewExecutor(prov).WithProject("proj", "dev")

	size := 100
	p := plan.Plan{
		ConfigHash: "hash-1",
		Actions: []plan.Action{
			{
				Type:         plan.CreatePod,
				ResourceName: "web",
				PodSpec: &config.PodSpec{
					Name:    "web",
					GPU:     config.GPUSpec{Type: "A100", Count: 1},
					Runtime: config.RuntimeSpec{Image: "img:latest"},
					Volumes: []config.VolumeSpec{
						{Name: "data", Mount: "/data", SizeGB: &size},
					},
					Tags: map[string]string{"team": "ml"},
				},
				NewHash: "hash-1",
			},
		},
		PassesGuardrails: true,
	}

	st := state.New("proj", "dev")
	result, err := e.Execute(context.Background(), p, st)
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, "proj", prov.lastReq.Tags[provider.TagProject])
	assert.Equal(t, "dev", prov.lastReq.Tags[provider.TagEnv])
	assert.Equal(t, "web", prov.lastReq.Tags[provider.TagPod])
	assert.Equal(t, "hash-1", prov.lastReq.Tags[provider.TagSpecHash])
	assert.Equal(t, "ml", prov.lastReq.Tags["team"])
	assert.Equal(t, 100, prov.lastReq.VolumeGB)
	assert.Equal(t, "/data", prov.lastReq.MountPath)
}

func TestExecuteSkipsDependentOnFailedDelete(t *testing.T) {
	prov := &fakeProvisioner{deleteErr: herr.NewAPIRequestFailed(500, "boom")}
	e := NewExecutor(prov).WithContinueOnError(true)

	p := plan.Plan{
		ConfigHash: "hash-2",
		Actions: []plan.Action{
			{Type: plan.DeletePod, ResourceName: "web", ProviderID: "pod-id-1"},
			{Type: plan.CreatePod, ResourceName: "web", PodSpec: &config.PodSpec{Name: "web"}, Dependencies: []int{0}},
		},
		PassesGuardrails: true,
	}

	st := state.New("proj", "dev")
	result, err := e.Execute(context.Background(), p, st)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
}

func TestExecuteDeleteMissingPodIsSuccess(t *testing.T) {
	prov := &fakeProvisioner{deleteErr: herr.NewPodNotFound("pod-id-1")}
	e := NewExecutor(prov)

	p := plan.Plan{
		ConfigHash: "hash-3",
		Actions:    []plan.Action{{Type: plan.DeletePod, ResourceName: "web", ProviderID: "pod-id-1"}},
		PassesGuardrails: true,
	}

	st := state.New("proj", "dev")
	st.SetPod(state.NewPodRecord("web", "pod-id-1", "hash-old"))

	result, err := e.Execute(context.Background(), p, st)
	require.NoError(t, err)
	assert.True(t, result.Success)
	_, ok := st.GetPod("web")
	assert.False(t, ok)
}

func TestExecuteRejectsPlanFailingGuardrails(t *testing.T) {
	prov := &fakeProvisioner{}
	e := NewExecutor(prov)

	p := plan.Plan{
		Actions:             []plan.Action{{Type: plan.CreatePod, ResourceName: "web", PodSpec: &config.PodSpec{Name: "web"}}},
		PassesGuardrails:    false,
		GuardrailViolations: []string{"too many GPUs"},
	}

	_, err := e.Execute(context.Background(), p, state.New("proj", "dev"))
	assert.Error(t, err)
}

func TestExecuteEmptyPlanIsNoop(t *testing.T) {
	e := NewExecutor(&fakeProvisioner{})
	result, err := e.Execute(context.Background(), plan.Empty("hash"), state.New("proj", "dev"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.TotalExecuted)
}
