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

// Package exec applies a plan.Plan against a provider, honoring action
// dependencies and recording the outcome into state.DeploymentState.
package exec

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/herr"
	"github.com/halldyll/haldctl/pkg/plan"
	"github.com/halldyll/haldctl/pkg/provider"
	"github.com/halldyll/haldctl/pkg/state"
)

const skippedReason = "skipped due to dependency failure"

// ActionResult is the outcome of running one planned action.
type ActionResult struct {
	Index   int
	Action  plan.Action
	Success bool
	PodID   string
	Error   string
}

// Result is the outcome of running an entire plan.
type Result struct {
	Results        []ActionResult
	TotalExecuted  int
	Successful     int
	Failed         int
	Skipped        int
	Success        bool
}

func (r Result) String() string {
	return fmt.Sprintf("executed %d actions: %d successful, %d failed, %d skipped",
		r.TotalExecuted, r.Successful, r.Failed, r.Skipped)
}

// AllSuccessful reports whether every action ran without failure or skip.
func (r Result) AllSuccessful() bool {
	return r.Success && r.Failed == 0 && r.Skipped == 0
}

// Executor applies a Plan's actions against a provider.Provisioner in
// dependency order.
type Executor struct {
	provisioner     provider.Provisioner
	continueOnError bool
	operation       state.Operation
	project         string
	environment     string
	log             *zap.Logger
}

func NewExecutor(provisioner provider.Provisioner) *Executor {
	return &Executor{provisioner: provisioner, operation: state.OperationCreate, log: zap.NewNop()}
}

func (e *Executor) WithContinueOnError(v bool) *Executor {
	e.continueOnError = v
	return e
}

// WithOperation overrides the history-entry operation kind recorded by
// Execute. Defaults to OperationCreate, which the reconciler also sets
// explicitly.
func (e *Executor) WithOperation(op state.Operation) *Executor {
	e.operation = op
	return e
}

// WithProject sets the project/environment identity stamped onto every
// pod this executor creates. The provider only knows a pod belongs to a
// given project/environment through these tags, so ListProjectPods can
// find it again on a later run - see provider.TagProject/provider.TagEnv.
func (e *Executor) WithProject(project, environment string) *Executor {
	e.project = project
	e.environment = environment
	return e
}

func (e *Executor) WithLogger(log *zap.Logger) *Executor {
	if log != nil {
		e.log = log
	}
	return e
}

// Execute runs p's actions in order, skipping any action whose
// dependency failed, and records a history entry (success or failure)
// plus the plan's config hash into st. A plan that fails its guardrails
// runs no action: it records a failed history entry, leaves the config
// hash as it was, and returns an aborted error. An empty plan leaves st
// untouched.
func (e *Executor) Execute(ctx context.Context, p plan.Plan, st *state.DeploymentState) (Result, error) {
	e.log.Info("executing deployment plan", zap.Int("actions", len(p.Actions)))

	if p.IsEmpty() {
		return Result{Success: true}, nil
	}

	if !p.PassesGuardrails {
		for _, v := range p.GuardrailViolations {
			e.log.Error("guardrail violation", zap.String("violation", v))
		}
		names := make([]string, len(p.Actions))
		for i, a := range p.Actions {
			names[i] = a.ResourceName
		}
		st.AddHistory(state.FailedHistoryEntry(e.operation, p.ConfigHash, names, "plan violates guardrails"))
		return Result{}, herr.NewAborted("plan violates guardrails")
	}

	var results []ActionResult
	completed := map[int]bool{}
	failedIdx := map[int]bool{}

	for idx, action := range p.Actions {
		depsFailed := false
		for _, dep := range action.Dependencies {
			if failedIdx[dep] {
				depsFailed = true
				break
			}
		}

		if depsFailed {
			e.log.Warn("skipping action due to failed dependency", zap.Int("index", idx))
			results = append(results, ActionResult{Index: idx, Action: action, Success: false, Error: skippedReason})
			failedIdx[idx] = true
			continue
		}

		result := e.executeAction(ctx, idx, action, st)
		if result.Success {
			completed[idx] = true
		} else {
			failedIdx[idx] = true
		}
		results = append(results, result)

		if !result.Success && !e.continueOnError {
			break
		}
	}

	successful, failed, skipped := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Success:
			successful++
		case r.Error == skippedReason:
			skipped++
		default:
			failed++
		}
	}

	execResult := Result{
		Results:       results,
		TotalExecuted: len(results),
		Successful:    successful,
		Failed:        failed,
		Skipped:       skipped,
		Success:       failed == 0,
	}

	resourceNames := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		resourceNames[i] = a.ResourceName
	}

	if execResult.Success {
		st.AddHistory(state.NewHistoryEntry(e.operation, p.ConfigHash, resourceNames))
	} else {
		st.AddHistory(state.FailedHistoryEntry(e.operation, p.ConfigHash, resourceNames,
			fmt.Sprintf("%d actions failed", execResult.Failed)))
	}
	st.ConfigHash = p.ConfigHash

	return execResult, nil
}

func (e *Executor) executeAction(ctx context.Context, idx int, action plan.Action, st *state.DeploymentState) ActionResult {
	e.log.Info("executing action", zap.Int("index", idx), zap.String("description", action.Description()))

	switch action.Type {
	case plan.CreatePod:
		return e.executeCreate(ctx, idx, action, st)
	case plan.DeletePod:
		return e.executeDelete(ctx, idx, action, st)
	case plan.UpdatePod:
		// Updates are always expressed as delete+create by the planner;
		// this path only exists for an action constructed by hand.
		return e.executeCreate(ctx, idx, action, st)
	case plan.StopPod:
		return e.executeStop(ctx, idx, action, st)
	case plan.ResumePod:
		return e.executeResume(ctx, idx, action, st)
	default:
		return ActionResult{Index: idx, Action: action, Success: true}
	}
}

func (e *Executor) executeCreate(ctx context.Context, idx int, action plan.Action, st *state.DeploymentState) ActionResult {
	if action.PodSpec == nil {
		return ActionResult{Index: idx, Action: action, Error: "missing pod configuration"}
	}

	tags := make(map[string]string, len(action.PodSpec.Tags)+4)
	for k, v := range action.PodSpec.Tags {
		tags[k] = v
	}
	tags[provider.TagProject] = e.project
	tags[provider.TagEnv] = e.environment
	tags[provider.TagPod] = action.ResourceName
	tags[provider.TagSpecHash] = action.NewHash

	req := provider.CreateRequest{
		Name:      action.ResourceName,
		GPUType:   action.PodSpec.GPU.Type,
		GPUCount:  action.PodSpec.GPU.Count,
		Image:     action.PodSpec.Runtime.Image,
		Env:       action.PodSpec.Runtime.Env,
		VolumeGB:  maxVolumeSizeGB(action.PodSpec.Volumes),
		MountPath: firstVolumeMount(action.PodSpec.Volumes),
		Tags:      tags,
	}
	for _, port := range action.PodSpec.Ports {
		req.Ports = append(req.Ports, port.String())
	}

	observed, err := e.provisioner.CreatePod(ctx, req)
	if err != nil {
		e.log.Error("failed to create pod", zap.String("pod", action.ResourceName), zap.Error(err))
		return ActionResult{Index: idx, Action: action, Error: err.Error()}
	}

	rec := state.NewPodRecord(action.ResourceName, observed.ID, action.NewHash)
	rec.GPUType = observed.GPUType
	rec.GPUCount = observed.GPUCount
	rec.Image = observed.Image
	st.SetPod(rec)

	e.log.Info("created pod", zap.String("pod", action.ResourceName), zap.String("provider_id", observed.ID))
	return ActionResult{Index: idx, Action: action, Success: true, PodID: observed.ID}
}

// maxVolumeSizeGB returns the largest declared volume size, or 0 when no
// volume declares one so the provisioner's own default takes over.
func maxVolumeSizeGB(volumes []config.VolumeSpec) int {
	max := 0
	for _, v := range volumes {
		if v.SizeGB != nil && *v.SizeGB > max {
			max = *v.SizeGB
		}
	}
	return max
}

// firstVolumeMount returns the mount path of the first declared volume,
// matching the provider's single container-mount model.
func firstVolumeMount(volumes []config.VolumeSpec) string {
	if len(volumes) == 0 {
		return ""
	}
	return volumes[0].Mount
}

func (e *Executor) executeDelete(ctx context.Context, idx int, action plan.Action, st *state.DeploymentState) ActionResult {
	podID := action.ProviderID
	if podID == "" {
		if rec, ok := st.GetPod(action.ResourceName); ok {
			podID = rec.ProviderID
		}
	}

	if podID == "" {
		st.RemovePod(action.ResourceName)
		return ActionResult{Index: idx, Action: action, Success: true}
	}

	err := e.provisioner.DeletePod(ctx, podID)
	if err == nil {
		st.RemovePod(action.ResourceName)
		e.log.Info("deleted pod", zap.String("pod", action.ResourceName), zap.String("provider_id", podID))
		return ActionResult{Index: idx, Action: action, Success: true, PodID: podID}
	}

	if rpErr, ok := err.(*herr.RunPodError); ok && rpErr.Kind == "pod_not_found" {
		st.RemovePod(action.ResourceName)
		e.log.Info("pod already deleted", zap.String("pod", action.ResourceName))
		return ActionResult{Index: idx, Action: action, Success: true, PodID: podID}
	}

	e.log.Error("failed to delete pod", zap.String("pod", action.ResourceName), zap.Error(err))
	return ActionResult{Index: idx, Action: action, PodID: podID, Error: err.Error()}
}

func (e *Executor) executeStop(ctx context.Context, idx int, action plan.Action, st *state.DeploymentState) ActionResult {
	podID := action.ProviderID
	if podID == "" {
		if rec, ok := st.GetPod(action.ResourceName); ok {
			podID = rec.ProviderID
		}
	}
	if podID == "" {
		return ActionResult{Index: idx, Action: action, Error: "pod not found"}
	}

	if err := e.provisioner.StopPod(ctx, podID); err != nil {
		e.log.Error("failed to stop pod", zap.String("pod", action.ResourceName), zap.Error(err))
		return ActionResult{Index: idx, Action: action, PodID: podID, Error: err.Error()}
	}

	if rec, ok := st.GetPod(action.ResourceName); ok {
		rec.SetStatus(state.StatusStopped)
	}
	return ActionResult{Index: idx, Action: action, Success: true, PodID: podID}
}

func (e *Executor) executeResume(ctx context.Context, idx int, action plan.Action, st *state.DeploymentState) ActionResult {
	podID := action.ProviderID
	if podID == "" {
		if rec, ok := st.GetPod(action.ResourceName); ok {
			podID = rec.ProviderID
		}
	}
	if podID == "" {
		return ActionResult{Index: idx, Action: action, Error: "pod not found"}
	}

	if err := e.provisioner.ResumePod(ctx, podID); err != nil {
		e.log.Error("failed to resume pod", zap.String("pod", action.ResourceName), zap.Error(err))
		return ActionResult{Index: idx, Action: action, PodID: podID, Error: err.Error()}
	}

	if rec, ok := st.GetPod(action.ResourceName); ok {
		rec.SetStatus(state.StatusRunning)
	}
	return ActionResult{Index: idx, Action: action, Success: true, PodID: podID}
}
