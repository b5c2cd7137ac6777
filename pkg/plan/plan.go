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

// Package plan turns a diff.Result into an ordered, guardrail-checked
// list of actions the executor can run.
package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/diff"
)

// ActionType is the kind of operation a single planned action performs.
type ActionType int

const (
	CreatePod ActionType = iota
	UpdatePod
	DeletePod
	StopPod
	ResumePod
	Noop
)

func (a ActionType) String() string {
	switch a {
	case CreatePod:
		return "create"
	case UpdatePod:
		return "update"
	case DeletePod:
		return "delete"
	case StopPod:
		return "stop"
	case ResumePod:
		return "resume"
	default:
		return "noop"
	}
}

// Action is a single step in a Plan. Dependencies are expressed as
// indices into the owning Plan's Actions slice rather than pointers, so
// a Plan stays a plain, serializable value.
type Action struct {
	Type         ActionType
	ResourceName string
	PodSpec      *config.PodSpec
	ProviderID   string
	Reason       string
	NewHash      string
	Dependencies []int
}

func (a Action) Description() string {
	return fmt.Sprintf("%s pod '%s'", a.Type, a.ResourceName)
}

func (a Action) String() string {
	if a.Reason == "" {
		return fmt.Sprintf("%s %s", a.Type, a.ResourceName)
	}
	return fmt.Sprintf("%s %s (%s)", a.Type, a.ResourceName, a.Reason)
}

// Plan is a complete, ordered set of actions computed from one diff.
type Plan struct {
	CreatedAt          time.Time
	ConfigHash         string
	Actions            []Action
	PassesGuardrails   bool
	GuardrailViolations []string
}

// Empty returns a plan with no actions, used when the diff found nothing
// to do.
func Empty(configHash string) Plan {
	return Plan{
		CreatedAt:        time.Now().UTC(),
		ConfigHash:       configHash,
		PassesGuardrails: true,
	}
}

// IsEmpty reports whether the plan has no actions. A diff with only
// NoChange resources always produces an empty plan, and vice versa.
func (p Plan) IsEmpty() bool { return len(p.Actions) == 0 }

func (p Plan) ActionCount() int { return len(p.Actions) }

func (p Plan) CreateCount() int { return p.countType(CreatePod) }
func (p Plan) DeleteCount() int { return p.countType(DeletePod) }

func (p Plan) countType(t ActionType) int {
	n := 0
	for _, a := range p.Actions {
		if a.Type == t {
			n++
		}
	}
	return n
}

// ReadyActions returns every action that has no dependencies.
func (p Plan) ReadyActions() []Action {
	var out []Action
	for _, a := range p.Actions {
		if len(a.Dependencies) == 0 {
			out = append(out, a)
		}
	}
	return out
}

// DependentActions returns the index/action pairs that depend on
// actionIdx.
func (p Plan) DependentActions(actionIdx int) []struct {
	Index  int
	Action Action
} {
	var out []struct {
		Index  int
		Action Action
	}
	for i, a := range p.Actions {
		for _, dep := range a.Dependencies {
			if dep == actionIdx {
				out = append(out, struct {
					Index  int
					Action Action
				}{i, a})
				break
			}
		}
	}
	return out
}

func (p Plan) String() string {
	if p.IsEmpty() {
		return "No changes required"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Deployment plan (%d actions):\n", len(p.Actions))
	for i, a := range p.Actions {
		fmt.Fprintf(&b, "  %d. %s\n", i, a)
	}
	if len(p.GuardrailViolations) > 0 {
		b.WriteString("\nGuardrail violations:\n")
		for _, v := range p.GuardrailViolations {
			fmt.Fprintf(&b, "  - %s\n", v)
		}
	}
	return b.String()
}

// Planner converts a diff.Result into a Plan, ordering deletes before
// creates and, for resources being recreated, making the create action
// depend on its paired delete.
type Planner struct{}

func NewPlanner() *Planner { return &Planner{} }

// FromDiff builds the plan. Pure deletes (orphans) run first with no
// dependencies; pure creates follow and may run in parallel; updates and
// drifted resources are only ever recreated (delete then create), never
// mutated in place, so the create action always depends on its delete.
func (pl *Planner) FromDiff(result diff.Result, cfg *config.DeployConfig, configHash string) Plan {
	if !result.HasChanges() {
		return Empty(configHash)
	}

	var actions []Action

	for _, rd := range result.Resources {
		if rd.Type != diff.Delete {
			continue
		}
		actions = append(actions, Action{
			Type:         DeletePod,
			ResourceName: rd.Name,
			ProviderID:   firstOldValue(rd),
			Reason:       "pod removed from configuration",
		})
	}

	for _, rd := range result.Resources {
		if rd.Type != diff.Create {
			continue
		}
		spec, ok := cfg.PodByName(rd.Name)
		if !ok {
			continue
		}
		actions = append(actions, Action{
			Type:         CreatePod,
			ResourceName: rd.Name,
			PodSpec:      &spec,
			Reason:       "pod defined in configuration",
			NewHash:      rd.NewHash,
		})
	}

	for _, rd := range result.Resources {
		if rd.Type != diff.Update && rd.Type != diff.Drift {
			continue
		}
		spec, ok := cfg.PodByName(rd.Name)
		if !ok {
			continue
		}

		deleteIdx := len(actions)
		actions = append(actions, Action{
			Type:         DeletePod,
			ResourceName: rd.Name,
			ProviderID:   firstOldValue(rd),
			Reason:       fmt.Sprintf("recreating pod due to %s", rd.Type),
		})

		actions = append(actions, Action{
			Type:         CreatePod,
			ResourceName: rd.Name,
			PodSpec:      &spec,
			Reason:       fmt.Sprintf("recreating pod due to %s", rd.Type),
			NewHash:      rd.NewHash,
			Dependencies: []int{deleteIdx},
		})
	}

	passes, violations := checkGuardrails(cfg, actions)

	return Plan{
		CreatedAt:           time.Now().UTC(),
		ConfigHash:          configHash,
		Actions:             actions,
		PassesGuardrails:    passes,
		GuardrailViolations: violations,
	}
}

func firstOldValue(rd diff.Resource) string {
	if len(rd.Details) == 0 {
		return ""
	}
	return rd.Details[0].OldValue
}

// checkGuardrails evaluates config.Guardrails against the actions about
// to run. Only the GPU quota check is implemented: cost guardrails
// require GPU pricing data this system has no source for, so
// max_hourly_cost is accepted in config but never enforced here (see
// the preserved open question in the design notes).
func checkGuardrails(cfg *config.DeployConfig, actions []Action) (bool, []string) {
	var violations []string

	if cfg.Guardrails == nil {
		return true, nil
	}

	if cfg.Guardrails.MaxGPUs != nil {
		var totalGPUs int
		for _, a := range actions {
			if a.PodSpec != nil {
				totalGPUs += a.PodSpec.GPU.Count
			}
		}
		if totalGPUs > *cfg.Guardrails.MaxGPUs {
			violations = append(violations, fmt.Sprintf(
				"plan requires %d GPUs but max_gpus is %d", totalGPUs, *cfg.Guardrails.MaxGPUs))
		}
	}

	return len(violations) == 0, violations
}
