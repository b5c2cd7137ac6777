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

// Package diff computes the difference between a desired DeployConfig,
// the persisted DeploymentState and what is actually observed on the
// provider, classifying each pod into a single DiffType.
package diff

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/provider"
	"github.com/halldyll/haldctl/pkg/state"
)

// Type is the classification assigned to one resource by Engine.Compute.
type Type int

const (
	NoChange Type = iota
	Create
	Update
	Delete
	Drift
)

func (t Type) String() string {
	switch t {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Drift:
		return "drift"
	default:
		return "no change"
	}
}

// Detail names one field that differs between desired and observed.
type Detail struct {
	Field    string
	OldValue string
	NewValue string
}

// Resource is the computed diff for a single named pod.
type Resource struct {
	Name    string
	Type    Type
	Details []Detail
	OldHash string
	NewHash string
}

func (r Resource) String() string {
	if len(r.Details) == 0 {
		return fmt.Sprintf("%s: %s", r.Name, r.Type)
	}
	fields := make([]string, len(r.Details))
	for i, d := range r.Details {
		fields[i] = d.Field
	}
	return fmt.Sprintf("%s: %s (%v)", r.Name, r.Type, fields)
}

// Result is the full set of per-resource diffs plus summary counts.
type Result struct {
	Resources []Resource
	Creates   int
	Updates   int
	Deletes   int
	Unchanged int
}

// HasChanges reports whether applying this diff would do anything.
func (r Result) HasChanges() bool {
	return r.Creates > 0 || r.Updates > 0 || r.Deletes > 0
}

// TotalChanges is the number of resources requiring action.
func (r Result) TotalChanges() int {
	return r.Creates + r.Updates + r.Deletes
}

// Actionable returns every resource whose Type is not NoChange.
func (r Result) Actionable() []Resource {
	out := make([]Resource, 0, r.TotalChanges())
	for _, res := range r.Resources {
		if res.Type != NoChange {
			out = append(out, res)
		}
	}
	return out
}

// Engine computes diffs between desired configuration and the observed
// world.
type Engine struct {
	hasher *config.Hasher
	log    *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{hasher: config.NewHasher(), log: log}
}

// Compute classifies every declared pod against observed/state, then
// appends a Delete diff for any observed pod that is no longer declared
// (an orphan left over from a prior apply).
func (e *Engine) Compute(cfg *config.DeployConfig, st *state.DeploymentState, observed []provider.ObservedPod) Result {
	var resources []Resource

	observedByName := make(map[string]*provider.ObservedPod, len(observed))
	for i := range observed {
		if observed[i].PodName != "" {
			observedByName[observed[i].PodName] = &observed[i]
		}
	}

	var statePods map[string]*state.PodRecord
	if st != nil {
		statePods = st.Pods
	}

	for _, podSpec := range cfg.Pods {
		newHash := e.hasher.HashPod(&podSpec)
		obs := observedByName[podSpec.Name]
		var rec *state.PodRecord
		if statePods != nil {
			rec = statePods[podSpec.Name]
		}
		resources = append(resources, e.computePodDiff(podSpec, obs, rec, newHash))
	}

	declared := make(map[string]bool, len(cfg.Pods))
	for _, p := range cfg.Pods {
		declared[p.Name] = true
	}
	for _, obs := range observed {
		if obs.PodName == "" || declared[obs.PodName] {
			continue
		}
		e.log.Debug("found orphaned pod", zap.String("pod", obs.PodName), zap.String("provider_id", obs.ID))
		resources = append(resources, Resource{
			Name: obs.PodName,
			Type: Delete,
			Details: []Detail{{
				Field:    "pod",
				OldValue: obs.ID,
			}},
			OldHash: obs.SpecHash,
		})
	}

	return summarize(resources)
}

func (e *Engine) computePodDiff(spec config.PodSpec, obs *provider.ObservedPod, rec *state.PodRecord, newHash string) Resource {
	switch {
	case obs == nil && rec == nil:
		e.log.Debug("pod needs to be created", zap.String("pod", spec.Name))
		return Resource{
			Name:    spec.Name,
			Type:    Create,
			Details: []Detail{{Field: "pod", NewValue: spec.Name}},
			NewHash: newHash,
		}

	case obs != nil:
		oldHash := obs.SpecHash
		if oldHash == newHash {
			return Resource{Name: spec.Name, Type: NoChange, OldHash: oldHash, NewHash: newHash}
		}

		details := detailedDiff(spec, obs)
		t := Drift
		if oldHash != "" {
			t = Update
		}
		e.log.Debug("pod needs update", zap.String("pod", spec.Name), zap.String("type", t.String()))
		return Resource{Name: spec.Name, Type: t, Details: details, OldHash: oldHash, NewHash: newHash}

	default: // obs == nil, rec != nil: recorded but missing from the provider
		e.log.Debug("pod exists in state but not on provider, recreating", zap.String("pod", spec.Name))
		return Resource{
			Name: spec.Name,
			Type: Create,
			Details: []Detail{{
				Field:    "pod",
				OldValue: fmt.Sprintf("missing (was %s)", rec.ProviderID),
				NewValue: spec.Name,
			}},
			OldHash: rec.ConfigHash,
			NewHash: newHash,
		}
	}
}

func detailedDiff(spec config.PodSpec, obs *provider.ObservedPod) []Detail {
	var details []Detail

	if spec.Runtime.Image != obs.Image {
		details = append(details, Detail{Field: "image", OldValue: obs.Image, NewValue: spec.Runtime.Image})
	}
	if obs.GPUType != "" && spec.GPU.Type != obs.GPUType {
		details = append(details, Detail{Field: "gpu_type", OldValue: obs.GPUType, NewValue: spec.GPU.Type})
	}
	if spec.GPU.Count != obs.GPUCount {
		details = append(details, Detail{
			Field:    "gpu_count",
			OldValue: fmt.Sprintf("%d", obs.GPUCount),
			NewValue: fmt.Sprintf("%d", spec.GPU.Count),
		})
	}
	return details
}

func summarize(resources []Resource) Result {
	res := Result{Resources: resources}
	for _, r := range resources {
		switch r.Type {
		case Create:
			res.Creates++
		case Update, Drift:
			res.Updates++
		case Delete:
			res.Deletes++
		case NoChange:
			res.Unchanged++
		}
	}
	return res
}
