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
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// KnownGPUTypes is the catalog of GPU models the provider is known to
// offer. A pod declaring a type or fallback outside this list is not
// rejected, only warned about, since the provider's catalog changes more
// often than this binary is rebuilt.
var KnownGPUTypes = map[string]bool{
	"NVIDIA A40":                       true,
	"NVIDIA A100 80GB PCIe":            true,
	"NVIDIA A100-SXM4-80GB":            true,
	"NVIDIA GeForce RTX 3070":          true,
	"NVIDIA GeForce RTX 3080":          true,
	"NVIDIA GeForce RTX 3080 Ti":       true,
	"NVIDIA GeForce RTX 3090":          true,
	"NVIDIA GeForce RTX 3090 Ti":       true,
	"NVIDIA GeForce RTX 4070 Ti":       true,
	"NVIDIA GeForce RTX 4080":          true,
	"NVIDIA GeForce RTX 4090":          true,
	"NVIDIA H100 80GB HBM3":            true,
	"NVIDIA H100 PCIe":                 true,
	"NVIDIA L4":                        true,
	"NVIDIA L40":                       true,
	"NVIDIA L40S":                      true,
	"NVIDIA RTX 4000 Ada Generation":   true,
	"NVIDIA RTX 5000 Ada Generation":   true,
	"NVIDIA RTX 6000 Ada Generation":   true,
	"NVIDIA RTX A4000":                 true,
	"NVIDIA RTX A4500":                 true,
	"NVIDIA RTX A5000":                 true,
	"NVIDIA RTX A6000":                 true,
}

// ValidationError is one field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult carries both fatal errors and non-fatal warnings
// collected over a full document.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
}

// IsValid reports whether no errors were collected.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates a DeployConfig against both structural constraints
// (enforced by go-playground/validator struct tags) and the cross-field
// invariants spec.md §3 names (unique names, port/volume collisions,
// guardrail consistency, name format).
type Validator struct {
	structural *playground.Validate
}

// NewValidator returns a ready-to-use Validator.
func NewValidator() *Validator {
	return &Validator{structural: playground.New()}
}

// Validate runs structural validation followed by the cross-field rules,
// returning an aggregated error (via hashicorp/go-multierror) built from
// every ValidationResult.Errors entry, along with the full
// ValidationResult for callers (the CLI) that want to display every
// problem, warnings included.
func (v *Validator) Validate(cfg *DeployConfig) (*ValidationResult, error) {
	result := &ValidationResult{}

	if err := v.structural.Struct(cfg); err != nil {
		if verrs, ok := err.(playground.ValidationErrors); ok {
			for _, fe := range verrs {
				result.Errors = append(result.Errors, ValidationError{
					Field:   fe.Namespace(),
					Message: fe.Tag(),
				})
			}
		} else {
			return result, err
		}
	}

	v.validateProject(&cfg.Project, result)
	v.validateState(&cfg.State, result)
	v.validatePods(cfg.Pods, result)
	v.validateGuardrails(cfg, result)

	if !result.IsValid() {
		var merr *multierror.Error
		for _, e := range result.Errors {
			merr = multierror.Append(merr, e)
		}
		return result, merr.ErrorOrNil()
	}
	return result, nil
}

func (v *Validator) validateProject(p *Project, result *ValidationResult) {
	if p.Name == "" {
		result.Errors = append(result.Errors, ValidationError{"project.name", "project name cannot be empty"})
	} else if !IsValidName(p.Name) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "project.name",
			Message: fmt.Sprintf("project name '%s' is invalid: must be lowercase alphanumeric with hyphens", p.Name),
		})
	}
	if p.Env == "" {
		result.Errors = append(result.Errors, ValidationError{"project.env", "environment cannot be empty"})
	}
}

func (v *Validator) validateState(s *StateBackend, result *ValidationResult) {
	if s.Type == "s3" && s.Bucket == "" {
		result.Errors = append(result.Errors, ValidationError{"state.bucket", "s3 bucket name is required when using the s3 backend"})
	}
}

func (v *Validator) validatePods(pods []PodSpec, result *ValidationResult) {
	if len(pods) == 0 {
		result.Warnings = append(result.Warnings, "no pods defined in configuration")
		return
	}

	seenNames := map[string]bool{}
	allPorts := map[int]bool{}

	for i, pod := range pods {
		prefix := fmt.Sprintf("pods[%d]", i)

		if seenNames[pod.Name] {
			result.Errors = append(result.Errors, ValidationError{prefix + ".name", fmt.Sprintf("duplicate pod name: %s", pod.Name)})
		} else {
			seenNames[pod.Name] = true
		}

		if !IsValidName(pod.Name) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("pod name '%s' is invalid: must be lowercase alphanumeric with hyphens", pod.Name),
			})
		}

		v.validateGPU(&pod.GPU, prefix, result)
		v.validatePorts(pod.Ports, prefix, allPorts, result)
		v.validateVolumes(pod.Volumes, prefix, result)
		v.validateRuntime(&pod.Runtime, prefix, result)
		v.validateModels(pod.Models, prefix, result)
	}
}

func (v *Validator) validateGPU(gpu *GPUSpec, prefix string, result *ValidationResult) {
	if gpu.Count == 0 {
		result.Errors = append(result.Errors, ValidationError{prefix + ".gpu.count", "gpu count must be at least 1"})
	}
	if gpu.Count > 8 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s.gpu.count: requesting %d gpus is unusual", prefix, gpu.Count))
	}
	if !KnownGPUTypes[gpu.Type] {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s.gpu.type: unknown gpu type '%s', this may fail if not available", prefix, gpu.Type))
	}
	for i, fb := range gpu.Fallback {
		if !KnownGPUTypes[fb] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s.gpu.fallback[%d]: unknown fallback gpu type '%s'", prefix, i, fb))
		}
	}
}

func (v *Validator) validatePorts(ports []PortSpec, prefix string, allPorts map[int]bool, result *ValidationResult) {
	podPorts := map[int]bool{}
	for i, p := range ports {
		if podPorts[p.Port] {
			result.Errors = append(result.Errors, ValidationError{fmt.Sprintf("%s.ports[%d]", prefix, i), fmt.Sprintf("duplicate port %d in pod", p.Port)})
		} else {
			podPorts[p.Port] = true
		}
		if p.Port < 1024 && p.Port != 22 && p.Port != 80 && p.Port != 443 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s.ports[%d]: port %d is in the reserved range (<1024)", prefix, i, p.Port))
		}
	}
	for p := range podPorts {
		allPorts[p] = true
	}
}

func (v *Validator) validateVolumes(volumes []VolumeSpec, prefix string, result *ValidationResult) {
	seenNames := map[string]bool{}
	seenMounts := map[string]bool{}

	for i, vol := range volumes {
		if seenNames[vol.Name] {
			result.Errors = append(result.Errors, ValidationError{fmt.Sprintf("%s.volumes[%d].name", prefix, i), fmt.Sprintf("duplicate volume name: %s", vol.Name)})
		} else {
			seenNames[vol.Name] = true
		}

		if seenMounts[vol.Mount] {
			result.Errors = append(result.Errors, ValidationError{fmt.Sprintf("%s.volumes[%d].mount", prefix, i), fmt.Sprintf("duplicate mount path: %s", vol.Mount)})
		} else {
			seenMounts[vol.Mount] = true
		}

		if !strings.HasPrefix(vol.Mount, "/") {
			result.Errors = append(result.Errors, ValidationError{fmt.Sprintf("%s.volumes[%d].mount", prefix, i), fmt.Sprintf("mount path must be absolute: %s", vol.Mount)})
		}
	}
}

func (v *Validator) validateRuntime(rt *RuntimeSpec, prefix string, result *ValidationResult) {
	if rt.Image == "" {
		result.Errors = append(result.Errors, ValidationError{prefix + ".runtime.image", "container image cannot be empty"})
	}
	if strings.HasSuffix(rt.Image, ":latest") {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s.runtime.image: using ':latest' is not recommended for production", prefix))
	}
}

func (v *Validator) validateModels(models []ModelSpec, prefix string, result *ValidationResult) {
	seenIDs := map[string]bool{}
	for i, m := range models {
		if seenIDs[m.ID] {
			result.Errors = append(result.Errors, ValidationError{fmt.Sprintf("%s.models[%d].id", prefix, i), fmt.Sprintf("duplicate model id: %s", m.ID)})
		} else {
			seenIDs[m.ID] = true
		}
	}
}

func (v *Validator) validateGuardrails(cfg *DeployConfig, result *ValidationResult) {
	g := cfg.Guardrails
	if g == nil {
		return
	}

	if g.MaxHourlyCost != nil && *g.MaxHourlyCost <= 0 {
		result.Errors = append(result.Errors, ValidationError{"guardrails.max_hourly_cost", "maximum hourly cost must be positive"})
	}

	if g.MaxGPUs != nil {
		total := TotalGPUs(cfg)
		if total > *g.MaxGPUs {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "guardrails.max_gpus",
				Message: fmt.Sprintf("configuration requires %d gpus but max_gpus is %d", total, *g.MaxGPUs),
			})
		}
	}

	if g.TTLHours != nil && *g.TTLHours < 1 {
		result.Errors = append(result.Errors, ValidationError{"guardrails.ttl_hours", "ttl must be at least 1 hour"})
	}
}

// TotalGPUs sums gpu.count across every declared pod.
func TotalGPUs(cfg *DeployConfig) int {
	total := 0
	for _, p := range cfg.Pods {
		total += p.GPU.Count
	}
	return total
}

// IsValidName reports whether name follows the naming convention shared by
// project and pod names: lowercase alphanumeric with hyphens, starting with
// a letter, never ending in a hyphen, never containing "--".
func IsValidName(name string) bool {
	if name == "" {
		return false
	}

	for i, c := range name {
		if i == 0 {
			if c < 'a' || c > 'z' {
				return false
			}
			continue
		}
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' {
			return false
		}
	}

	if strings.HasSuffix(name, "-") {
		return false
	}
	if strings.Contains(name, "--") {
		return false
	}

	return true
}
