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

// Package herr defines the error taxonomy shared by the planner,
// executor and reconciler: config, state, RunPod, plan and reconcile
// errors, each carrying enough structure for callers to branch on it
// and a uniform retry policy.
package herr

import (
	"fmt"
	"time"
)

// Retryable describes an error that knows whether a caller should retry
// it, and after how long. None of this package's error types implements
// it; retry decisions go through the package-level IsRetryable and
// RetryDelay functions.
type Retryable interface {
	error
	IsRetryable() bool
	RetryDelay() time.Duration
}

// ConfigError reports a problem found while loading or validating a
// deployment configuration.
type ConfigError struct {
	Kind     string
	Path     string
	Message  string
	Field    string
	Resource string
	Name     string
	GPUType  string
	Spec     string
	Cycle    string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case "file_not_found":
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case "parse_error":
		return fmt.Sprintf("failed to parse configuration: %s", e.Message)
	case "validation_error":
		if e.Field != "" {
			return fmt.Sprintf("configuration validation failed: %s (field: %s)", e.Message, e.Field)
		}
		return fmt.Sprintf("configuration validation failed: %s", e.Message)
	case "missing_env_var":
		return fmt.Sprintf("missing environment variable: %s", e.Name)
	case "duplicate_name":
		return fmt.Sprintf("duplicate %s name: %s", e.Resource, e.Name)
	case "invalid_gpu_type":
		return fmt.Sprintf("invalid GPU type: %s", e.GPUType)
	case "invalid_port":
		return fmt.Sprintf("invalid port specification: %s", e.Spec)
	case "circular_dependency":
		return fmt.Sprintf("circular dependency detected: %s", e.Cycle)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

func NewFileNotFound(path string) *ConfigError {
	return &ConfigError{Kind: "file_not_found", Path: path}
}

func NewParseError(message string) *ConfigError {
	return &ConfigError{Kind: "parse_error", Message: message}
}

func NewValidationError(message, field string) *ConfigError {
	return &ConfigError{Kind: "validation_error", Message: message, Field: field}
}

func NewDuplicateName(resourceType, name string) *ConfigError {
	return &ConfigError{Kind: "duplicate_name", Resource: resourceType, Name: name}
}

func NewInvalidGPUType(gpuType string) *ConfigError {
	return &ConfigError{Kind: "invalid_gpu_type", GPUType: gpuType}
}

func NewInvalidPort(spec string) *ConfigError {
	return &ConfigError{Kind: "invalid_port", Spec: spec}
}

// StateError reports a problem in the state store layer. The local and
// remote backends raise their own errors (state.ErrLockedByOther,
// state.ErrCorrupted) for control-flow checks via errors.As, and the
// reconciler and CLI return those as they are; they are not wrapped in a
// StateError.
type StateError struct {
	Kind     string
	Path     string
	Message  string
	Holder   string
	Since    string
	Expected string
	Found    string
}

func (e *StateError) Error() string {
	switch e.Kind {
	case "not_found":
		return fmt.Sprintf("state file not found: %s", e.Path)
	case "corrupted":
		return fmt.Sprintf("state is corrupted: %s", e.Message)
	case "lock_failed":
		return fmt.Sprintf("failed to acquire state lock: %s", e.Message)
	case "locked_by_other":
		return fmt.Sprintf("state is locked by another process (lock holder: %s, since: %s)", e.Holder, e.Since)
	case "s3_error":
		return fmt.Sprintf("S3 state backend error: %s", e.Message)
	case "serialization_error":
		return fmt.Sprintf("state serialization error: %s", e.Message)
	case "version_mismatch":
		return fmt.Sprintf("state version mismatch: expected %s, found %s", e.Expected, e.Found)
	default:
		return fmt.Sprintf("state error: %s", e.Message)
	}
}

func NewLockFailed(message string) *StateError {
	return &StateError{Kind: "lock_failed", Message: message}
}

func NewLockedByOther(holder, since string) *StateError {
	return &StateError{Kind: "locked_by_other", Holder: holder, Since: since}
}

func NewVersionMismatch(expected, found string) *StateError {
	return &StateError{Kind: "version_mismatch", Expected: expected, Found: found}
}

// RunPodError reports a problem returned by, or while communicating
// with, the RunPod provider API.
type RunPodError struct {
	Kind           string
	Message        string
	Status         int
	RetryAfterSecs uint64
	PodID          string
	GPUType        string
	Region         string
	ExpectedState  string
}

func (e *RunPodError) Error() string {
	switch e.Kind {
	case "authentication_failed":
		return fmt.Sprintf("RunPod authentication failed: %s", e.Message)
	case "api_request_failed":
		return fmt.Sprintf("RunPod API request failed: %d - %s", e.Status, e.Message)
	case "rate_limited":
		return fmt.Sprintf("RunPod API rate limited, retry after %d seconds", e.RetryAfterSecs)
	case "pod_not_found":
		return fmt.Sprintf("pod not found: %s", e.PodID)
	case "gpu_not_available":
		return fmt.Sprintf("GPU type not available: %s in region %s", e.GPUType, e.Region)
	case "insufficient_quota":
		return fmt.Sprintf("insufficient quota: %s", e.Message)
	case "network_error":
		return fmt.Sprintf("network error communicating with RunPod: %s", e.Message)
	case "invalid_response":
		return fmt.Sprintf("invalid response from RunPod API: %s", e.Message)
	case "timeout":
		return fmt.Sprintf("timeout waiting for pod %s to reach state %s", e.PodID, e.ExpectedState)
	default:
		return fmt.Sprintf("RunPod error: %s", e.Message)
	}
}

func NewAuthenticationFailed(message string) *RunPodError {
	return &RunPodError{Kind: "authentication_failed", Message: message}
}

func NewAPIRequestFailed(status int, message string) *RunPodError {
	return &RunPodError{Kind: "api_request_failed", Status: status, Message: message}
}

func NewRateLimited(retryAfterSecs uint64) *RunPodError {
	return &RunPodError{Kind: "rate_limited", RetryAfterSecs: retryAfterSecs}
}

func NewPodNotFound(podID string) *RunPodError {
	return &RunPodError{Kind: "pod_not_found", PodID: podID}
}

func NewGPUNotAvailable(gpuType, region string) *RunPodError {
	return &RunPodError{Kind: "gpu_not_available", GPUType: gpuType, Region: region}
}

func NewNetworkError(message string) *RunPodError {
	return &RunPodError{Kind: "network_error", Message: message}
}

func NewInvalidResponse(message string) *RunPodError {
	return &RunPodError{Kind: "invalid_response", Message: message}
}

func NewTimeout(podID, expectedState string) *RunPodError {
	return &RunPodError{Kind: "timeout", PodID: podID, ExpectedState: expectedState}
}

// PlanError reports a problem found while assembling an execution plan.
type PlanError struct {
	Kind      string
	Message   string
	Estimated float64
	Limit     float64
	Needed    uint32
	Available uint32
}

func (e *PlanError) Error() string {
	switch e.Kind {
	case "empty_plan":
		return "plan is empty: no changes required"
	case "budget_exceeded":
		return fmt.Sprintf("plan would exceed budget: estimated $%.2f/hr, limit $%.2f/hr", e.Estimated, e.Limit)
	case "gpu_quota_exceeded":
		return fmt.Sprintf("plan would exceed GPU quota: needs %d, available %d", e.Needed, e.Available)
	case "conflicting_operations":
		return fmt.Sprintf("conflicting operations in plan: %s", e.Message)
	case "dependency_resolution_failed":
		return fmt.Sprintf("failed to resolve dependencies: %s", e.Message)
	default:
		return fmt.Sprintf("plan error: %s", e.Message)
	}
}

var ErrEmptyPlan = &PlanError{Kind: "empty_plan"}

func NewGPUQuotaExceeded(needed, available uint32) *PlanError {
	return &PlanError{Kind: "gpu_quota_exceeded", Needed: needed, Available: available}
}

func NewBudgetExceeded(estimated, limit float64) *PlanError {
	return &PlanError{Kind: "budget_exceeded", Estimated: estimated, Limit: limit}
}

// ReconcileError reports a problem encountered while driving observed
// state toward desired state.
type ReconcileError struct {
	Kind             string
	ResourceType     string
	Name             string
	Reason           string
	Attempts         uint32
	Resource         string
	DriftDescription string
}

func (e *ReconcileError) Error() string {
	switch e.Kind {
	case "resource_reconcile_failed":
		return fmt.Sprintf("failed to reconcile %s '%s': %s", e.ResourceType, e.Name, e.Reason)
	case "max_retries_exceeded":
		return fmt.Sprintf("maximum retry attempts (%d) exceeded for %s", e.Attempts, e.Resource)
	case "drift_detected":
		return fmt.Sprintf("drift detected for %s: %s", e.Resource, e.DriftDescription)
	case "aborted":
		return fmt.Sprintf("reconciliation aborted: %s", e.Reason)
	default:
		return fmt.Sprintf("reconciliation error: %s", e.Reason)
	}
}

func NewResourceReconcileFailed(resourceType, name, reason string) *ReconcileError {
	return &ReconcileError{Kind: "resource_reconcile_failed", ResourceType: resourceType, Name: name, Reason: reason}
}

func NewMaxRetriesExceeded(attempts uint32, resource string) *ReconcileError {
	return &ReconcileError{Kind: "max_retries_exceeded", Attempts: attempts, Resource: resource}
}

func NewAborted(reason string) *ReconcileError {
	return &ReconcileError{Kind: "aborted", Reason: reason}
}

// IsRetryable mirrors the original system's retry policy: rate-limited
// and network errors from the provider are retryable, as are state
// lock-acquisition failures. Everything else (auth failures, quota
// exhaustion, malformed config) requires operator intervention.
func IsRetryable(err error) bool {
	switch e := err.(type) {
	case *RunPodError:
		return e.Kind == "rate_limited" || e.Kind == "network_error"
	case *StateError:
		return e.Kind == "lock_failed"
	}
	return false
}

// RetryDelay returns the suggested wait before retrying err, or zero if
// err carries no retry guidance.
func RetryDelay(err error) time.Duration {
	switch e := err.(type) {
	case *RunPodError:
		switch e.Kind {
		case "rate_limited":
			return time.Duration(e.RetryAfterSecs) * time.Second
		case "network_error":
			return 5 * time.Second
		}
	case *StateError:
		if e.Kind == "lock_failed" {
			return 2 * time.Second
		}
	}
	return 0
}
