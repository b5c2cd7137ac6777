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

// Package provider declares the contract the executor and reconciler use
// to drive and observe pods on a GPU-pod cloud, independent of which
// backend (RunPod, or any future provider) implements it.
package provider

import "context"

// Tag keys every provisioned pod carries so observed state can be traced
// back to the project/environment/pod it belongs to and the spec it was
// created from.
const (
	TagProject  = "halldyll_project"
	TagEnv      = "halldyll_env"
	TagPod      = "halldyll_pod"
	TagSpecHash = "halldyll_spec_hash"
)

// PodStatus is the provider's view of a pod's lifecycle state.
type PodStatus string

const (
	PodStatusRunning  PodStatus = "RUNNING"
	PodStatusStarting PodStatus = "STARTING"
	PodStatusExited   PodStatus = "EXITED"
	PodStatusStopped  PodStatus = "STOPPED"
	PodStatusCreating PodStatus = "CREATING"
	PodStatusUnknown  PodStatus = "UNKNOWN"
)

// ObservedPod is a point-in-time snapshot of a pod as the provider reports
// it, with the project/environment/pod-name/spec-hash tags it was tagged
// with at creation time decoded out for the diff engine's convenience.
type ObservedPod struct {
	ID          string
	Name        string
	Project     string
	Environment string
	PodName     string
	SpecHash    string
	Status      PodStatus
	GPUType     string
	GPUCount    int
	Image       string
	Endpoints   map[int]string
	Tags        map[string]string
}

// CreateRequest is everything a Provisioner needs to bring up one pod.
type CreateRequest struct {
	Name        string
	GPUType     string
	GPUCount    int
	Image       string
	VolumeGB    int
	DiskGB      int
	MountPath   string
	Ports       []string
	Env         map[string]string
	Tags        map[string]string
}

// Provisioner creates, mutates and tears down pods on the provider.
type Provisioner interface {
	CreatePod(ctx context.Context, req CreateRequest) (*ObservedPod, error)
	DeletePod(ctx context.Context, podID string) error
	StopPod(ctx context.Context, podID string) error
	ResumePod(ctx context.Context, podID string) error
}

// Observer queries the provider for the current state of pods it owns.
type Observer interface {
	ListAllPods(ctx context.Context) ([]ObservedPod, error)
	ListProjectPods(ctx context.Context, project, environment string) ([]ObservedPod, error)
	GetPod(ctx context.Context, podID string) (*ObservedPod, error)
}

// HealthStatus reports the outcome of probing a pod's exposed endpoints.
type HealthStatus struct {
	PodID   string
	PodName string
	Healthy bool
	Checks  []EndpointCheck
	Error   string
}

// EndpointCheck is the result of probing one exposed endpoint.
type EndpointCheck struct {
	Port           int
	URL            string
	Healthy        bool
	StatusCode     int
	ResponseTimeMS int64
	Error          string
}

// HealthChecker probes the endpoints exposed by observed pods.
type HealthChecker interface {
	CheckPod(ctx context.Context, pod *ObservedPod, path string, port int) HealthStatus
}
