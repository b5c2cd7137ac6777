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

// Package runpod implements provider.Provisioner, provider.Observer and
// provider.HealthChecker against the RunPod GraphQL API.
package runpod

// pod is the wire shape of a RunPod pod as returned by the GraphQL API.
type pod struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	DesiredStatus string       `json:"desiredStatus"`
	ImageName     string       `json:"imageName"`
	Machine       *podMachine  `json:"machine,omitempty"`
	Runtime       *podRuntime  `json:"runtime,omitempty"`
	GPUCount      int          `json:"gpuCount"`
	Env           []podEnvVar  `json:"env,omitempty"`
	CustomTags    map[string]string `json:"customTags,omitempty"`
}

type podMachine struct {
	GPUTypeID string `json:"gpuTypeId"`
}

type podRuntime struct {
	Ports []podPort `json:"ports"`
}

type podPort struct {
	IP         string `json:"ip"`
	PrivatePort int   `json:"privatePort"`
	PublicPort  int   `json:"publicPort"`
	Type        string `json:"type"`
}

type podEnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// createPodRequest is the payload sent to the podFindAndDeployOnDemand
// mutation.
type createPodRequest struct {
	CloudType        string            `json:"cloudType"`
	GPUTypeID        string            `json:"gpuTypeId"`
	GPUCount         int               `json:"gpuCount"`
	Name             string            `json:"name"`
	ImageName        string            `json:"imageName"`
	VolumeInGB       int               `json:"volumeInGb"`
	ContainerDiskInGB int              `json:"containerDiskInGb"`
	VolumeMountPath  string            `json:"volumeMountPath,omitempty"`
	Ports            string            `json:"ports"`
	Env              []podEnvVar       `json:"env,omitempty"`
	CustomTags       map[string]string `json:"customTags,omitempty"`
}

// gpuType is one entry in RunPod's GPU catalog.
type gpuType struct {
	ID             string  `json:"id"`
	DisplayName    string  `json:"displayName"`
	MemoryInGB     int     `json:"memoryInGb"`
	SecureCloud    bool    `json:"secureCloud"`
	CommunityCloud bool    `json:"communityCloud"`
	SecurePrice    float64 `json:"securePrice"`
	CommunityPrice float64 `json:"communityPrice"`
}
