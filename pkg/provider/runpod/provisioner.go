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

package runpod

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/halldyll/haldctl/pkg/herr"
	"github.com/halldyll/haldctl/pkg/provider"
)

const (
	defaultVolumeGB = 50
	defaultDiskGB   = 20

	gpuTypeCacheKey = "gpu-types"
	gpuTypeCacheTTL = 10 * time.Minute
)

// Provisioner creates, mutates and tears down pods on RunPod. GPU type
// names are resolved against the catalog fetched by InitGPUTypes before
// any pod is created. The catalog rarely changes within a run, so it's
// cached for a few minutes to spare repeated commands (plan then apply,
// or a reconcile retry loop) a redundant round trip.
type Provisioner struct {
	client     *client
	gpuTypeMap map[string]string
	cache      *cache.Cache
}

var _ provider.Provisioner = (*Provisioner)(nil)

func NewProvisioner(apiKey string) *Provisioner {
	return &Provisioner{
		client:     newClient(apiKey),
		gpuTypeMap: map[string]string{},
		cache:      cache.New(gpuTypeCacheTTL, 2*gpuTypeCacheTTL),
	}
}

// InitGPUTypes fetches the current GPU catalog and builds the
// display-name/ID lookup used to resolve a config's gpu.type field.
func (p *Provisioner) InitGPUTypes(ctx context.Context) error {
	if cached, ok := p.cache.Get(gpuTypeCacheKey); ok {
		p.gpuTypeMap = cached.(map[string]string)
		return nil
	}

	types, err := p.client.listGPUTypes(ctx)
	if err != nil {
		return err
	}
	gpuTypeMap := make(map[string]string, len(types)*2)
	for _, t := range types {
		gpuTypeMap[t.DisplayName] = t.ID
		gpuTypeMap[t.ID] = t.ID
	}
	p.gpuTypeMap = gpuTypeMap
	p.cache.SetDefault(gpuTypeCacheKey, gpuTypeMap)
	return nil
}

func (p *Provisioner) resolveGPUType(gpuType string, fallback []string) string {
	if id, ok := p.gpuTypeMap[gpuType]; ok {
		return id
	}
	for _, f := range fallback {
		if id, ok := p.gpuTypeMap[f]; ok {
			return id
		}
	}
	return gpuType
}

func (p *Provisioner) CreatePod(ctx context.Context, req provider.CreateRequest) (*provider.ObservedPod, error) {
	gpuTypeID := p.resolveGPUType(req.GPUType, nil)

	volumeGB := req.VolumeGB
	if volumeGB == 0 {
		volumeGB = defaultVolumeGB
	}
	diskGB := req.DiskGB
	if diskGB == 0 {
		diskGB = defaultDiskGB
	}

	env := make([]podEnvVar, 0, len(req.Env))
	for k, v := range req.Env {
		env = append(env, podEnvVar{Key: k, Value: v})
	}

	wireReq := createPodRequest{
		CloudType:         "SECURE",
		GPUTypeID:         gpuTypeID,
		GPUCount:          req.GPUCount,
		Name:              req.Name,
		ImageName:         req.Image,
		VolumeInGB:        volumeGB,
		ContainerDiskInGB: diskGB,
		VolumeMountPath:   req.MountPath,
		Ports:             strings.Join(req.Ports, ","),
		Env:               env,
		CustomTags:        req.Tags,
	}

	created, err := p.client.createPod(ctx, wireReq)
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, herr.NewInvalidResponse("RunPod returned a pod with no ID")
	}

	obs := toObserved(*created)
	obs.Tags = req.Tags
	obs.Project = req.Tags[provider.TagProject]
	obs.Environment = req.Tags[provider.TagEnv]
	obs.PodName = req.Tags[provider.TagPod]
	obs.SpecHash = req.Tags[provider.TagSpecHash]
	obs.GPUType = req.GPUType
	obs.GPUCount = req.GPUCount
	return &obs, nil
}

func (p *Provisioner) DeletePod(ctx context.Context, podID string) error {
	return p.client.terminatePod(ctx, podID)
}

func (p *Provisioner) StopPod(ctx context.Context, podID string) error {
	return p.client.stopPod(ctx, podID)
}

func (p *Provisioner) ResumePod(ctx context.Context, podID string) error {
	return p.client.resumePod(ctx, podID)
}
