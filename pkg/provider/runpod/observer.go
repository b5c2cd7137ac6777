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
	"fmt"

	"github.com/halldyll/haldctl/pkg/provider"
)

// Observer queries RunPod for the current state of pods it owns,
// decoding the project/environment/pod/spec-hash tags back out of each
// pod's custom tags.
type Observer struct {
	client *client
}

var _ provider.Observer = (*Observer)(nil)

func NewObserver(apiKey string) *Observer {
	return &Observer{client: newClient(apiKey)}
}

func (o *Observer) ListAllPods(ctx context.Context) ([]provider.ObservedPod, error) {
	pods, err := o.client.listPods(ctx)
	if err != nil {
		return nil, err
	}
	observed := make([]provider.ObservedPod, 0, len(pods))
	for _, p := range pods {
		observed = append(observed, toObserved(p))
	}
	return observed, nil
}

func (o *Observer) ListProjectPods(ctx context.Context, project, environment string) ([]provider.ObservedPod, error) {
	all, err := o.ListAllPods(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]provider.ObservedPod, 0, len(all))
	for _, p := range all {
		if p.Project == project && p.Environment == environment {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (o *Observer) GetPod(ctx context.Context, podID string) (*provider.ObservedPod, error) {
	p, err := o.client.getPod(ctx, podID)
	if err != nil {
		return nil, err
	}
	obs := toObserved(*p)
	return &obs, nil
}

func toObserved(p pod) provider.ObservedPod {
	obs := provider.ObservedPod{
		ID:       p.ID,
		Name:     p.Name,
		Status:   provider.PodStatus(p.DesiredStatus),
		Image:    p.ImageName,
		GPUCount: p.GPUCount,
		Tags:     p.CustomTags,
	}
	if obs.Status == "" {
		obs.Status = provider.PodStatusUnknown
	}
	if p.Machine != nil {
		obs.GPUType = p.Machine.GPUTypeID
	}
	if tags := p.CustomTags; tags != nil {
		obs.Project = tags[provider.TagProject]
		obs.Environment = tags[provider.TagEnv]
		obs.PodName = tags[provider.TagPod]
		obs.SpecHash = tags[provider.TagSpecHash]
	}
	if p.Runtime != nil {
		obs.Endpoints = make(map[int]string, len(p.Runtime.Ports))
		for _, port := range p.Runtime.Ports {
			if port.PublicPort != 0 {
				obs.Endpoints[port.PrivatePort] = fmt.Sprintf("https://%s:%d", port.IP, port.PublicPort)
			}
		}
	}
	return obs
}
