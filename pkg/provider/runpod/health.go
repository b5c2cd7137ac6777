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
	"net/http"
	"time"

	"github.com/halldyll/haldctl/pkg/provider"
)

const (
	defaultHealthTimeout = 10 * time.Second
	defaultHealthPath    = "/health"
)

// HealthProbe checks the HTTP endpoints a pod exposes.
type HealthProbe struct {
	http *http.Client
}

var _ provider.HealthChecker = (*HealthProbe)(nil)

func NewHealthProbe() *HealthProbe {
	return &HealthProbe{http: &http.Client{Timeout: defaultHealthTimeout}}
}

// CheckPod probes every endpoint the pod exposes and considers it
// healthy only if all of them respond with a 2xx status.
func (h *HealthProbe) CheckPod(ctx context.Context, pod *provider.ObservedPod, path string, port int) provider.HealthStatus {
	if path == "" {
		path = defaultHealthPath
	}

	status := provider.HealthStatus{PodID: pod.ID, PodName: pod.PodName, Healthy: true}

	endpoints := pod.Endpoints
	if port != 0 {
		if url, ok := pod.Endpoints[port]; ok {
			endpoints = map[int]string{port: url}
		} else {
			endpoints = nil
		}
	}

	if len(endpoints) == 0 {
		status.Healthy = false
		status.Error = "pod exposes no endpoints to probe"
		return status
	}

	for p, baseURL := range endpoints {
		check := h.checkEndpoint(ctx, p, baseURL+path)
		if !check.Healthy {
			status.Healthy = false
		}
		status.Checks = append(status.Checks, check)
	}
	return status
}

func (h *HealthProbe) checkEndpoint(ctx context.Context, port int, url string) provider.EndpointCheck {
	check := provider.EndpointCheck{Port: port, URL: url}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		check.Error = err.Error()
		return check
	}

	resp, err := h.http.Do(req)
	check.ResponseTimeMS = time.Since(start).Milliseconds()
	if err != nil {
		check.Error = err.Error()
		return check
	}
	defer resp.Body.Close()

	check.StatusCode = resp.StatusCode
	check.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !check.Healthy {
		check.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return check
}
