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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/halldyll/haldctl/pkg/herr"
)

const (
	apiURL            = "https://api.runpod.io/graphql"
	defaultTimeout    = 30 * time.Second
	maxRetries        = 3
	retryBaseDelay    = time.Second
)

// client is the GraphQL-over-HTTP transport to the RunPod API. There is
// no GraphQL client library anywhere in the dependency pack this project
// draws from, so the request/response envelope is handled directly with
// net/http and encoding/json rather than pulling in a new one.
type client struct {
	http   *http.Client
	apiKey string
}

func newClient(apiKey string) *client {
	return &client{
		http:   &http.Client{Timeout: defaultTimeout},
		apiKey: apiKey,
	}
}

func withTimeout(apiKey string, timeout time.Duration) *client {
	return &client{
		http:   &http.Client{Timeout: timeout},
		apiKey: apiKey,
	}
}

type graphQLRequest struct {
	Query     string      `json:"query"`
	Variables interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// execute runs one GraphQL query/mutation, retrying on transient
// failures (rate limiting and network errors) with a linearly increasing
// backoff, matching the provider's own retry policy for these errors. A
// rate-limited response waits for its Retry-After value instead.
func (c *client) execute(ctx context.Context, query string, variables interface{}, out interface{}) error {
	return retry.Do(
		func() error { return c.executeOnce(ctx, query, variables, out) },
		retry.Context(ctx),
		retry.Attempts(maxRetries),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			if rp, ok := err.(*herr.RunPodError); ok && rp.Kind == "rate_limited" {
				return herr.RetryDelay(err)
			}
			return retryBaseDelay * time.Duration(n+1)
		}),
		retry.RetryIf(func(err error) bool { return herr.IsRetryable(err) }),
		retry.LastErrorOnly(true),
	)
}

func (c *client) executeOnce(ctx context.Context, query string, variables interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return herr.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := uint64(60)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, perr := strconv.ParseUint(v, 10, 64); perr == nil {
				retryAfter = secs
			}
		}
		return herr.NewRateLimited(retryAfter)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return herr.NewAuthenticationFailed(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	var envelope graphQLResponse
	if derr := json.NewDecoder(resp.Body).Decode(&envelope); derr != nil {
		return herr.NewInvalidResponse(derr.Error())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return herr.NewAPIRequestFailed(resp.StatusCode, firstErrorMessage(envelope.Errors))
	}

	if len(envelope.Errors) > 0 {
		return herr.NewAPIRequestFailed(resp.StatusCode, firstErrorMessage(envelope.Errors))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func firstErrorMessage(errs []graphQLError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	return errs[0].Message
}

func (c *client) listPods(ctx context.Context) ([]pod, error) {
	const query = `
		query {
			myself {
				pods {
					id
					name
					desiredStatus
					imageName
					gpuCount
					machine { gpuTypeId }
					runtime { ports { ip privatePort publicPort type } }
					env { key value }
					customTags
				}
			}
		}
	`
	var resp struct {
		Myself struct {
			Pods []pod `json:"pods"`
		} `json:"myself"`
	}
	if err := c.execute(ctx, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Myself.Pods, nil
}

func (c *client) getPod(ctx context.Context, podID string) (*pod, error) {
	const query = `
		query GetPod($podId: String!) {
			pod(input: { podId: $podId }) {
				id
				name
				desiredStatus
				imageName
				gpuCount
				machine { gpuTypeId }
				runtime { ports { ip privatePort publicPort type } }
				env { key value }
				customTags
			}
		}
	`
	var resp struct {
		Pod *pod `json:"pod"`
	}
	if err := c.execute(ctx, query, map[string]string{"podId": podID}, &resp); err != nil {
		return nil, err
	}
	if resp.Pod == nil {
		return nil, herr.NewPodNotFound(podID)
	}
	return resp.Pod, nil
}

func (c *client) createPod(ctx context.Context, req createPodRequest) (*pod, error) {
	const query = `
		mutation CreatePod($input: PodFindAndDeployOnDemandInput!) {
			podFindAndDeployOnDemand(input: $input) {
				id
				name
				desiredStatus
				imageName
				gpuCount
			}
		}
	`
	var resp struct {
		Pod pod `json:"podFindAndDeployOnDemand"`
	}
	if err := c.execute(ctx, query, map[string]interface{}{"input": req}, &resp); err != nil {
		return nil, err
	}
	return &resp.Pod, nil
}

func (c *client) stopPod(ctx context.Context, podID string) error {
	const query = `
		mutation StopPod($podId: String!) {
			podStop(input: { podId: $podId }) { id }
		}
	`
	return c.execute(ctx, query, map[string]string{"podId": podID}, nil)
}

func (c *client) resumePod(ctx context.Context, podID string) error {
	const query = `
		mutation ResumePod($podId: String!) {
			podResume(input: { podId: $podId }) { id }
		}
	`
	return c.execute(ctx, query, map[string]string{"podId": podID}, nil)
}

func (c *client) terminatePod(ctx context.Context, podID string) error {
	const query = `
		mutation TerminatePod($podId: String!) {
			podTerminate(input: { podId: $podId })
		}
	`
	err := c.execute(ctx, query, map[string]string{"podId": podID}, nil)
	if err != nil && isPodNotFound(err) {
		return nil
	}
	return err
}

func isPodNotFound(err error) bool {
	rpErr, ok := err.(*herr.RunPodError)
	return ok && rpErr.Kind == "pod_not_found"
}

func (c *client) listGPUTypes(ctx context.Context) ([]gpuType, error) {
	const query = `
		query {
			gpuTypes {
				id
				displayName
				memoryInGb
				secureCloud
				communityCloud
				securePrice
				communityPrice
			}
		}
	`
	var resp struct {
		GPUTypes []gpuType `json:"gpuTypes"`
	}
	if err := c.execute(ctx, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.GPUTypes, nil
}

func (c *client) validateAPIKey(ctx context.Context) (bool, error) {
	const query = `query { myself { id } }`
	err := c.execute(ctx, query, nil, nil)
	if err == nil {
		return true, nil
	}
	if rpErr, ok := err.(*herr.RunPodError); ok && rpErr.Kind == "authentication_failed" {
		return false, nil
	}
	return false, err
}
