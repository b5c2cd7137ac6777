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

package herr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunPodErrorMessages(t *testing.T) {
	assert.Equal(t, "pod not found: pod-123", NewPodNotFound("pod-123").Error())
	assert.Equal(t, "RunPod API rate limited, retry after 30 seconds", NewRateLimited(30).Error())
}

func TestRetryPolicyMatchesProviderErrors(t *testing.T) {
	rl := NewRateLimited(45)
	assert.True(t, IsRetryable(rl))
	assert.Equal(t, 45*time.Second, RetryDelay(rl))

	net := NewNetworkError("connection reset")
	assert.True(t, IsRetryable(net))
	assert.Equal(t, 5*time.Second, RetryDelay(net))

	auth := NewAuthenticationFailed("bad key")
	assert.False(t, IsRetryable(auth))
	assert.Equal(t, time.Duration(0), RetryDelay(auth))
}

func TestLockFailedIsRetryable(t *testing.T) {
	lockErr := NewLockFailed("held by another process")
	assert.True(t, IsRetryable(lockErr))
	assert.Equal(t, 2*time.Second, RetryDelay(lockErr))
}

func TestPlanErrorMessages(t *testing.T) {
	assert.Equal(t, "plan is empty: no changes required", ErrEmptyPlan.Error())
	assert.Contains(t, NewGPUQuotaExceeded(10, 4).Error(), "needs 10, available 4")
}

func TestReconcileErrorMessages(t *testing.T) {
	err := NewResourceReconcileFailed("pod", "web", "timeout waiting for running state")
	assert.Contains(t, err.Error(), "pod 'web'")
}
