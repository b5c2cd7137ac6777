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

package state

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// NewLockInfo mints a fresh LockInfo for holder with the default 300s TTL.
func NewLockInfo(holder string) LockInfo {
	now := time.Now().UTC()
	return LockInfo{
		LockID:     uuid.NewString(),
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(DefaultLockTTL),
	}
}

// GenerateHolderID builds a "{hostname}-{pid}-{8 hex}" identifier for the
// current process, used when AcquireLock is called without an explicit
// holder.
func GenerateHolderID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	pid := os.Getpid()
	suffix := uuid.NewString()[:8]

	return fmt.Sprintf("%s-%d-%s", hostname, pid, suffix)
}
