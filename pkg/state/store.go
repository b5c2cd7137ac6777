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
	"context"
	"errors"
)

// ErrNotLocked reports that no lock blob exists. Neither backend returns
// it: ReleaseLock returns nil and GetLockInfo returns (nil, nil) when no
// lock blob exists.
var ErrNotLocked = errors.New("state: not locked")

// ErrLockedByOther is returned by AcquireLock when a live lock owned by a
// different holder is already present.
type ErrLockedByOther struct {
	Holder string
	Since  string
}

func (e *ErrLockedByOther) Error() string {
	return "state: locked by " + e.Holder + " since " + e.Since
}

// ErrCorrupted is returned when a state or lock blob exists but fails to
// parse. It is never conflated with the "missing" case.
type ErrCorrupted struct {
	Path string
	Err  error
}

func (e *ErrCorrupted) Error() string {
	return "state: corrupted blob at " + e.Path + ": " + e.Err.Error()
}

func (e *ErrCorrupted) Unwrap() error { return e.Err }

// Store is the capability set both state backends (local filesystem,
// remote object store) implement. A caller binds to this interface
// without branching on backend type anywhere above this package.
type Store interface {
	// Load returns the persisted state, or (nil, nil) if no blob exists
	// yet — a missing blob is not an error.
	Load(ctx context.Context) (*DeploymentState, error)
	// Save atomically persists s.
	Save(ctx context.Context, s *DeploymentState) error
	// Delete removes the persisted state blob, if any.
	Delete(ctx context.Context) error
	// Exists reports whether a state blob is present.
	Exists(ctx context.Context) (bool, error)

	// AcquireLock attempts to take the lock for holder. If holder is
	// empty, a holder id is generated. Fails with *ErrLockedByOther if a
	// live lock belonging to someone else is present.
	AcquireLock(ctx context.Context, holder string) (*LockHandle, error)
	// ReleaseLock deletes the lock blob only if its lock_id matches
	// lockID; a mismatch is a silent no-op, since another holder
	// legitimately owns the lock by then.
	ReleaseLock(ctx context.Context, lockID string) error
	// GetLockInfo returns the current lock blob contents, or (nil, nil)
	// if unlocked.
	GetLockInfo(ctx context.Context) (*LockInfo, error)
	// IsLocked reports whether a live (non-expired) lock is present.
	IsLocked(ctx context.Context) (bool, error)
	// ForceUnlock deletes the lock blob unconditionally. A policy-level
	// operation, not part of the scoped-acquisition discipline.
	ForceUnlock(ctx context.Context) error

	// BackendType returns "local" or "s3".
	BackendType() string
}
