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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	ds := New("test-project", "dev")
	require.NoError(t, store.Save(ctx, ds))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "test-project", loaded.Project)
	assert.Equal(t, "dev", loaded.Environment)
}

func TestLocalStoreLoadNonexistent(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLocalStoreExists(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, New("p", "dev")))

	exists, err = store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStoreLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	lock, err := store.AcquireLock(ctx, "test-holder")
	require.NoError(t, err)

	locked, err := store.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, store.ReleaseLock(ctx, lock.LockID))

	locked, err = store.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLocalStoreLockConflict(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	_, err := store.AcquireLock(ctx, "holder-1")
	require.NoError(t, err)

	_, err = store.AcquireLock(ctx, "holder-2")
	assert.Error(t, err)

	var lockedErr *ErrLockedByOther
	assert.ErrorAs(t, err, &lockedErr)
}

func TestLocalStoreReleaseLockMismatchIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	_, err := store.AcquireLock(ctx, "holder-1")
	require.NoError(t, err)

	require.NoError(t, store.ReleaseLock(ctx, "not-the-real-lock-id"))

	locked, err := store.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked, "mismatched release must not clear a lock held by another holder")
}

func TestLocalStoreStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	ds := New("p", "dev")
	rec := NewPodRecord("web", "p-1", "hash-1")
	ds.SetPod(rec)
	ds.AddHistory(NewHistoryEntry(OperationCreate, "hash-1", []string{"web"}))

	require.NoError(t, store.Save(ctx, ds))
	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	got, ok := loaded.GetPod("web")
	require.True(t, ok)
	assert.Equal(t, "p-1", got.ProviderID)
	assert.Len(t, loaded.History, 1)
}

func TestLocalStoreHistoryBound(t *testing.T) {
	ds := New("p", "dev")
	for i := 0; i < MaxHistory+10; i++ {
		ds.AddHistory(NewHistoryEntry(OperationReconcile, "hash", nil))
	}
	assert.Len(t, ds.History, MaxHistory)
}
