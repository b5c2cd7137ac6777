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
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the subset of *s3.Client this
// package uses, so the remote backend's logic can be exercised without a
// real bucket.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestRemoteStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStoreWithClient(newFakeS3(), "bucket", "proj/dev")

	ds := New("proj", "dev")
	require.NoError(t, store.Save(ctx, ds))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "proj", loaded.Project)
}

func TestRemoteStoreLoadMissingIsNilNotError(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStoreWithClient(newFakeS3(), "bucket", "")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRemoteStoreLockExclusivity(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStoreWithClient(newFakeS3(), "bucket", "")

	_, err := store.AcquireLock(ctx, "holder-1")
	require.NoError(t, err)

	_, err = store.AcquireLock(ctx, "holder-2")
	assert.Error(t, err)
}

func TestRemoteStoreReleaseLockMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStoreWithClient(newFakeS3(), "bucket", "")

	lock, err := store.AcquireLock(ctx, "holder-1")
	require.NoError(t, err)

	require.NoError(t, store.ReleaseLock(ctx, "wrong-id"))
	locked, err := store.IsLocked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, store.ReleaseLock(ctx, lock.LockID))
	locked, err = store.IsLocked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}
