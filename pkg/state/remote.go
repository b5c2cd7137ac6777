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
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	remoteStateKey = "state.json"
	remoteLockKey  = "state.lock"
)

// s3API is the subset of *s3.Client this package calls, so tests can
// substitute a fake implementation without standing up real S3.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// RemoteStore is the S3-compatible object-store Store implementation,
// used for distributed deployments where multiple operators share state.
// A single object PUT provides the atomicity the local backend gets from
// temp-file-plus-rename.
type RemoteStore struct {
	client s3API
	bucket string
	prefix string
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore constructs a RemoteStore for bucket/prefix using
// credentials resolved by the AWS SDK v2 default configuration chain.
func NewRemoteStore(ctx context.Context, bucket, prefix, region string) (*RemoteStore, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}

	return NewRemoteStoreWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewRemoteStoreWithClient constructs a RemoteStore around an existing
// client, letting callers inject test doubles or custom endpoint
// resolvers (e.g. for S3-compatible providers).
func NewRemoteStoreWithClient(client s3API, bucket, prefix string) *RemoteStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &RemoteStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *RemoteStore) BackendType() string { return "s3" }

func (s *RemoteStore) key(name string) string {
	return s.prefix + name
}

func (s *RemoteStore) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *RemoteStore) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *RemoteStore) deleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

func (s *RemoteStore) Load(ctx context.Context) (*DeploymentState, error) {
	data, err := s.getObject(ctx, s.key(remoteStateKey))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var ds DeploymentState
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, &ErrCorrupted{Path: s.key(remoteStateKey), Err: err}
	}
	return &ds, nil
}

func (s *RemoteStore) Save(ctx context.Context, ds *DeploymentState) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return s.putObject(ctx, s.key(remoteStateKey), data)
}

func (s *RemoteStore) Delete(ctx context.Context) error {
	if err := s.deleteObject(ctx, s.key(remoteStateKey)); err != nil && !isNoSuchKey(err) {
		return err
	}
	return s.ForceUnlock(ctx)
}

func (s *RemoteStore) Exists(ctx context.Context) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(remoteStateKey)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *RemoteStore) readLock(ctx context.Context) (*LockInfo, error) {
	data, err := s.getObject(ctx, s.key(remoteLockKey))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &ErrCorrupted{Path: s.key(remoteLockKey), Err: err}
	}
	return &info, nil
}

func (s *RemoteStore) AcquireLock(ctx context.Context, holder string) (*LockHandle, error) {
	existing, err := s.readLock(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Expired(time.Now().UTC()) {
		return nil, &ErrLockedByOther{Holder: existing.Holder, Since: existing.AcquiredAt.Format(time.RFC3339)}
	}

	if holder == "" {
		holder = GenerateHolderID()
	}

	info := NewLockInfo(holder)
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := s.putObject(ctx, s.key(remoteLockKey), data); err != nil {
		return nil, err
	}

	return &LockHandle{LockID: info.LockID, Info: info}, nil
}

func (s *RemoteStore) ReleaseLock(ctx context.Context, lockID string) error {
	existing, err := s.readLock(ctx)
	if err != nil {
		return err
	}
	if existing == nil || existing.LockID != lockID {
		return nil
	}
	return s.deleteObject(ctx, s.key(remoteLockKey))
}

func (s *RemoteStore) GetLockInfo(ctx context.Context) (*LockInfo, error) {
	return s.readLock(ctx)
}

func (s *RemoteStore) IsLocked(ctx context.Context) (bool, error) {
	info, err := s.readLock(ctx)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	return !info.Expired(time.Now().UTC()), nil
}

func (s *RemoteStore) ForceUnlock(ctx context.Context) error {
	err := s.deleteObject(ctx, s.key(remoteLockKey))
	if err != nil && isNoSuchKey(err) {
		return nil
	}
	return err
}
