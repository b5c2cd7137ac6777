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
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/halldyll/haldctl/pkg/utils/file"
)

const (
	stateFileName = "state.json"
	lockFileName  = "state.lock"
)

// LocalStore is the filesystem-backed Store implementation, intended for
// local development and single-machine deployments.
type LocalStore struct {
	baseDir   string
	statePath string
	lockPath  string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore returns a LocalStore rooted at baseDir.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{
		baseDir:   baseDir,
		statePath: filepath.Join(baseDir, stateFileName),
		lockPath:  filepath.Join(baseDir, lockFileName),
	}
}

func (s *LocalStore) BackendType() string { return "local" }

func (s *LocalStore) Load(_ context.Context) (*DeploymentState, error) {
	exists, err := file.IsFileExists(s.statePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return nil, &ErrCorrupted{Path: s.statePath, Err: err}
	}

	var ds DeploymentState
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, &ErrCorrupted{Path: s.statePath, Err: err}
	}
	return &ds, nil
}

func (s *LocalStore) Save(_ context.Context, ds *DeploymentState) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return file.WriteAtomic(s.statePath, data, 0644)
}

func (s *LocalStore) Delete(_ context.Context) error {
	exists, err := file.IsFileExists(s.statePath)
	if err != nil {
		return err
	}
	if exists {
		if err := os.Remove(s.statePath); err != nil {
			return err
		}
	}
	return s.deleteLockFile()
}

func (s *LocalStore) Exists(_ context.Context) (bool, error) {
	return file.IsFileExists(s.statePath)
}

func (s *LocalStore) readLockFile() (*LockInfo, error) {
	exists, err := file.IsFileExists(s.lockPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	data, err := os.ReadFile(s.lockPath)
	if err != nil {
		return nil, &ErrCorrupted{Path: s.lockPath, Err: err}
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &ErrCorrupted{Path: s.lockPath, Err: err}
	}
	return &info, nil
}

func (s *LocalStore) writeLockFile(info *LockInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return file.WriteAtomic(s.lockPath, data, 0644)
}

func (s *LocalStore) deleteLockFile() error {
	exists, err := file.IsFileExists(s.lockPath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return os.Remove(s.lockPath)
}

func (s *LocalStore) AcquireLock(_ context.Context, holder string) (*LockHandle, error) {
	existing, err := s.readLockFile()
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
	if err := s.writeLockFile(&info); err != nil {
		return nil, err
	}

	return &LockHandle{LockID: info.LockID, Info: info}, nil
}

func (s *LocalStore) ReleaseLock(_ context.Context, lockID string) error {
	existing, err := s.readLockFile()
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.LockID != lockID {
		// Another holder legitimately owns the lock now; no-op.
		return nil
	}
	return s.deleteLockFile()
}

func (s *LocalStore) GetLockInfo(_ context.Context) (*LockInfo, error) {
	return s.readLockFile()
}

func (s *LocalStore) IsLocked(_ context.Context) (bool, error) {
	info, err := s.readLockFile()
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	return !info.Expired(time.Now().UTC()), nil
}

func (s *LocalStore) ForceUnlock(_ context.Context) error {
	return s.deleteLockFile()
}
