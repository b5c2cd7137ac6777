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

// Package state defines the persisted DeploymentState record and the
// Store contract its two backends (local filesystem, remote object store)
// both implement, including the lock discipline that serializes
// cross-process access.
package state

import "time"

// Version is the current state document format version.
const Version = "1.0"

// MaxHistory bounds DeploymentState.History; the oldest entry is evicted
// once the cap is exceeded.
const MaxHistory = 100

// DefaultLockTTL is how long an acquired lock remains valid before it may
// be seized by another holder.
const DefaultLockTTL = 300 * time.Second

// Status is the closed set of states a PodRecord can occupy.
type Status string

const (
	StatusCreating Status = "creating"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
	StatusDeleting Status = "deleting"
	StatusDeleted  Status = "deleted"
	StatusUnknown  Status = "unknown"
)

// Operation is the closed set of history entry kinds.
type Operation string

const (
	OperationCreate    Operation = "create"
	OperationUpdate    Operation = "update"
	OperationScale     Operation = "scale"
	OperationReconcile Operation = "reconcile"
	OperationDestroy   Operation = "destroy"
)

// PodRecord is the persisted record of one provisioned pod.
type PodRecord struct {
	Name        string            `json:"name"`
	ProviderID  string            `json:"provider_id"`
	ConfigHash  string            `json:"config_hash"`
	Status      Status            `json:"status"`
	GPUType     string            `json:"gpu_type"`
	GPUCount    int               `json:"gpu_count"`
	Image       string            `json:"image"`
	Endpoints   map[int]string    `json:"endpoints"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Tags        map[string]string `json:"tags"`
}

// NewPodRecord constructs a PodRecord in the Creating state.
func NewPodRecord(name, providerID, configHash string) *PodRecord {
	now := time.Now().UTC()
	return &PodRecord{
		Name:       name,
		ProviderID: providerID,
		ConfigHash: configHash,
		Status:     StatusCreating,
		Endpoints:  map[int]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
		Tags:       map[string]string{},
	}
}

// SetStatus advances the pod's status, timestamping the transition.
func (p *PodRecord) SetStatus(s Status) {
	p.Status = s
	p.UpdatedAt = time.Now().UTC()
}

// IsHealthy reports whether the pod is in the Running state.
func (p *PodRecord) IsHealthy() bool {
	return p.Status == StatusRunning
}

// VolumeRecord is the persisted record of one provisioned volume.
type VolumeRecord struct {
	Name       string    `json:"name"`
	ProviderID string    `json:"provider_id"`
	MountPath  string    `json:"mount_path"`
	SizeGB     int       `json:"size_gb"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryEntry is one append-only record of a reconcile/apply/destroy run.
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Operation  Operation `json:"operation"`
	ConfigHash string    `json:"config_hash"`
	Resources  []string  `json:"resources"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// NewHistoryEntry builds a successful entry.
func NewHistoryEntry(op Operation, configHash string, resources []string) HistoryEntry {
	return HistoryEntry{
		Timestamp:  time.Now().UTC(),
		Operation:  op,
		ConfigHash: configHash,
		Resources:  resources,
		Success:    true,
	}
}

// FailedHistoryEntry builds a failed entry carrying an error message.
func FailedHistoryEntry(op Operation, configHash string, resources []string, errMsg string) HistoryEntry {
	e := NewHistoryEntry(op, configHash, resources)
	e.Success = false
	e.Error = errMsg
	return e
}

// DeploymentState is the full persisted record the state store owns at
// rest and the reconciler owns exclusively in memory for one run.
type DeploymentState struct {
	Version     string                  `json:"version"`
	Project     string                  `json:"project"`
	Environment string                  `json:"environment"`
	ConfigHash  string                  `json:"config_hash"`
	Pods        map[string]*PodRecord   `json:"pods"`
	Volumes     map[string]*VolumeRecord `json:"volumes"`
	LastUpdated time.Time               `json:"last_updated"`
	History     []HistoryEntry          `json:"history"`
}

// New returns an empty DeploymentState for the given project/environment.
func New(project, environment string) *DeploymentState {
	return &DeploymentState{
		Version:     Version,
		Project:     project,
		Environment: environment,
		Pods:        map[string]*PodRecord{},
		Volumes:     map[string]*VolumeRecord{},
		LastUpdated: time.Now().UTC(),
	}
}

// GetPod returns the named pod record, if any.
func (s *DeploymentState) GetPod(name string) (*PodRecord, bool) {
	p, ok := s.Pods[name]
	return p, ok
}

// SetPod inserts or replaces a pod record.
func (s *DeploymentState) SetPod(p *PodRecord) {
	s.Pods[p.Name] = p
	s.LastUpdated = time.Now().UTC()
}

// RemovePod deletes a pod record by name, returning it if present.
func (s *DeploymentState) RemovePod(name string) (*PodRecord, bool) {
	p, ok := s.Pods[name]
	if ok {
		delete(s.Pods, name)
		s.LastUpdated = time.Now().UTC()
	}
	return p, ok
}

// SetVolume inserts or replaces a volume record.
func (s *DeploymentState) SetVolume(v *VolumeRecord) {
	s.Volumes[v.Name] = v
	s.LastUpdated = time.Now().UTC()
}

// AddHistory appends an entry, evicting the oldest once MaxHistory is
// exceeded.
func (s *DeploymentState) AddHistory(e HistoryEntry) {
	if len(s.History) >= MaxHistory {
		s.History = s.History[1:]
	}
	s.History = append(s.History, e)
}

// RunningPods returns every pod currently in the Running state.
func (s *DeploymentState) RunningPods() []*PodRecord {
	var out []*PodRecord
	for _, p := range s.Pods {
		if p.Status == StatusRunning {
			out = append(out, p)
		}
	}
	return out
}

// PodNames returns the names of every recorded pod.
func (s *DeploymentState) PodNames() []string {
	names := make([]string, 0, len(s.Pods))
	for n := range s.Pods {
		names = append(names, n)
	}
	return names
}

// LockInfo is the persisted contents of the companion lock blob.
type LockInfo struct {
	LockID     string    `json:"lock_id"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lock's expiry has passed as of now.
func (l *LockInfo) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LockHandle is returned by Store.AcquireLock; callers must release it on
// every exit path.
type LockHandle struct {
	LockID string
	Info   LockInfo
}
