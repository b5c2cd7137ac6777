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

package reconcile_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/herr"
	"github.com/halldyll/haldctl/pkg/provider"
	"github.com/halldyll/haldctl/pkg/reconcile"
	"github.com/halldyll/haldctl/pkg/state"
)

type fakeStore struct {
	saved *state.DeploymentState
	loadErr, saveErr error
}

func (f *fakeStore) Load(context.Context) (*state.DeploymentState, error) { return f.saved, f.loadErr }
func (f *fakeStore) Save(_ context.Context, ds *state.DeploymentState) error {
	f.saved = ds
	return f.saveErr
}
func (f *fakeStore) Delete(context.Context) error                     { return nil }
func (f *fakeStore) Exists(context.Context) (bool, error)             { return f.saved != nil, nil }
func (f *fakeStore) AcquireLock(context.Context, string) (*state.LockHandle, error) {
	return &state.LockHandle{}, nil
}
func (f *fakeStore) ReleaseLock(context.Context, string) error        { return nil }
func (f *fakeStore) GetLockInfo(context.Context) (*state.LockInfo, error) { return nil, nil }
func (f *fakeStore) IsLocked(context.Context) (bool, error)           { return false, nil }
func (f *fakeStore) ForceUnlock(context.Context) error                { return nil }
func (f *fakeStore) BackendType() string                              { return "fake" }

type fakeObserver struct {
	pods []provider.ObservedPod
	err  error
}

func (f *fakeObserver) ListAllPods(context.Context) ([]provider.ObservedPod, error) { return f.pods, f.err }
func (f *fakeObserver) ListProjectPods(context.Context, string, string) ([]provider.ObservedPod, error) {
	return f.pods, f.err
}
func (f *fakeObserver) GetPod(context.Context, string) (*provider.ObservedPod, error) { return nil, nil }

type fakeProvisioner struct {
	createErr error
	calls     int
}

func (f *fakeProvisioner) CreatePod(_ context.Context, req provider.CreateRequest) (*provider.ObservedPod, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &provider.ObservedPod{ID: "pod-1", Name: req.Name, GPUType: req.GPUType, GPUCount: req.GPUCount, Image: req.Image}, nil
}
func (f *fakeProvisioner) DeletePod(context.Context, string) error { return nil }
func (f *fakeProvisioner) StopPod(context.Context, string) error  { return nil }
func (f *fakeProvisioner) ResumePod(context.Context, string) error { return nil }

func testConfig() *config.DeployConfig {
	return &config.DeployConfig{
		Project: config.Project{Name: "proj", Env: "dev"},
		Pods: []config.PodSpec{
			{Name: "web", GPU: config.GPUSpec{Type: "A100", Count: 1}, Runtime: config.RuntimeSpec{Image: "img:latest"}},
		},
	}
}

var _ = Describe("Reconciler", func() {
	var (
		cfg   *config.DeployConfig
		store *fakeStore
		obs   *fakeObserver
		prov  *fakeProvisioner
		rec   *reconcile.Reconciler
	)

	BeforeEach(func() {
		cfg = testConfig()
		store = &fakeStore{}
		obs = &fakeObserver{}
		prov = &fakeProvisioner{}
		rec = reconcile.New(cfg, store, prov, obs, nil)
	})

	It("creates a pod that does not yet exist and persists state", func() {
		result, err := rec.Reconcile(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Success).To(BeTrue())
		Expect(result.Created).To(Equal(1))
		Expect(store.saved).NotTo(BeNil())
		_, ok := store.saved.GetPod("web")
		Expect(ok).To(BeTrue())
	})

	It("converges to no-op when observed state already matches", func() {
		hasher := config.NewHasher()
		hash := hasher.HashPod(&cfg.Pods[0])
		obs.pods = []provider.ObservedPod{{
			PodName: "web", SpecHash: hash,
			Image: cfg.Pods[0].Runtime.Image, GPUType: cfg.Pods[0].GPU.Type, GPUCount: cfg.Pods[0].GPU.Count,
		}}

		result, err := rec.Reconcile(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Success).To(BeTrue())
		Expect(result.Unchanged).To(Equal(1))
		Expect(prov.calls).To(Equal(0))
	})

	It("retries on transient failure and eventually reports the last error", func() {
		prov.createErr = herr.NewNetworkError("connection reset")
		rec = rec.WithMaxAttempts(2)

		result, err := rec.Reconcile(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(result.Success).To(BeFalse())
		Expect(prov.calls).To(Equal(2))
		Expect(store.saved).NotTo(BeNil(), "state must be persisted even on failure")
	})

	It("aborts immediately without retry on a guardrail violation", func() {
		maxGPUs := 0
		cfg.Guardrails = &config.Guardrails{MaxGPUs: &maxGPUs}
		rec = reconcile.New(cfg, store, prov, obs, nil).WithMaxAttempts(3)

		_, err := rec.Reconcile(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(prov.calls).To(Equal(0), "guardrail violation must abort before any provisioner call")
	})

	It("reports drift without mutating observed state", func() {
		report, err := rec.CheckDrift(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.HasDrift).To(BeTrue())
		Expect(report.DriftedResources).To(ContainElement("web"))
		Expect(prov.calls).To(Equal(0))
	})
})
