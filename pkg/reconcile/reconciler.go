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

// Package reconcile drives observed provider state toward the state
// described by a config.DeployConfig, retrying transient failures and
// always persisting whatever state resulted, even when the run failed.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/diff"
	"github.com/halldyll/haldctl/pkg/exec"
	"github.com/halldyll/haldctl/pkg/herr"
	"github.com/halldyll/haldctl/pkg/metrics"
	"github.com/halldyll/haldctl/pkg/plan"
	"github.com/halldyll/haldctl/pkg/provider"
	"github.com/halldyll/haldctl/pkg/state"
)

const (
	defaultMaxAttempts = 3
	retryBackoff        = 2 * time.Second
)

// Result summarizes one reconciliation run.
type Result struct {
	Success     bool
	Created     int
	Updated     int
	Deleted     int
	Unchanged   int
	Errors      []string
	FinalState  *state.DeploymentState
}

func (r Result) String() string {
	status := "failed"
	if r.Success {
		status = "successful"
	}
	s := fmt.Sprintf("reconciliation %s: created=%d updated=%d deleted=%d unchanged=%d",
		status, r.Created, r.Updated, r.Deleted, r.Unchanged)
	for _, e := range r.Errors {
		s += "\n  - " + e
	}
	return s
}

// DriftReport is the outcome of a read-only check against observed
// state, taking no corrective action.
type DriftReport struct {
	HasDrift         bool
	DriftedResources []string
	TotalResources   int
	ObservedCount    int
}

func (d DriftReport) IsConverged() bool { return !d.HasDrift }

// Reconciler drives one DeployConfig toward convergence against a
// provider, persisting outcomes to a state.Store.
type Reconciler struct {
	cfg         *config.DeployConfig
	store       state.Store
	provisioner provider.Provisioner
	observer    provider.Observer
	hasher      *config.Hasher
	diffEngine  *diff.Engine
	maxAttempts int
	log         *zap.Logger
}

func New(cfg *config.DeployConfig, store state.Store, provisioner provider.Provisioner, observer provider.Observer, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		cfg:         cfg,
		store:       store,
		provisioner: provisioner,
		observer:    observer,
		hasher:      config.NewHasher(),
		diffEngine:  diff.NewEngine(log),
		maxAttempts: defaultMaxAttempts,
		log:         log,
	}
}

func (r *Reconciler) WithMaxAttempts(n int) *Reconciler {
	r.maxAttempts = n
	return r
}

// Reconcile runs up to maxAttempts passes, retrying on partial failure
// with a fixed backoff between attempts. A hard error (guardrail
// violation) aborts immediately without retry, and a cancelled ctx ends
// the loop with an aborted error. A run that never succeeds returns a
// non-nil error. Whatever state resulted —
// even from a failed run — is always persisted before returning; a save
// failure is appended to Result.Errors rather than discarding the
// already-computed outcome.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	start := time.Now()
	r.log.Info("starting reconciliation", zap.String("project", r.cfg.Project.Name), zap.String("env", r.cfg.Project.Env))

	configHash := r.hasher.HashConfig(r.cfg)

	st, err := r.store.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		st = state.New(r.cfg.Project.Name, r.cfg.Project.Env)
	}

	observed, err := r.observer.ListProjectPods(ctx, r.cfg.Project.Name, r.cfg.Project.Env)
	if err != nil {
		return Result{}, err
	}
	r.log.Debug("observed existing pods", zap.Int("count", len(observed)))

	var (
		result    Result
		lastErr   error
	)

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = herr.NewAborted(ctx.Err().Error())
			break
		}
		r.log.Debug("reconciliation attempt", zap.Int("attempt", attempt), zap.Int("max", r.maxAttempts))
		metrics.ReconcileAttempts.Inc()

		once, err := r.reconcileOnce(ctx, st, observed, configHash)
		if err != nil {
			r.log.Error("reconciliation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("attempt %d: %s", attempt, err))
			lastErr = err

			if ae, ok := err.(*herr.ReconcileError); ok && ae.Kind == "aborted" {
				break
			}

			if attempt < r.maxAttempts {
				select {
				case <-ctx.Done():
					lastErr = ctx.Err()
				case <-time.After(retryBackoff):
				}
			}
			continue
		}

		result = once
		if result.Success {
			lastErr = nil
			break
		}
		if attempt < r.maxAttempts {
			r.log.Warn("reconciliation partially succeeded, retrying")
			select {
			case <-ctx.Done():
			case <-time.After(retryBackoff):
			}
		}
	}

	if saveErr := r.store.Save(ctx, st); saveErr != nil {
		r.log.Error("failed to save state", zap.Error(saveErr))
		result.Errors = append(result.Errors, fmt.Sprintf("failed to save state: %s", saveErr))
	}
	result.FinalState = st

	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	if !result.Success {
		if lastErr == nil {
			lastErr = fmt.Errorf("reconciliation failed after %d attempt(s)", r.maxAttempts)
		}
		return result, lastErr
	}
	return result, nil
}

func (r *Reconciler) reconcileOnce(ctx context.Context, st *state.DeploymentState, observed []provider.ObservedPod, configHash string) (Result, error) {
	d := r.diffEngine.Compute(r.cfg, st, observed)

	r.log.Info("diff computed",
		zap.Int("creates", d.Creates), zap.Int("updates", d.Updates),
		zap.Int("deletes", d.Deletes), zap.Int("unchanged", d.Unchanged))

	if !d.HasChanges() {
		r.log.Info("no changes required - state is converged")
		return Result{Success: true, Unchanged: d.Unchanged}, nil
	}

	p := plan.NewPlanner().FromDiff(d, r.cfg, configHash)
	if !p.PassesGuardrails {
		return Result{}, herr.NewAborted(fmt.Sprintf("plan violates guardrails: %v", p.GuardrailViolations))
	}

	execResult, err := exec.NewExecutor(r.provisioner).
		WithContinueOnError(true).
		WithOperation(state.OperationCreate).
		WithProject(r.cfg.Project.Name, r.cfg.Project.Env).
		WithLogger(r.log).
		Execute(ctx, p, st)
	if err != nil {
		return Result{}, err
	}
	for _, ar := range execResult.Results {
		metrics.ActionsExecuted.WithLabelValues(ar.Action.Type.String()).Inc()
	}

	var errs []string
	for _, ar := range execResult.Results {
		if !ar.Success && ar.Error != "" {
			errs = append(errs, ar.Error)
		}
	}
	if !execResult.Success {
		errs = append([]string{fmt.Sprintf("%d of %d actions failed", execResult.Failed, execResult.TotalExecuted)}, errs...)
	}

	return Result{
		Success:   execResult.Success,
		Created:   d.Creates,
		Updated:   d.Updates,
		Deleted:   d.Deletes,
		Unchanged: d.Unchanged,
		Errors:    errs,
	}, nil
}

// CheckDrift compares desired and observed state without taking any
// corrective action.
func (r *Reconciler) CheckDrift(ctx context.Context) (DriftReport, error) {
	r.log.Info("checking for drift", zap.String("project", r.cfg.Project.Name), zap.String("env", r.cfg.Project.Env))

	st, err := r.store.Load(ctx)
	if err != nil {
		return DriftReport{}, err
	}

	observed, err := r.observer.ListProjectPods(ctx, r.cfg.Project.Name, r.cfg.Project.Env)
	if err != nil {
		return DriftReport{}, err
	}

	d := r.diffEngine.Compute(r.cfg, st, observed)

	var drifted []string
	for _, res := range d.Resources {
		if res.Type != diff.NoChange {
			drifted = append(drifted, res.Name)
		}
	}

	return DriftReport{
		HasDrift:         d.HasChanges(),
		DriftedResources: drifted,
		TotalResources:   len(r.cfg.Pods),
		ObservedCount:    len(observed),
	}, nil
}
