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

// Package metrics exposes the Prometheus instrumentation the reconciler
// emits for every run.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ReconcileAttempts counts every reconciliation attempt, including
	// retries within a single Reconcile call.
	ReconcileAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haldctl_reconcile_attempts_total",
		Help: "Total number of reconciliation attempts made.",
	})

	// ReconcileDuration tracks the wall-clock time of a full Reconcile
	// call, attempts and retries included.
	ReconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "haldctl_reconcile_duration_seconds",
		Help:    "Duration of a full reconciliation run in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// ActionsExecuted counts executed plan actions by kind (create,
	// update, delete, stop, resume, noop).
	ActionsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haldctl_actions_executed_total",
		Help: "Total number of plan actions executed, labeled by action kind.",
	}, []string{"kind"})
)

// Registry holds these collectors, registered in init, rather than
// prometheus's global default registry. Nothing in this module serves it.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(ReconcileAttempts, ReconcileDuration, ActionsExecuted)
}
