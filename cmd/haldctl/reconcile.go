// Copyright 2023 Greptime Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halldyll/haldctl/pkg/logger"
	"github.com/halldyll/haldctl/pkg/reconcile"
)

func NewReconcileCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	var (
		autoApprove bool
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the deployment to match the configuration, retrying transient failures.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, autoApprove, maxAttempts, l)
		},
	}

	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "Skip the confirmation prompt.")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 3, "Maximum reconciliation attempts.")
	return cmd
}

func runReconcile(opts *rootOptions, autoApprove bool, maxAttempts int, l logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, store, err := loadConfigAndState(opts.configPath)
	if err != nil {
		return err
	}

	clients, err := newRunPodClients()
	if err != nil {
		return err
	}
	if err := clients.provisioner.InitGPUTypes(ctx); err != nil {
		return err
	}

	if !autoApprove {
		if !confirm("This will reconcile your deployment to match the configuration. Continue? [y/N]: ") {
			fmt.Println("Reconciliation cancelled.")
			return nil
		}
	}

	formatter := NewOutputFormatter(opts.output)
	var result reconcile.Result

	err = withLock(ctx, store, "", func() error {
		r := reconcile.New(cfg, store, clients.provisioner, clients.observer, newEngineLogger(opts.verbosity)).
			WithMaxAttempts(maxAttempts)

		sp := newProgressSpinner(opts.output)
		if sp != nil {
			sp.Start("reconciling deployment")
		}
		var reconErr error
		result, reconErr = r.Reconcile(ctx)
		if sp != nil {
			sp.Stop(reconErr == nil, "reconcile finished")
		}
		return reconErr
	})

	fmt.Print(formatter.FormatReconciliation(result))
	return err
}
