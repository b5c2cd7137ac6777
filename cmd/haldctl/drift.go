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

func NewDriftCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Check for drift between the configuration and the provider's observed state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrift(opts, l)
		},
	}
	return cmd
}

func runDrift(opts *rootOptions, l logger.Logger) error {
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

	r := reconcile.New(cfg, store, clients.provisioner, clients.observer, newEngineLogger(opts.verbosity))
	report, err := r.CheckDrift(ctx)
	if err != nil {
		return err
	}

	formatter := NewOutputFormatter(opts.output)
	fmt.Print(formatter.FormatDrift(report))
	return nil
}
