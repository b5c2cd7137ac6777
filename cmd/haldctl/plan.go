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

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/diff"
	"github.com/halldyll/haldctl/pkg/logger"
	"github.com/halldyll/haldctl/pkg/plan"
)

func NewPlanCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the plan of changes needed to reach the declared configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, detailed, l)
		},
	}

	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "Show detailed diff information.")
	return cmd
}

func runPlan(opts *rootOptions, detailed bool, l logger.Logger) error {
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

	st, err := store.Load(ctx)
	if err != nil {
		return err
	}

	observed, err := clients.observer.ListProjectPods(ctx, cfg.Project.Name, cfg.Project.Env)
	if err != nil {
		return err
	}

	hasher := config.NewHasher()
	configHash := hasher.HashConfig(cfg)
	d := diff.NewEngine(newEngineLogger(opts.verbosity)).Compute(cfg, st, observed)
	p := plan.NewPlanner().FromDiff(d, cfg, configHash)

	formatter := NewOutputFormatter(opts.output)
	fmt.Print(formatter.FormatPlan(p))

	if detailed && !p.IsEmpty() {
		fmt.Println("\nDetailed changes:")
		for _, a := range p.Actions {
			fmt.Printf("  %s %s - %s\n", a.Type, a.ResourceName, a.Reason)
		}
	}

	return nil
}
