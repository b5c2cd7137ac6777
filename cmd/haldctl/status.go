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
	"github.com/halldyll/haldctl/pkg/provider"
)

func NewStatusCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	var (
		detailed     bool
		includeHealth bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current deployment status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, includeHealth, l)
		},
	}

	cmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "Accepted for compatibility; the output is the same with or without it.")
	cmd.Flags().BoolVar(&includeHealth, "health", false, "Include health check results.")
	return cmd
}

func runStatus(opts *rootOptions, includeHealth bool, l logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := loadConfigAndState(opts.configPath)
	if err != nil {
		return err
	}

	clients, err := newRunPodClients()
	if err != nil {
		return err
	}

	pods, err := clients.observer.ListProjectPods(ctx, cfg.Project.Name, cfg.Project.Env)
	if err != nil {
		return err
	}

	var health []provider.HealthStatus
	if includeHealth {
		for _, p := range pods {
			pod := p
			health = append(health, clients.health.CheckPod(ctx, &pod, "", 0))
		}
	}

	formatter := NewOutputFormatter(opts.output)
	fmt.Print(formatter.FormatStatus(cfg.Project.Name, cfg.Project.Env, pods, health))
	return nil
}
