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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halldyll/haldctl/pkg/logger"
)

func NewDestroyCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	var (
		autoApprove bool
		keepVolumes bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy all deployed resources.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(opts, autoApprove, keepVolumes, l)
		},
	}

	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "Skip the confirmation prompt.")
	cmd.Flags().BoolVar(&keepVolumes, "keep-volumes", false, "Keep persistent volumes (not yet implemented by the provider).")
	return cmd
}

func runDestroy(opts *rootOptions, autoApprove, keepVolumes bool, l logger.Logger) error {
	_ = keepVolumes

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

	pods, err := clients.observer.ListProjectPods(ctx, cfg.Project.Name, cfg.Project.Env)
	if err != nil {
		return err
	}

	if len(pods) == 0 {
		fmt.Println("No pods to destroy.")
		return nil
	}

	fmt.Println("The following pods will be destroyed:")
	for _, p := range pods {
		name := p.PodName
		if name == "" {
			name = p.Name
		}
		fmt.Printf("  - %s (%s)\n", name, p.ID)
	}

	if !autoApprove {
		fmt.Print("\nThis action is IRREVERSIBLE. Type 'destroy' to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if strings.TrimSpace(input) != "destroy" {
			fmt.Println("Destruction cancelled.")
			return nil
		}
	}

	return withLock(ctx, store, "", func() error {
		failed := 0
		for _, p := range pods {
			name := p.PodName
			if name == "" {
				name = p.Name
			}
			fmt.Printf("Destroying %s...\n", name)
			if err := clients.provisioner.DeletePod(ctx, p.ID); err != nil {
				l.Errorf("failed to destroy %s: %s", name, err)
				failed++
			}
		}

		if err := store.Delete(ctx); err != nil {
			return err
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d pods could not be destroyed", failed, len(pods))
		}
		fmt.Println("\nAll pods destroyed.")
		return nil
	})
}
