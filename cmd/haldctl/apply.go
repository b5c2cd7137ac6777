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

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/diff"
	"github.com/halldyll/haldctl/pkg/exec"
	"github.com/halldyll/haldctl/pkg/logger"
	"github.com/halldyll/haldctl/pkg/plan"
	"github.com/halldyll/haldctl/pkg/state"
	"github.com/halldyll/haldctl/pkg/status"
)

func NewApplyCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	var (
		autoApprove     bool
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the deployment plan.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, autoApprove, continueOnError, l)
		},
	}

	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "Skip the confirmation prompt.")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep applying remaining actions after one fails.")
	return cmd
}

func runApply(opts *rootOptions, autoApprove, continueOnError bool, l logger.Logger) error {
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

	st, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		st = state.New(cfg.Project.Name, cfg.Project.Env)
	}

	observed, err := clients.observer.ListProjectPods(ctx, cfg.Project.Name, cfg.Project.Env)
	if err != nil {
		return err
	}

	hasher := config.NewHasher()
	configHash := hasher.HashConfig(cfg)
	engineLog := newEngineLogger(opts.verbosity)
	d := diff.NewEngine(engineLog).Compute(cfg, st, observed)
	p := plan.NewPlanner().FromDiff(d, cfg, configHash)

	formatter := NewOutputFormatter(opts.output)

	if p.IsEmpty() {
		fmt.Println("No changes to apply.")
		return nil
	}

	fmt.Print(formatter.FormatPlan(p))

	if !autoApprove {
		if !confirm("Do you want to apply this plan? [y/N]: ") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	return withLock(ctx, store, "", func() error {
		executor := exec.NewExecutor(clients.provisioner).
			WithContinueOnError(continueOnError).
			WithOperation(state.OperationCreate).
			WithProject(cfg.Project.Name, cfg.Project.Env).
			WithLogger(engineLog)

		sp := newProgressSpinner(opts.output)
		if sp != nil {
			sp.Start(fmt.Sprintf("applying %d action(s)", p.ActionCount()))
		}
		result, err := executor.Execute(ctx, p, st)
		if sp != nil {
			sp.Stop(err == nil && result.AllSuccessful(), "apply finished")
		}
		if err != nil {
			return err
		}

		if saveErr := store.Save(ctx, st); saveErr != nil {
			return fmt.Errorf("applied plan but failed to save state: %w", saveErr)
		}

		fmt.Printf("\n%s\n", result)
		if !result.AllSuccessful() {
			return fmt.Errorf("%d of %d actions did not succeed", result.Failed+result.Skipped, result.TotalExecuted)
		}
		return nil
	})
}

// newProgressSpinner returns nil for the JSON output mode, since a
// spinner's carriage-return animation would corrupt machine-readable
// output piped to another program.
func newProgressSpinner(output string) *status.Spinner {
	if output == "json" {
		return nil
	}
	sp, err := status.NewSpinner()
	if err != nil {
		return nil
	}
	return sp
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(input), "y")
}
