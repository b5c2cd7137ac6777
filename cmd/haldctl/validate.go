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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/logger"
)

func NewValidateCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	var showWarnings bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the deployment configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, showWarnings, l)
		},
	}

	cmd.Flags().BoolVarP(&showWarnings, "warnings", "w", false, "Show all warnings, not just errors.")
	return cmd
}

func runValidate(opts *rootOptions, showWarnings bool, l logger.Logger) error {
	path, err := resolveConfigPath(opts.configPath)
	if err != nil {
		return err
	}
	l.V(0).Info(fmt.Sprintf("validating configuration: %s", path))

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	validator := config.NewValidator()
	result, err := validator.Validate(cfg)
	if err != nil {
		return err
	}

	if result.IsValid() {
		fmt.Println("Configuration is valid!")
		if showWarnings && len(result.Warnings) > 0 {
			fmt.Println("\nWarnings:")
			for _, w := range result.Warnings {
				fmt.Printf("  - %s\n", w)
			}
		}
	}

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Project: %s\n", cfg.Project.Name)
	fmt.Printf("  Environment: %s\n", cfg.Project.Env)
	fmt.Printf("  Pods: %d\n", len(cfg.Pods))
	fmt.Printf("  Total GPUs: %d\n", config.TotalGPUs(cfg))

	return nil
}
