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

// Command haldctl is a declarative deployment manager for GPU pods.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/kind/pkg/log"

	"github.com/halldyll/haldctl/pkg/logger"
	"github.com/halldyll/haldctl/pkg/version"
)

const haldctlTextBanner = `
 _           _     _       _   _
| |__   __ _| | __| | ___ | |_| |
| '_ \ / _' | |/ _' |/ __|| __| |
| | | | (_| | | (_| | (__ | |_| |
|_| |_|\__,_|_|\__,_|\___(_)__|_|`

// rootOptions carries the flags every subcommand needs.
type rootOptions struct {
	configPath string
	verbosity  int32
	output     string
}

func NewRootCommand() *cobra.Command {
	var opts rootOptions

	l := logger.New(os.Stdout, log.Level(opts.verbosity), logger.WithColored())

	cmd := &cobra.Command{
		Use:          "haldctl",
		Short:        "haldctl manages declarative GPU pod deployments on RunPod.",
		Long:         fmt.Sprintf("%s\nhaldctl manages declarative GPU pod deployments on RunPod.", haldctlTextBanner),
		Version:      version.Get().String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			type verboser interface {
				SetVerbosity(log.Level)
			}
			if v, ok := l.(verboser); ok {
				v.SetVerbosity(log.Level(opts.verbosity))
				return nil
			}
			return fmt.Errorf("logger does not implement SetVerbosity")
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the deployment config file (defaults to ./halldyll.deploy.yaml).")
	cmd.PersistentFlags().Int32VarP(&opts.verbosity, "verbosity", "v", 0, "Log verbosity, higher value produces more output.")
	cmd.PersistentFlags().StringVar(&opts.output, "output", "text", "Output format: text or json.")

	cmd.AddCommand(NewInitCommand(l))
	cmd.AddCommand(NewValidateCommand(&opts, l))
	cmd.AddCommand(NewPlanCommand(&opts, l))
	cmd.AddCommand(NewApplyCommand(&opts, l))
	cmd.AddCommand(NewStatusCommand(&opts, l))
	cmd.AddCommand(NewReconcileCommand(&opts, l))
	cmd.AddCommand(NewDestroyCommand(&opts, l))
	cmd.AddCommand(NewLogsCommand(&opts, l))
	cmd.AddCommand(NewDriftCommand(&opts, l))
	cmd.AddCommand(NewStateCommand(&opts, l))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
