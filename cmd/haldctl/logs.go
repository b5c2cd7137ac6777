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

	"github.com/halldyll/haldctl/pkg/logger"
)

// NewLogsCommand is a placeholder: RunPod exposes no log-streaming API
// this client can reach, so logs still have to be viewed in the RunPod
// dashboard directly.
func NewLogsCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	var (
		follow bool
		tail   uint32
	)

	cmd := &cobra.Command{
		Use:   "logs [pod]",
		Short: "Show deployment logs (not yet implemented).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("log viewing is not yet implemented; view logs directly in the RunPod dashboard")
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output.")
	cmd.Flags().Uint32VarP(&tail, "tail", "t", 100, "Number of lines to show.")
	return cmd
}
