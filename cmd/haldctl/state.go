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

	"github.com/spf13/cobra"

	"github.com/halldyll/haldctl/pkg/logger"
)

func NewStateCommand(opts *rootOptions, l logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Manage the state backend.",
	}

	cmd.AddCommand(newStateShowCommand(opts))
	cmd.AddCommand(newStateLockCommand(opts))
	cmd.AddCommand(newStateUnlockCommand(opts))
	cmd.AddCommand(newStatePullCommand())
	cmd.AddCommand(newStatePushCommand())
	return cmd
}

func newStateShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, store, err := loadConfigAndState(opts.configPath)
			if err != nil {
				return err
			}
			st, err := store.Load(ctx)
			if err != nil {
				return err
			}
			if st == nil {
				fmt.Println("No state found.")
				return nil
			}
			fmt.Print(NewOutputFormatter(opts.output).FormatState(st))
			return nil
		},
	}
}

func newStateLockCommand(opts *rootOptions) *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock the state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, store, err := loadConfigAndState(opts.configPath)
			if err != nil {
				return err
			}
			lock, err := store.AcquireLock(ctx, holder)
			if err != nil {
				return err
			}
			fmt.Printf("State locked: %s\n", lock.LockID)
			return nil
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "Lock holder identifier.")
	return cmd
}

func newStateUnlockCommand(opts *rootOptions) *cobra.Command {
	var (
		lockID string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, store, err := loadConfigAndState(opts.configPath)
			if err != nil {
				return err
			}

			switch {
			case force:
				if err := store.ForceUnlock(ctx); err != nil {
					return err
				}
				fmt.Println("State forcefully unlocked.")
			case lockID != "":
				if err := store.ReleaseLock(ctx, lockID); err != nil {
					return err
				}
				fmt.Println("State unlocked.")
			default:
				fmt.Println("Please provide --lock-id or use --force")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lockID, "lock-id", "", "Lock ID to unlock.")
	cmd.Flags().BoolVar(&force, "force", false, "Force unlock (dangerous).")
	return cmd
}

func newStatePullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Print a notice; no state is transferred.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("State pull is only applicable for remote backends.")
			return nil
		},
	}
}

func newStatePushCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Print a notice; no state is transferred.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("State push is only applicable for remote backends.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Force push even if locked.")
	return cmd
}
