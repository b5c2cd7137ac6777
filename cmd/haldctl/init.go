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
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halldyll/haldctl/pkg/logger"
	"github.com/halldyll/haldctl/pkg/utils/file"
)

//go:embed templates/halldyll.deploy.yaml
var configTemplate string

//go:embed templates/.env.example
var envTemplate string

func NewInitCommand(l logger.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a new haldctl project.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(path, force, l)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files.")
	return cmd
}

func runInit(path string, force bool, l logger.Logger) error {
	l.V(0).Info(fmt.Sprintf("initializing new haldctl project in: %s", path))

	configPath := filepath.Join(path, defaultConfigFile)
	envPath := filepath.Join(path, ".env.example")
	gitignorePath := filepath.Join(path, ".gitignore")

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Configuration file already exists: %s\nUse --force to overwrite.\n", configPath)
			return nil
		}
	}

	if err := file.EnsureDir(path); err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	fmt.Printf("Created: %s\n", configPath)

	if err := os.WriteFile(envPath, []byte(envTemplate), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", envPath, err)
	}
	fmt.Printf("Created: %s\n", envPath)

	if err := updateGitignore(gitignorePath); err != nil {
		return err
	}

	fmt.Println("\nProject initialized successfully!")
	fmt.Println("Next steps:")
	fmt.Println("  1. Copy .env.example to .env and fill in your API keys")
	fmt.Println("  2. Edit halldyll.deploy.yaml with your pod configuration")
	fmt.Println("  3. Run 'haldctl validate' to check your configuration")
	fmt.Println("  4. Run 'haldctl plan' to see what will be deployed")
	fmt.Println("  5. Run 'haldctl apply' to deploy your pods")

	return nil
}

func updateGitignore(path string) error {
	const block = ".env\n.haldctl/\n"

	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(block), 0o644); err != nil {
			return err
		}
		fmt.Printf("Created: %s\n", path)
		return nil
	}
	if err != nil {
		return err
	}

	content := string(existing)
	missing := strings.Builder{}
	if !strings.Contains(content, ".env") {
		missing.WriteString(".env\n")
	}
	if !strings.Contains(content, ".haldctl") {
		missing.WriteString(".haldctl/\n")
	}
	if missing.Len() == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("\n# haldctl\n" + missing.String()); err != nil {
		return err
	}
	fmt.Printf("Updated: %s\n", path)
	return nil
}
