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
	"os"

	"go.uber.org/zap"

	"github.com/halldyll/haldctl/pkg/config"
	"github.com/halldyll/haldctl/pkg/provider/runpod"
	"github.com/halldyll/haldctl/pkg/state"
)

const defaultConfigFile = "halldyll.deploy.yaml"

// resolveConfigPath returns the configured path, or defaultConfigFile in
// the current directory if none was given.
func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if _, err := os.Stat(defaultConfigFile); err != nil {
		return "", fmt.Errorf("no config file given and %s not found in current directory", defaultConfigFile)
	}
	return defaultConfigFile, nil
}

// loadConfigAndState loads the deployment document and opens its
// configured state backend, without touching the blob itself.
func loadConfigAndState(configPath string) (*config.DeployConfig, state.Store, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}

	store, err := stateStoreFor(cfg)
	if err != nil {
		return nil, nil, err
	}

	return cfg, store, nil
}

// stateStoreFor builds the state.Store backend named by cfg.State.
func stateStoreFor(cfg *config.DeployConfig) (state.Store, error) {
	switch cfg.State.Type {
	case "", "local":
		path := cfg.State.Path
		if path == "" {
			path = "./.haldctl"
		}
		return state.NewLocalStore(path), nil
	case "s3":
		return state.NewRemoteStore(context.Background(), cfg.State.Bucket, cfg.State.Prefix, cfg.State.Region)
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.State.Type)
	}
}

// runpodClients bundles the three RunPod-backed implementations of the
// provider package's interfaces, all sharing one API key.
type runpodClients struct {
	observer    *runpod.Observer
	provisioner *runpod.Provisioner
	health      *runpod.HealthProbe
}

func newRunPodClients() (*runpodClients, error) {
	apiKey := os.Getenv("RUNPOD_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RUNPOD_API_KEY is not set")
	}
	return &runpodClients{
		observer:    runpod.NewObserver(apiKey),
		provisioner: runpod.NewProvisioner(apiKey),
		health:      runpod.NewHealthProbe(),
	}, nil
}

// newEngineLogger builds the structured logger passed to the reconciler
// and executor. Verbosity above zero drops it to debug level.
func newEngineLogger(verbosity int32) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbosity > 0 {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// withLock acquires the state store's lock under holder, runs fn, and
// always releases it afterward, even if fn returns an error.
func withLock(ctx context.Context, store state.Store, holder string, fn func() error) error {
	lock, err := store.AcquireLock(ctx, holder)
	if err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	defer func() {
		_ = store.ReleaseLock(ctx, lock.LockID)
	}()
	return fn()
}
