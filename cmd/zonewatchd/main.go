// Copyright 2024 The Zonewatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/zonewatch-project/zonewatch/pkg/cache"
	"github.com/zonewatch-project/zonewatch/pkg/constants"
	"github.com/zonewatch-project/zonewatch/pkg/metadata"
	"github.com/zonewatch-project/zonewatch/pkg/utils"
	"github.com/zonewatch-project/zonewatch/pkg/zoneinfo"
)

var (
	zoneinfodEndpoint string
	metadataAddr      string
	trackedField      string
	reconnect         bool
)

func main() {
	flag.StringVar(&zoneinfodEndpoint, "zoneinfod-endpoint",
		utils.LoadEnv(constants.EnvZoneinfodEndpoint, zoneinfo.DefaultEndpoint),
		"The zoneinfod events URL.")
	flag.StringVar(&metadataAddr, "metadata-bind-address", ":8080",
		"The address the zone metadata and metrics endpoints bind to.")
	flag.StringVar(&trackedField, "tracked-field",
		utils.LoadEnv(constants.EnvTrackedField, cache.DefaultTrackedField),
		"The zone record field whose change triggers a cache update.")
	flag.BoolVar(&reconnect, "reconnect",
		utils.LoadEnvBool(constants.EnvReconnectEnabled, false),
		"Reconnect to zoneinfod with exponential backoff after a stream termination.")
	klog.InitFlags(flag.CommandLine)
	defer klog.Flush()
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientConfig := zoneinfo.DefaultClientConfig()
	clientConfig.Endpoint = zoneinfodEndpoint
	clientConfig.EventChannelBufferSize = utils.LoadEnvInt(
		constants.EnvEventChannelBufferSize, zoneinfo.DefaultEventChannelBufferSize)

	watcherConfig := &cache.WatcherConfig{
		Client:       clientConfig,
		TrackedField: trackedField,
	}
	if reconnect {
		watcherConfig.ReconnectPolicy = cache.DefaultExponentialBackoff()
	}

	store := cache.New()

	// Blocks until the ready baseline is loaded: everything past this line
	// may resolve zones from the cache without racing a cold start.
	watcher, err := cache.StartWatcher(ctx, watcherConfig, store)
	if err != nil {
		klog.Fatalf("Failed to start zoneinfod watcher: %v", err)
	}

	metadataServer := metadata.NewHTTPServer(metadataAddr, store, watcher)
	go func() {
		klog.InfoS("Starting zone metadata server", "address", metadataAddr)
		if err := metadataServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("Failed to start zone metadata server: %v", err)
		}
	}()

	gracefulStop := make(chan os.Signal, 1)
	signal.Notify(gracefulStop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-gracefulStop:
		klog.InfoS("Signal received, initiating graceful shutdown", "signal", sig)
		watcher.Stop()
		_ = metadataServer.Shutdown(ctx)
	case <-watcher.Done():
		// The zone cache is no longer maintained; running on would serve
		// stale records indefinitely.
		klog.ErrorS(watcher.Err(), "Zoneinfod watcher terminated")
		_ = metadataServer.Close()
		klog.Flush()
		os.Exit(1)
	}
}
