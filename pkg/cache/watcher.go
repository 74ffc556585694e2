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

package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/zonewatch-project/zonewatch/pkg/zoneinfo"
)

// DefaultTrackedField is the zone record field whose change triggers a cache
// update on modify events. Changes to other fields are ignored: downstream
// log resolution only cares about the alias.
const DefaultTrackedField = "alias"

var (
	// ErrDuplicateReady reports a second ready event on one stream
	// connection. The event service's contract is exactly one baseline per
	// stream; a second one means the cache can no longer be trusted.
	ErrDuplicateReady = errors.New("duplicate ready event: baseline already established")

	// ErrStreamClosed reports that the zoneinfod event stream ended.
	ErrStreamClosed = errors.New("zoneinfod event stream closed")
)

// WatcherConfig configures the zone cache watcher.
type WatcherConfig struct {
	// Client configures the zoneinfod stream client. Defaults to the local
	// zoneinfod instance.
	Client *zoneinfo.ClientConfig

	// TrackedField is the record field whose change in a modify event
	// triggers a cache update.
	TrackedField string

	// ReconnectPolicy decides whether the stream is reopened after a
	// transport-level termination. Defaults to NoRetry.
	ReconnectPolicy ReconnectPolicy
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		Client:          zoneinfo.DefaultClientConfig(),
		TrackedField:    DefaultTrackedField,
		ReconnectPolicy: NoRetry{},
	}
}

// Watcher folds the zoneinfod event stream into a Store on a dedicated
// goroutine. Events are applied strictly in wire order. Each stream
// connection goes through two phases: awaiting-ready, where incremental
// events are applied opportunistically but carry no guarantee, and live,
// entered when the ready baseline has been bulk-loaded. The readiness
// barrier is released exactly once, on the first ready application.
type Watcher struct {
	config *WatcherConfig
	store  *Store

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}

	mu  sync.Mutex
	err error

	cancel context.CancelFunc

	metrics *WatcherMetrics
}

// StartWatcher spawns the stream client and the event-fold goroutine, then
// blocks until the first ready baseline has been applied to store. It is the
// guarantee that callers observe a populated cache: the wait is unbounded
// unless ctx imposes a deadline or the pipeline terminates first.
//
// The returned handle reports pipeline termination via Done and Err. ctx
// cancellation stops the watcher.
func StartWatcher(ctx context.Context, config *WatcherConfig, store *Store) (*Watcher, error) {
	if store == nil {
		return nil, errors.New("zone store is required")
	}
	if config == nil {
		config = DefaultWatcherConfig()
	}
	if config.Client == nil {
		config.Client = zoneinfo.DefaultClientConfig()
	}
	if config.TrackedField == "" {
		config.TrackedField = DefaultTrackedField
	}
	if config.ReconnectPolicy == nil {
		config.ReconnectPolicy = NoRetry{}
	}
	if err := zoneinfo.ValidateConfig(config.Client); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		config:  config,
		store:   store,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		cancel:  cancel,
		metrics: NewWatcherMetrics(),
	}

	go w.run(runCtx)

	klog.InfoS("Waiting for zoneinfod ready baseline", "endpoint", config.Client.Endpoint)
	select {
	case <-w.ready:
		klog.InfoS("Zone cache ready", "zones", store.Len())
		return w, nil
	case <-w.done:
		return nil, fmt.Errorf("zoneinfod watcher terminated before ready: %w", w.Err())
	case <-ctx.Done():
		w.Stop()
		return nil, ctx.Err()
	}
}

// Ready reports whether the first ready baseline has been applied.
func (w *Watcher) Ready() bool {
	select {
	case <-w.ready:
		return true
	default:
		return false
	}
}

// Done is closed when the watcher has terminated for any reason.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that terminated the watcher. It is meaningful once
// Done is closed.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Stop cancels the pipeline and waits for the fold goroutine to exit.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

// run drives stream connections until a fatal error, exhausted reconnect
// policy, or cancellation.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	attempt := 0
	for {
		established, err := w.syncOnce(ctx)
		if established {
			attempt = 0
		}
		if ctx.Err() != nil {
			w.setErr(ctx.Err())
			return
		}
		if err == nil {
			err = ErrStreamClosed
		}
		if isFatal(err) {
			klog.ErrorS(err, "Zoneinfod pipeline failed, zone cache is no longer maintained")
			w.setErr(err)
			return
		}

		delay, ok := w.config.ReconnectPolicy.NextDelay(attempt)
		if !ok {
			klog.ErrorS(err, "Zoneinfod stream terminated and reconnect is disabled, zone cache is no longer maintained")
			w.setErr(err)
			return
		}
		attempt++
		w.metrics.IncrementReconnects()
		klog.InfoS("Reconnecting to zoneinfod", "attempt", attempt, "delay", delay, "cause", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			w.setErr(ctx.Err())
			return
		}
	}
}

// syncOnce runs one stream connection to completion, folding its events into
// the store. established reports whether the connection came up at all, so
// the caller can reset its backoff.
func (w *Watcher) syncOnce(ctx context.Context) (established bool, err error) {
	client, err := zoneinfo.NewClient(w.config.Client)
	if err != nil {
		return false, err
	}
	if err := client.Start(ctx); err != nil {
		return false, err
	}
	defer client.Stop()

	// Each connection carries exactly one baseline. A reconnected stream
	// starts over here: the cache keeps serving last-known records until
	// the fresh baseline overwrites them.
	live := false

	for event := range client.Events() {
		switch e := event.(type) {
		case *zoneinfo.ReadyEvent:
			if live {
				return true, ErrDuplicateReady
			}
			snapshot, err := e.Snapshot()
			if err != nil {
				return true, err
			}
			w.store.BulkLoad(snapshot)
			live = true
			w.readyOnce.Do(func() { close(w.ready) })
			w.metrics.IncrementEventsApplied(string(zoneinfo.EventTypeReady))
			klog.V(2).InfoS("Zoneinfod ready baseline applied", "zones", len(snapshot))
		case *zoneinfo.CreateEvent:
			w.store.Upsert(e.Zone)
			w.metrics.IncrementEventsApplied(string(zoneinfo.EventTypeCreate))
		case *zoneinfo.ModifyEvent:
			if !fieldChanged(e.Changes, w.config.TrackedField) {
				w.metrics.IncrementEventsSkipped(string(zoneinfo.EventTypeModify))
				continue
			}
			klog.V(2).InfoS("Tracked field changed, updating zone record",
				"uuid", e.Zone.UUID, "zonedid", e.Zone.ZonedID)
			w.store.Upsert(e.Zone)
			w.metrics.IncrementEventsApplied(string(zoneinfo.EventTypeModify))
		case *zoneinfo.DeleteEvent:
			// Deletes never evict: queued downstream log work may still
			// need the last-known record to resolve the zone.
			w.metrics.IncrementEventsSkipped(string(zoneinfo.EventTypeDelete))
		default:
			return true, fmt.Errorf("unhandled zoneinfod event type %q", event.GetType())
		}
	}

	return true, client.Err()
}

// isFatal reports whether err must terminate the pipeline regardless of the
// reconnect policy.
func isFatal(err error) bool {
	if errors.Is(err, ErrDuplicateReady) {
		return true
	}
	// An oversized line is a property of the feed, not of the connection:
	// reconnecting would replay the same line and fail again.
	if errors.Is(err, bufio.ErrTooLong) {
		return true
	}
	var decodeErr *zoneinfo.DecodeError
	return errors.As(err, &decodeErr)
}
