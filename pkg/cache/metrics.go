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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

const LabelEventType = "event_type"

var (
	cacheMetrics     *cacheMetricsVecs
	cacheMetricsOnce sync.Once
)

type cacheMetricsVecs struct {
	cacheSize          prometheus.Gauge
	eventsAppliedTotal *prometheus.CounterVec
	eventsSkippedTotal *prometheus.CounterVec
	reconnectsTotal    prometheus.Counter
}

func getCacheMetrics() *cacheMetricsVecs {
	cacheMetricsOnce.Do(func() {
		cacheMetrics = &cacheMetricsVecs{
			cacheSize: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "zonewatch_cache_zones",
					Help: "Number of zone records currently cached",
				},
			),
			eventsAppliedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zonewatch_cache_events_applied_total",
					Help: "Total number of zoneinfod events applied to the cache, by type",
				},
				[]string{LabelEventType},
			),
			eventsSkippedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zonewatch_cache_events_skipped_total",
					Help: "Total number of zoneinfod events that left the cache untouched, by type",
				},
				[]string{LabelEventType},
			),
			reconnectsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "zonewatch_watcher_reconnects_total",
					Help: "Total number of zoneinfod stream reconnect attempts",
				},
			),
		}

		collectors := []prometheus.Collector{
			cacheMetrics.cacheSize,
			cacheMetrics.eventsAppliedTotal,
			cacheMetrics.eventsSkippedTotal,
			cacheMetrics.reconnectsTotal,
		}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					klog.ErrorS(err, "Failed to register zone cache metric")
				}
			}
		}
	})
	return cacheMetrics
}

// StoreMetrics records cache state metrics.
type StoreMetrics struct {
	vecs *cacheMetricsVecs
}

func NewStoreMetrics() *StoreMetrics {
	return &StoreMetrics{vecs: getCacheMetrics()}
}

func (m *StoreMetrics) SetSize(n int) {
	m.vecs.cacheSize.Set(float64(n))
}

// WatcherMetrics records event-fold metrics.
type WatcherMetrics struct {
	vecs *cacheMetricsVecs
}

func NewWatcherMetrics() *WatcherMetrics {
	return &WatcherMetrics{vecs: getCacheMetrics()}
}

func (m *WatcherMetrics) IncrementEventsApplied(eventType string) {
	m.vecs.eventsAppliedTotal.WithLabelValues(eventType).Inc()
}

func (m *WatcherMetrics) IncrementEventsSkipped(eventType string) {
	m.vecs.eventsSkippedTotal.WithLabelValues(eventType).Inc()
}

func (m *WatcherMetrics) IncrementReconnects() {
	m.vecs.reconnectsTotal.Inc()
}
