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

package zoneinfo

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// Metric labels
const (
	LabelEndpoint  = "endpoint"
	LabelEventType = "event_type"
)

var (
	streamMetrics     *streamMetricsVecs
	streamMetricsOnce sync.Once
)

type streamMetricsVecs struct {
	eventsReceivedTotal     *prometheus.CounterVec
	decodeErrorsTotal       *prometheus.CounterVec
	connectionFailuresTotal *prometheus.CounterVec
	connectionStatus        *prometheus.GaugeVec
}

func getStreamMetrics() *streamMetricsVecs {
	streamMetricsOnce.Do(func() {
		streamMetrics = &streamMetricsVecs{
			eventsReceivedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zonewatch_zoneinfod_events_received_total",
					Help: "Total number of zoneinfod events received, by type",
				},
				[]string{LabelEndpoint, LabelEventType},
			),
			decodeErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zonewatch_zoneinfod_decode_errors_total",
					Help: "Total number of stream lines that failed to decode",
				},
				[]string{LabelEndpoint},
			),
			connectionFailuresTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "zonewatch_zoneinfod_connection_failures_total",
					Help: "Total number of failed connection attempts to zoneinfod",
				},
				[]string{LabelEndpoint},
			),
			connectionStatus: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "zonewatch_zoneinfod_connection_status",
					Help: "Current stream connection status (1=connected, 0=disconnected)",
				},
				[]string{LabelEndpoint},
			),
		}

		collectors := []prometheus.Collector{
			streamMetrics.eventsReceivedTotal,
			streamMetrics.decodeErrorsTotal,
			streamMetrics.connectionFailuresTotal,
			streamMetrics.connectionStatus,
		}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					klog.ErrorS(err, "Failed to register zoneinfod stream metric")
				}
			}
		}
	})
	return streamMetrics
}

// ClientMetrics records stream metrics for one client, labeled by endpoint.
type ClientMetrics struct {
	endpoint string
	vecs     *streamMetricsVecs
}

func NewClientMetrics(endpoint string) *ClientMetrics {
	return &ClientMetrics{
		endpoint: endpoint,
		vecs:     getStreamMetrics(),
	}
}

func (m *ClientMetrics) IncrementEventsReceived(eventType string) {
	m.vecs.eventsReceivedTotal.WithLabelValues(m.endpoint, eventType).Inc()
}

func (m *ClientMetrics) IncrementDecodeErrors() {
	m.vecs.decodeErrorsTotal.WithLabelValues(m.endpoint).Inc()
}

func (m *ClientMetrics) IncrementConnectionFailures() {
	m.vecs.connectionFailuresTotal.WithLabelValues(m.endpoint).Inc()
}

func (m *ClientMetrics) SetConnected(connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	m.vecs.connectionStatus.WithLabelValues(m.endpoint).Set(v)
}
