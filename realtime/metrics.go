// Copyright 2025 Blink Labs Software
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

package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type busMetrics struct {
	state      prometheus.Gauge
	reconnects prometheus.Counter
	messages   *prometheus.CounterVec
}

func newBusMetrics(reg prometheus.Registerer) *busMetrics {
	factory := promauto.With(reg)
	return &busMetrics{
		state: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eventlog_realtime_state",
			Help: "real-time channel state (0 disconnected, 1 connecting, 2 connected)",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_realtime_reconnect_attempts_total",
			Help: "scheduled reconnect attempts",
		}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventlog_realtime_messages_total",
			Help: "inbound real-time messages by outcome",
		}, []string{"event", "outcome"}),
	}
}

func (m *busMetrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

func (m *busMetrics) reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *busMetrics) message(name, outcome string) {
	if m != nil {
		m.messages.WithLabelValues(name, outcome).Inc()
	}
}
