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

package eventsync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type syncMetrics struct {
	runs     *prometheus.CounterVec
	skips    *prometheus.CounterVec
	duration prometheus.Histogram
}

func newSyncMetrics(reg prometheus.Registerer) *syncMetrics {
	factory := promauto.With(reg)
	return &syncMetrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventlog_sync_runs_total",
			Help: "reconciliation runs by source and result",
		}, []string{"source", "result"}),
		skips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventlog_sync_skipped_total",
			Help: "coalesced sync triggers by source and reason",
		}, []string{"source", "reason"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventlog_sync_duration_seconds",
			Help:    "duration of reconciliation runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *syncMetrics) run(src Source, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(src.String(), result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *syncMetrics) skip(src Source, reason string) {
	if m != nil {
		m.skips.WithLabelValues(src.String(), reason).Inc()
	}
}
