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

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type cacheMetrics struct {
	events          prometheus.Gauge
	upserts         prometheus.Counter
	removals        prometheus.Counter
	clears          prometheus.Counter
	integrityFaults prometheus.Counter
	storeFaults     prometheus.Counter
}

func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	factory := promauto.With(reg)
	return &cacheMetrics{
		events: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eventlog_cache_events",
			Help: "approved events in the cache at the last read",
		}),
		upserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_cache_upserts_total",
			Help: "events written to the cache",
		}),
		removals: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_cache_removals_total",
			Help: "events removed from the cache",
		}),
		clears: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_cache_clears_total",
			Help: "full cache wipes",
		}),
		integrityFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_cache_integrity_faults_total",
			Help: "events received with mismatched occurrence dates and ids",
		}),
		storeFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_cache_store_faults_total",
			Help: "failed cache operations",
		}),
	}
}

// The methods below are no-ops on a nil receiver so call sites need no guard

func (m *cacheMetrics) upsert() {
	if m != nil {
		m.upserts.Inc()
	}
}

func (m *cacheMetrics) removed(n int) {
	if m != nil {
		m.removals.Add(float64(n))
	}
}

func (m *cacheMetrics) cleared() {
	if m != nil {
		m.clears.Inc()
	}
}

func (m *cacheMetrics) integrityFault() {
	if m != nil {
		m.integrityFaults.Inc()
	}
}

func (m *cacheMetrics) fault() {
	if m != nil {
		m.storeFaults.Inc()
	}
}

func (m *cacheMetrics) size(n int) {
	if m != nil {
		m.events.Set(float64(n))
	}
}
