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

package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/eventlog/window"
)

type ledgerMetrics struct {
	marks       *prometheus.CounterVec
	duplicates  prometheus.Counter
	storeFaults prometheus.Counter
}

func newLedgerMetrics(reg prometheus.Registerer) *ledgerMetrics {
	factory := promauto.With(reg)
	return &ledgerMetrics{
		marks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventlog_attendance_marks_total",
			Help: "attendance marks logged by window",
		}, []string{"window"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_attendance_duplicates_total",
			Help: "scans rejected because the window was already logged",
		}),
		storeFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventlog_attendance_store_faults_total",
			Help: "failed ledger operations",
		}),
	}
}

func (m *ledgerMetrics) logged(t window.Type) {
	if m != nil {
		m.marks.WithLabelValues(t.String()).Inc()
	}
}

func (m *ledgerMetrics) duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *ledgerMetrics) fault() {
	if m != nil {
		m.storeFaults.Inc()
	}
}
