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

package sqlite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	txns *prometheus.CounterVec
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	factory := promauto.With(reg)
	return &storeMetrics{
		txns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlog_sqlite_transactions_total",
				Help: "SQLite transactions by result",
			},
			[]string{"result"},
		),
	}
}

func (m *storeMetrics) observeTxn(err error) {
	if m == nil {
		return
	}
	result := "commit"
	if err != nil {
		result = "rollback"
	}
	m.txns.WithLabelValues(result).Inc()
}
