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

package admission

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/token"
	"github.com/blinklabs-io/eventlog/window"
)

type admissionMetrics struct {
	scans *prometheus.CounterVec
}

func newAdmissionMetrics(reg prometheus.Registerer) *admissionMetrics {
	return &admissionMetrics{
		scans: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "eventlog_admission_scans_total",
			Help: "scans by outcome",
		}, []string{"result"}),
	}
}

func (m *admissionMetrics) outcome(err error) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var outside *window.OutsideWindowError
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, token.ErrDecrypt), errors.Is(err, token.ErrFormat):
		return "invalid_token"
	case errors.Is(err, ErrUnknownOccurrence):
		return "unknown_occurrence"
	case errors.Is(err, ErrWrongDate):
		return "wrong_date"
	case errors.As(err, &outside):
		return "outside_window"
	case errors.Is(err, attendance.ErrAlreadyLogged):
		return "already_logged"
	default:
		return "fault"
	}
}
