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
	"fmt"

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/database"
	"github.com/blinklabs-io/eventlog/token"
	"github.com/blinklabs-io/eventlog/window"
)

// Message returns the text shown to the scanning user for the result of
// Admit. A nil error yields the success message.
func Message(err error) string {
	var outside *window.OutsideWindowError
	switch {
	case err == nil:
		return "Attendance recorded."
	case errors.Is(err, token.ErrDecrypt), errors.Is(err, token.ErrFormat):
		return "Invalid code. Please scan a valid attendance QR code."
	case errors.Is(err, ErrUnknownOccurrence):
		return "This code is not for an approved event on this device."
	case errors.Is(err, ErrWrongDate):
		return "This event is not scheduled for today."
	case errors.As(err, &outside):
		return outsideMessage(outside)
	case errors.Is(err, attendance.ErrAlreadyLogged):
		return "Attendance already recorded for this window."
	case errors.Is(err, database.ErrStore):
		return "Attendance could not be saved. Please try again."
	default:
		return "Scan failed. Please try again."
	}
}

func outsideMessage(e *window.OutsideWindowError) string {
	switch {
	case e.Nearest == nil:
		return "Outside admission hours."
	case e.Upcoming:
		return fmt.Sprintf(
			"Outside admission hours. %s opens at %s.",
			e.Nearest.Type.Label(),
			e.Nearest.Start.Kitchen(),
		)
	default:
		return fmt.Sprintf(
			"Outside admission hours. %s closed at %s.",
			e.Nearest.Type.Label(),
			e.Nearest.End.Kitchen(),
		)
	}
}
