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

package report

import (
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Column widths in mm, filling a landscape A4 page inside default margins
var attendancePDFWidths = []float64{55, 40, 24, 38, 30, 30, 30, 30}

// WriteAttendancePDF writes rows as a printable landscape attendance sheet.
// Mark times are shown in loc, or UTC when loc is nil.
func WriteAttendancePDF(w io.Writer, rows []AttendanceRow, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Attendance", true)
	// Core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Attendance")
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 8)
	for i, h := range attendanceHeaders {
		pdf.CellFormat(attendancePDFWidths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 7)
	for _, r := range rows {
		for i, c := range rowCells(r, loc) {
			align := "C"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(
				attendancePDFWidths[i],
				6,
				tr(truncate(c, 40)),
				"1",
				0,
				align,
				false,
				0,
				"",
			)
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

// truncate shortens s to n runes for a fixed width cell
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
