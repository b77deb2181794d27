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

// Package report renders the local cache and attendance ledger into
// documents for export.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/blinklabs-io/eventlog/attendance"
	"github.com/blinklabs-io/eventlog/schedule"
	"github.com/blinklabs-io/eventlog/window"
)

const (
	AttendanceSheet = "Attendance"

	timestampLayout = "2006-01-02 15:04:05"
)

// AttendanceRow is one subject at one occurrence
type AttendanceRow struct {
	Event      schedule.Event
	Occurrence schedule.Occurrence
	Record     attendance.Record
}

var attendanceHeaders = []string{
	"Event",
	"Venue",
	"Date",
	"Subject",
	window.AMIn.Label(),
	window.AMOut.Label(),
	window.PMIn.Label(),
	window.PMOut.Label(),
}

// SortRows orders rows by date, event name and subject
func SortRows(rows []AttendanceRow) {
	slices.SortStableFunc(rows, func(a, b AttendanceRow) int {
		switch {
		case a.Occurrence.Date != b.Occurrence.Date:
			return cmp.Compare(a.Occurrence.Date, b.Occurrence.Date)
		case a.Event.Name != b.Event.Name:
			return cmp.Compare(a.Event.Name, b.Event.Name)
		default:
			return cmp.Compare(a.Record.SubjectID, b.Record.SubjectID)
		}
	})
}

// rowCells renders a row in header order. Windows without a mark are blank.
func rowCells(r AttendanceRow, loc *time.Location) []string {
	ret := []string{
		r.Event.Name,
		r.Event.Venue,
		r.Occurrence.Date,
		r.Record.SubjectID,
	}
	for _, t := range window.Types {
		at, ok := r.Record.Windows[t]
		switch {
		case !ok:
			ret = append(ret, "")
		case at.IsZero():
			// Logged before times were kept
			ret = append(ret, "yes")
		default:
			ret = append(ret, at.In(loc).Format(timestampLayout))
		}
	}
	return ret
}

// WriteAttendanceXLSX writes rows as a spreadsheet. Mark times are shown in
// loc, or UTC when loc is nil.
func WriteAttendanceXLSX(w io.Writer, rows []AttendanceRow, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()
	index, err := f.NewSheet(AttendanceSheet)
	if err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	f.SetActiveSheet(index)

	for i, h := range attendanceHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(AttendanceSheet, cell, h); err != nil {
			return err
		}
	}
	for rIdx, r := range rows {
		cells := rowCells(r, loc)
		values := make([]any, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, rIdx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(AttendanceSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", rIdx+2, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return err
	}
	return nil
}
