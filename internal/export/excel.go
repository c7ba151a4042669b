// Package export writes the schedule window to Excel workbooks.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gymbody/internal/models"
	"gymbody/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	gridSheet = "Schedule"
	listSheet = "Sessions"
)

// Exporter saves schedule workbooks under a directory.
type Exporter struct {
	dir    string
	logger *zerolog.Logger
}

func NewExporter(dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// Save writes the workbook for days and returns its path.
func (e *Exporter) Save(gym models.GymConfig, days []schedule.Day, sessions []*models.ClassSession, now time.Time) (string, error) {
	if len(days) == 0 {
		return "", fmt.Errorf("no days to export")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Workbook(gym, days, sessions)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("%s_schedule_%s_to_%s_%s.xlsx",
		gym.ID, days[0].Date, days[len(days)-1].Date, now.Format("150405"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("sessions", len(sessions)).Msg("Excel file created")
	return filePath, nil
}

// Workbook builds a grid sheet (hours by date) and a flat session list.
func Workbook(gym models.GymConfig, days []schedule.Day, sessions []*models.ClassSession) (*excelize.File, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(gridSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	if _, err := f.NewSheet(listSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	writeGrid(f, styles, gym, days, sessions)
	writeList(f, styles, sessions)

	if idx, err := f.GetSheetIndex(gridSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

type styleSet struct {
	title, header, hour, free, partial, full int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: &excelize.Alignment{Horizontal: "center"}}},
		{&s.header, &excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.hour, &excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1}, Font: &excelize.Font{Bold: true}}},
		{&s.free, cellStyle("#C6EFCE")},
		{&s.partial, cellStyle("#FFEB9C")},
		{&s.full, cellStyle("#FFC7CE")},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, fmt.Errorf("error creating style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

func cellStyle(color string) *excelize.Style {
	return &excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	}
}

func writeGrid(f *excelize.File, st styleSet, gym models.GymConfig, days []schedule.Day, sessions []*models.ClassSession) {
	title := fmt.Sprintf("%s: %s - %s", gym.Name, days[0].Date, days[len(days)-1].Date)
	_ = f.SetCellValue(gridSheet, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(len(days) + 1)
	_ = f.MergeCell(gridSheet, "A1", lastCol+"1")
	_ = f.SetCellStyle(gridSheet, "A1", "A1", st.title)

	dateCols := make(map[string]int, len(days))
	hourSet := make(map[int]bool)
	for i, d := range days {
		col := i + 2
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(gridSheet, cell, fmt.Sprintf("%s %s", d.Weekday.String()[:3], d.Date))
		_ = f.SetCellStyle(gridSheet, cell, cell, st.header)
		dateCols[d.Date] = col
		for _, h := range d.Hours {
			hourSet[h] = true
		}
	}

	hourRows := make(map[string]int)
	row := 3
	for h := 0; h < 24; h++ {
		if !hourSet[h] {
			continue
		}
		label := schedule.FormatHour(h)
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(gridSheet, cell, label)
		_ = f.SetCellStyle(gridSheet, cell, cell, st.hour)
		hourRows[label] = row
		row++
	}

	type slot struct{ col, row int }
	cells := make(map[slot][]*models.ClassSession)
	for _, s := range sessions {
		col, okCol := dateCols[s.Date]
		r, okRow := hourRows[s.Time]
		if !okCol || !okRow {
			continue
		}
		cells[slot{col, r}] = append(cells[slot{col, r}], s)
	}

	for pos, list := range cells {
		cell, _ := excelize.CoordinatesToCellName(pos.col, pos.row)
		var text string
		full, booked := 0, 0
		for _, s := range list {
			text += fmt.Sprintf("%s (%s) %d/%d\n", s.Title, s.Instructor, s.Booked, s.Capacity)
			if s.IsFull() {
				full++
			}
			booked += s.Booked
		}
		_ = f.SetCellValue(gridSheet, cell, text)

		style := st.free
		switch {
		case full == len(list):
			style = st.full
		case booked > 0:
			style = st.partial
		}
		_ = f.SetCellStyle(gridSheet, cell, cell, style)
	}

	_ = f.SetColWidth(gridSheet, "A", "A", 12)
	if len(days) > 0 {
		_ = f.SetColWidth(gridSheet, "B", lastCol, 34)
	}
}

func writeList(f *excelize.File, st styleSet, sessions []*models.ClassSession) {
	headers := []interface{}{"ID", "Date", "Time", "Title", "Instructor", "Category", "Booked", "Capacity", "Status"}
	_ = f.SetSheetRow(listSheet, "A1", &headers)
	_ = f.SetCellStyle(listSheet, "A1", "I1", st.header)

	for i, s := range sessions {
		status := "Open"
		if s.IsFull() {
			status = "Full"
		}
		row := []interface{}{s.ID, s.Date, s.Time, s.Title, s.Instructor, string(s.Category), s.Booked, s.Capacity, status}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(listSheet, cell, &row)
	}
	_ = f.SetColWidth(listSheet, "A", "C", 12)
	_ = f.SetColWidth(listSheet, "D", "F", 24)
}
