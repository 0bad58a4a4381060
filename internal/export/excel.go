// Package export пишет журнал бронирований в Excel файл.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"boothnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Reservations"

type Exporter struct {
	dir    string
	logger *zerolog.Logger
}

func NewExporter(dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// ExportReservations writes every reservation to a dated xlsx file and
// returns the file path.
func (e *Exporter) ExportReservations(reservations []*models.Reservation) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Student", "Email", "College", "Booth", "Assigned College",
		"Date", "Start", "Duration (min)", "Purpose", "Cross-college", "Status",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)

	for i, r := range reservations {
		row := i + 2
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.StudentID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.Email)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.CollegeName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), r.BoothName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), r.AssignedCollegeName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), r.DateKey())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), r.StartTime)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), r.Duration)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), r.Purpose)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), boolToYesNo(r.CrossCollege))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("L%d", row), r.Status)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 40)
	_ = f.SetColWidth(sheetName, "B", "F", 18)
	_ = f.SetColWidth(sheetName, "G", "I", 14)
	_ = f.SetColWidth(sheetName, "J", "J", 30)
	_ = f.SetColWidth(sheetName, "K", "L", 14)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("reservations_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func boolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
