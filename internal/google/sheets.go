// Package google публикует дневное расписание будок в Google Sheets.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"boothnik/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const scheduleSheetName = "Schedule"

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, scheduleSheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// ReplaceScheduleSheet полностью перезаписывает лист расписания на дату.
func (s *SheetsService) ReplaceScheduleSheet(ctx context.Context, date time.Time, rows [][]interface{}) error {
	clearRange := scheduleSheetName + "!A:Z"
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear schedule sheet: %v", err)
	}

	values := [][]interface{}{{fmt.Sprintf("Schedule for %s", date.Format(models.DateLayout))}}
	values = append(values, rows...)

	valueRange := &sheets.ValueRange{Values: values}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, scheduleSheetName+"!A1", valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update schedule sheet: %v", err)
	}
	return nil
}

// BuildScheduleRows renders reservations into sheet rows, header first.
func BuildScheduleRows(reservations []*models.Reservation) [][]interface{} {
	rows := [][]interface{}{{"Booth", "Start", "Duration", "Student", "College", "Purpose"}}
	for _, r := range reservations {
		rows = append(rows, []interface{}{
			r.BoothName,
			r.StartTime,
			r.Duration,
			r.StudentID,
			r.CollegeName,
			r.Purpose,
		})
	}
	return rows
}
