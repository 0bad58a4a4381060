package export

import (
	"io"
	"testing"
	"time"

	"boothnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportReservations(t *testing.T) {
	logger := zerolog.New(io.Discard)
	exporter := NewExporter(t.TempDir(), &logger)

	reservations := []*models.Reservation{
		{
			ID:                  "RES-1",
			StudentID:           "k21c0001",
			Email:               "k21c0001@g.neec.ac.jp",
			CollegeName:         "College C",
			BoothName:           "Booth 2",
			AssignedCollegeName: "College C",
			Date:                time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
			StartTime:           "10:00",
			Duration:            30,
			Purpose:             "interview practice",
			Status:              models.StatusConfirmed,
		},
		{
			ID:           "RES-2",
			StudentID:    "k22a0002",
			Email:        "k22a0002@g.neec.ac.jp",
			CollegeName:  "College A",
			BoothName:    "Booth 1",
			Date:         time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC),
			StartTime:    "11:00",
			Duration:     10,
			CrossCollege: true,
			Status:       models.StatusCancelled,
		},
	}

	path, err := exporter.ExportReservations(reservations)
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "RES-1", rows[1][0])
	assert.Equal(t, "2026-09-10", rows[1][6])
	assert.Equal(t, "yes", rows[2][10])
	assert.Equal(t, models.StatusCancelled, rows[2][11])
}

func TestExportReservationsEmpty(t *testing.T) {
	logger := zerolog.New(io.Discard)
	exporter := NewExporter(t.TempDir(), &logger)

	path, err := exporter.ExportReservations(nil)
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
