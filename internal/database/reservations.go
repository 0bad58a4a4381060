package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boothnik/internal/ledger"
	"boothnik/internal/models"

	"github.com/google/uuid"
)

const reservationColumns = `id, email, student_id, booth_id, booth_name, college, college_name,
                 assigned_college, assigned_college_name, date, start_time, duration,
                 purpose, reminder, cross_college, status, created_at, updated_at`

func (db *DB) ListByDate(ctx context.Context, date time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE date = ? AND status = ?
              ORDER BY start_time ASC, booth_id ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, date.Format(models.DateLayout), models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations by date: %w", err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

func (db *DB) ListByRequester(ctx context.Context, email string) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE email = ? COLLATE NOCASE
              ORDER BY date ASC, start_time ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list requester reservations: %w", err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

func (db *DB) ListAll(ctx context.Context) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              ORDER BY date ASC, start_time ASC, booth_id ASC, id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

func (db *DB) CountByBooth(ctx context.Context) (map[int64]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT booth_id, COUNT(*) FROM reservations GROUP BY booth_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count reservations by booth: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var boothID int64
		var count int
		if err := rows.Scan(&boothID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan booth count: %w", err)
		}
		counts[boothID] = count
	}
	return counts, rows.Err()
}

// TryInsert re-validates the candidate interval against confirmed rows for
// the same booth and date inside one transaction and stores the row. The
// commit-time re-check is mandatory: the proposal the caller holds may be
// stale by now.
func (db *DB) TryInsert(ctx context.Context, r *models.Reservation) error {
	candidate, err := r.Interval()
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInterval, err)
	}

	unlock := db.lockPartitions(partitionKey(r.BoothID, r.Date))
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Overlap re-check inside the transaction
	if err := checkConflictTx(ctx, tx, r.BoothID, r.Date, candidate, ""); err != nil {
		return err
	}

	// 2. Insert the reservation
	now := time.Now()
	if r.ID == "" {
		r.ID = models.ReservationIDPrefix + uuid.NewString()
	}
	if r.Status == "" {
		r.Status = models.StatusConfirmed
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	query := `INSERT INTO reservations (
                id, email, student_id, booth_id, booth_name, college, college_name,
                assigned_college, assigned_college_name, date, start_time, duration,
                purpose, reminder, cross_college, status, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		r.ID,
		r.Email,
		r.StudentID,
		r.BoothID,
		r.BoothName,
		r.College,
		r.CollegeName,
		r.AssignedCollege,
		r.AssignedCollegeName,
		r.Date.Format(models.DateLayout),
		r.StartTime,
		r.Duration,
		r.Purpose,
		r.Reminder,
		r.CrossCollege,
		r.Status,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	return tx.Commit()
}

func (db *DB) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	existing, err := db.getReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.StatusCancelled {
		return nil, ledger.ErrNotFound
	}

	unlock := db.lockPartitions(partitionKey(existing.BoothID, existing.Date))
	defer unlock()

	now := time.Now()
	query := `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status != ?`
	result, err := db.ExecContext(ctx, query, models.StatusCancelled, now, id, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ledger.ErrNotFound
	}

	existing.Status = models.StatusCancelled
	existing.UpdatedAt = now
	return existing, nil
}

// Update applies the admin edit after re-running the overlap check against
// all other confirmed reservations on the target booth and date.
func (db *DB) Update(ctx context.Context, id string, upd models.ReservationUpdate) (*models.Reservation, error) {
	existing, err := db.getReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	edited := *existing
	if upd.BoothID != nil {
		edited.BoothID = *upd.BoothID
	}
	if upd.Date != nil {
		edited.Date = *upd.Date
	}
	if upd.StartTime != nil {
		edited.StartTime = *upd.StartTime
	}
	if upd.Duration != nil {
		edited.Duration = *upd.Duration
	}
	if upd.Purpose != nil {
		edited.Purpose = *upd.Purpose
	}
	if upd.Reminder != nil {
		edited.Reminder = *upd.Reminder
	}
	if upd.BoothName != nil {
		edited.BoothName = *upd.BoothName
	}
	if upd.AssignedCollege != nil {
		edited.AssignedCollege = *upd.AssignedCollege
	}
	if upd.AssignedCollegeName != nil {
		edited.AssignedCollegeName = *upd.AssignedCollegeName
	}
	if upd.CrossCollege != nil {
		edited.CrossCollege = *upd.CrossCollege
	}

	candidate, err := edited.Interval()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidInterval, err)
	}

	unlock := db.lockPartitions(
		partitionKey(existing.BoothID, existing.Date),
		partitionKey(edited.BoothID, edited.Date),
	)
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if edited.Status == models.StatusConfirmed {
		if err := checkConflictTx(ctx, tx, edited.BoothID, edited.Date, candidate, id); err != nil {
			return nil, err
		}
	}

	edited.UpdatedAt = time.Now()
	query := `UPDATE reservations SET booth_id = ?, booth_name = ?, assigned_college = ?,
                  assigned_college_name = ?, cross_college = ?, date = ?, start_time = ?,
                  duration = ?, purpose = ?, reminder = ?, updated_at = ?
              WHERE id = ?`
	_, err = tx.ExecContext(ctx, query,
		edited.BoothID,
		edited.BoothName,
		edited.AssignedCollege,
		edited.AssignedCollegeName,
		edited.CrossCollege,
		edited.Date.Format(models.DateLayout),
		edited.StartTime,
		edited.Duration,
		edited.Purpose,
		edited.Reminder,
		edited.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &edited, nil
}

func (db *DB) getReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	row := db.QueryRowContext(ctx, query, id)

	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// GetReservation возвращает бронирование по ID
func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return db.getReservation(ctx, id)
}

// ListRemindersForDate returns confirmed reservations on the date that opted
// in to a reminder.
func (db *DB) ListRemindersForDate(ctx context.Context, date time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE date = ? AND status = ? AND reminder = 1
              ORDER BY start_time ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, date.Format(models.DateLayout), models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

func checkConflictTx(ctx context.Context, tx *sql.Tx, boothID int64, date time.Time, candidate models.Interval, excludeID string) error {
	query := `SELECT start_time, duration FROM reservations
              WHERE booth_id = ? AND date = ? AND status = ? AND id != ?`
	rows, err := tx.QueryContext(ctx, query, boothID, date.Format(models.DateLayout), models.StatusConfirmed, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check conflicts in tx: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var startTime string
		var duration int
		if err := rows.Scan(&startTime, &duration); err != nil {
			return fmt.Errorf("failed to scan conflict row: %w", err)
		}
		iv, err := models.NewInterval(startTime, duration)
		if err != nil {
			continue
		}
		if iv.Overlaps(candidate) {
			return ledger.ErrConflict
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var dateStr string
	err := row.Scan(
		&r.ID, &r.Email, &r.StudentID, &r.BoothID, &r.BoothName, &r.College, &r.CollegeName,
		&r.AssignedCollege, &r.AssignedCollegeName, &dateStr, &r.StartTime, &r.Duration,
		&r.Purpose, &r.Reminder, &r.CrossCollege, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservation date %s: %w", dateStr, err)
	}
	return &r, nil
}

func scanReservations(rows *sql.Rows) ([]*models.Reservation, error) {
	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
