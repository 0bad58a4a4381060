package domain

import (
	"context"
	"time"

	"boothnik/internal/models"
)

// Ledger is the single source of truth for reservations. Implementations must
// execute TryInsert's overlap re-check and write atomically per (booth, date)
// partition; Cancel and Update take part in the same exclusion scope.
type Ledger interface {
	// ListByDate returns confirmed reservations for the calendar date.
	ListByDate(ctx context.Context, date time.Time) ([]*models.Reservation, error)
	// ListByRequester returns the requester's reservations, cancelled included,
	// ordered ascending by (date, start time).
	ListByRequester(ctx context.Context, email string) ([]*models.Reservation, error)
	// ListAll returns every stored reservation for the admin table.
	ListAll(ctx context.Context) ([]*models.Reservation, error)
	// CountByBooth returns the historical reservation count per booth.
	CountByBooth(ctx context.Context) (map[int64]int, error)
	// TryInsert re-validates the candidate against confirmed reservations for
	// the same booth and date and stores it. Returns ledger.ErrConflict and
	// performs no mutation when the interval overlaps an existing one.
	TryInsert(ctx context.Context, r *models.Reservation) error
	// Cancel marks the reservation cancelled and returns the record, or
	// ledger.ErrNotFound when the id is unknown or already cancelled.
	Cancel(ctx context.Context, id string) (*models.Reservation, error)
	// Update applies the admin edit after re-checking the resulting interval
	// against all other confirmed reservations on the target booth and date.
	Update(ctx context.Context, id string, upd models.ReservationUpdate) (*models.Reservation, error)
	Close() error
}

// ProposalStore keeps pending, not yet committed proposals with a TTL.
type ProposalStore interface {
	Put(ctx context.Context, p *models.Proposal, ttl time.Duration) error
	Get(ctx context.Context, token string) (*models.Proposal, error)
	Delete(ctx context.Context, token string) error
}

// TaskQueue is the persistent notification outbox.
type TaskQueue interface {
	CreateNotifyTask(ctx context.Context, task *models.NotifyTask) error
	GetPendingNotifyTasks(ctx context.Context, limit int) ([]models.NotifyTask, error)
	UpdateNotifyTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Notifier delivers reservation notifications. Implementations are external
// collaborators; failures must never roll back a committed reservation.
type Notifier interface {
	SendConfirmation(ctx context.Context, r *models.Reservation) error
	SendCancellation(ctx context.Context, r *models.Reservation) error
	SendCrossCollege(ctx context.Context, r *models.Reservation) error
	SendReminder(ctx context.Context, r *models.Reservation) error
}

// SheetsWriter publishes the day schedule to an external spreadsheet.
type SheetsWriter interface {
	ReplaceScheduleSheet(ctx context.Context, date time.Time, rows [][]interface{}) error
}

// EventPublisher publishes in-process domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotifyEnqueuer hands notification work to the outbox worker.
type NotifyEnqueuer interface {
	EnqueueTask(ctx context.Context, taskType string, r *models.Reservation) error
}
