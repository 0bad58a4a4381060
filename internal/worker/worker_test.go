package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"boothnik/internal/database"
	"boothnik/internal/models"

	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, models.NotifyConfirmation, testReservation("RES-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if notifier.confirmCalls != 1 {
		t.Fatalf("expected confirmation call, got %d", notifier.confirmCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{err: errors.New("boom")}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, models.NotifyConfirmation, testReservation("RES-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{err: errors.New("fatal")}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	worker.EnqueueTask(ctx, models.NotifyConfirmation, testReservation("RES-3"))
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestNotifyWorker_Deliver(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{MaxRetries: 3}, nil)

	ctx := context.Background()
	r := testReservation("RES-4")

	t.Run("Confirmation", func(t *testing.T) {
		if err := worker.deliver(ctx, models.NotifyConfirmation, r); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if notifier.confirmCalls != 1 {
			t.Fatalf("expected 1 confirmation call, got %d", notifier.confirmCalls)
		}
	})

	t.Run("Cancellation", func(t *testing.T) {
		if err := worker.deliver(ctx, models.NotifyCancellation, r); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if notifier.cancelCalls != 1 {
			t.Fatalf("expected 1 cancellation call, got %d", notifier.cancelCalls)
		}
	})

	t.Run("CrossCollege", func(t *testing.T) {
		if err := worker.deliver(ctx, models.NotifyCrossCollege, r); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if notifier.crossCalls != 1 {
			t.Fatalf("expected 1 cross-college call, got %d", notifier.crossCalls)
		}
	})

	t.Run("Reminder", func(t *testing.T) {
		if err := worker.deliver(ctx, models.NotifyReminder, r); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if notifier.reminderCalls != 1 {
			t.Fatalf("expected 1 reminder call, got %d", notifier.reminderCalls)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.deliver(ctx, "bogus", r); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestNotifyWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewNotifyWorker(db, &fakeNotifier{}, nil, RetryPolicy{}, nil)

	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, models.NotifyConfirmation, testReservation("RES-5")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", testReservation("RES-5")); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("MissingReservation", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, models.NotifyConfirmation, nil); err == nil {
			t.Fatalf("expected error for nil reservation")
		}
	})
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestReminderSweeper(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	worker := NewNotifyWorker(db, notifier, nil, RetryPolicy{}, nil)
	sweeper := NewReminderSweeper(db, worker, nil, 9, nil)

	ctx := context.Background()
	tomorrow := time.Now().AddDate(0, 0, 1).Truncate(24 * time.Hour)

	r := testReservation("")
	r.ID = ""
	r.Date = tomorrow
	r.Reminder = true
	if err := db.TryInsert(ctx, r); err != nil {
		t.Fatalf("insert: %v", err)
	}
	noReminder := testReservation("")
	noReminder.ID = ""
	noReminder.Date = tomorrow
	noReminder.StartTime = "11:00"
	if err := db.TryInsert(ctx, noReminder); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// До часа рассылки ничего не происходит
	early := time.Date(2026, 9, 9, 7, 0, 0, 0, time.UTC)
	sweeper.SweepOnce(ctx, early)
	tasks, _ := db.GetPendingNotifyTasks(ctx, 10)
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks before reminder hour, got %d", len(tasks))
	}

	noon := time.Now().Truncate(24 * time.Hour).Add(12 * time.Hour)
	sweeper.SweepOnce(ctx, noon)
	tasks, _ = db.GetPendingNotifyTasks(ctx, 10)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 reminder task, got %d", len(tasks))
	}
	if tasks[0].Type != models.NotifyReminder {
		t.Fatalf("expected reminder task, got %s", tasks[0].Type)
	}

	// Повторный проход в тот же день не дублирует
	sweeper.SweepOnce(ctx, noon.Add(time.Hour))
	tasks, _ = db.GetPendingNotifyTasks(ctx, 10)
	if len(tasks) != 1 {
		t.Fatalf("expected sweep to run once per day, got %d tasks", len(tasks))
	}
}

// Helpers

type fakeNotifier struct {
	err           error
	confirmCalls  int
	cancelCalls   int
	crossCalls    int
	reminderCalls int
}

func (f *fakeNotifier) SendConfirmation(ctx context.Context, r *models.Reservation) error {
	f.confirmCalls++
	return f.err
}

func (f *fakeNotifier) SendCancellation(ctx context.Context, r *models.Reservation) error {
	f.cancelCalls++
	return f.err
}

func (f *fakeNotifier) SendCrossCollege(ctx context.Context, r *models.Reservation) error {
	f.crossCalls++
	return f.err
}

func (f *fakeNotifier) SendReminder(ctx context.Context, r *models.Reservation) error {
	f.reminderCalls++
	return f.err
}

func testReservation(id string) *models.Reservation {
	return &models.Reservation{
		ID:        id,
		Email:     "k21c0001@g.neec.ac.jp",
		StudentID: "k21c0001",
		BoothID:   2,
		BoothName: "Booth 2",
		College:   "c",
		Date:      time.Now().AddDate(0, 0, 3).Truncate(24 * time.Hour),
		StartTime: "10:00",
		Duration:  30,
		Status:    models.StatusConfirmed,
	}
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM notify_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
