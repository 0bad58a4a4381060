package worker

import (
	"context"
	"log"
	"time"

	"boothnik/internal/domain"
	"boothnik/internal/models"

	"github.com/redis/go-redis/v9"
)

// ReminderSource lists reservations that asked for a day-before reminder.
type ReminderSource interface {
	ListRemindersForDate(ctx context.Context, date time.Time) ([]*models.Reservation, error)
}

// ReminderSweeper enqueues reminder notifications for tomorrow's reservations
// once per day after the configured hour.
type ReminderSweeper struct {
	source       ReminderSource
	enqueuer     domain.NotifyEnqueuer
	redis        *redis.Client
	hour         int
	tickInterval time.Duration
	lastSwept    string
	logger       *log.Logger
}

func NewReminderSweeper(source ReminderSource, enqueuer domain.NotifyEnqueuer, redisClient *redis.Client, hour int, logger *log.Logger) *ReminderSweeper {
	if hour <= 0 || hour > 23 {
		hour = models.ReminderHour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReminderSweeper{
		source:       source,
		enqueuer:     enqueuer,
		redis:        redisClient,
		hour:         hour,
		tickInterval: 10 * time.Minute,
		logger:       logger,
	}
}

// Start runs the sweep loop; stops when ctx is done.
func (s *ReminderSweeper) Start(ctx context.Context) {
	s.logger.Printf("reminder_sweeper: started")
	defer s.logger.Printf("reminder_sweeper: stopped")

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now())
		}
	}
}

// SweepOnce enqueues reminders for the day after "now" when the reminder hour
// has passed and today's sweep has not run yet.
func (s *ReminderSweeper) SweepOnce(ctx context.Context, now time.Time) {
	if now.Hour() < s.hour {
		return
	}
	today := now.Format(models.DateLayout)
	if s.lastSwept == today {
		return
	}
	if !s.claimSweep(ctx, today) {
		s.lastSwept = today
		return
	}

	tomorrow := now.AddDate(0, 0, 1).Truncate(24 * time.Hour)
	reservations, err := s.source.ListRemindersForDate(ctx, tomorrow)
	if err != nil {
		s.logger.Printf("reminder_sweeper: list reminders: %v", err)
		return
	}

	for _, r := range reservations {
		if err := s.enqueuer.EnqueueTask(ctx, models.NotifyReminder, r); err != nil {
			s.logger.Printf("reminder_sweeper: enqueue %s: %v", r.ID, err)
		}
	}

	s.lastSwept = today
	s.logger.Printf("reminder_sweeper: enqueued %d reminders for %s", len(reservations), tomorrow.Format(models.DateLayout))
}

// claimSweep takes a cross-instance lock for today's sweep. Without redis the
// in-memory marker is the only guard, duplicates after a restart are accepted.
func (s *ReminderSweeper) claimSweep(ctx context.Context, day string) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, "reminder:swept:"+day, "1", 48*time.Hour).Result()
	if err != nil {
		s.logger.Printf("reminder_sweeper: redis claim: %v", err)
		return true
	}
	return ok
}
