package notify

import (
	"context"

	"boothnik/internal/models"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the application log. Used when no
// webhook URL is configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendConfirmation(ctx context.Context, r *models.Reservation) error {
	n.log("confirmation", r)
	return nil
}

func (n *LogNotifier) SendCancellation(ctx context.Context, r *models.Reservation) error {
	n.log("cancellation", r)
	return nil
}

func (n *LogNotifier) SendCrossCollege(ctx context.Context, r *models.Reservation) error {
	n.log("cross_college", r)
	return nil
}

func (n *LogNotifier) SendReminder(ctx context.Context, r *models.Reservation) error {
	n.log("reminder", r)
	return nil
}

func (n *LogNotifier) log(kind string, r *models.Reservation) {
	n.logger.Info().
		Str("kind", kind).
		Str("reservation_id", r.ID).
		Str("email", r.Email).
		Str("booth", r.BoothName).
		Str("date", r.DateKey()).
		Str("start_time", r.StartTime).
		Msg("notification")
}
