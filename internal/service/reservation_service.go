package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boothnik/internal/domain"
	"boothnik/internal/events"
	"boothnik/internal/identity"
	"boothnik/internal/ledger"
	"boothnik/internal/metrics"
	"boothnik/internal/models"
	"boothnik/internal/repository"
	"boothnik/internal/schedule"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNoCapacity: все будки заняты на запрошенный интервал
	ErrNoCapacity = errors.New("no booth available for the requested slot")
	// ErrProposalExpired: токен неизвестен или TTL истёк
	ErrProposalExpired = errors.New("proposal expired or not found")
	// ErrInvalidDuration: длительность не кратна слоту или выходит за рабочие часы
	ErrInvalidDuration = errors.New("invalid duration for the requested slot")
)

// ProposeRequest is a student's slot request before a booth is assigned.
type ProposeRequest struct {
	Email     string    `json:"email"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	Duration  int       `json:"duration"`
	Purpose   string    `json:"purpose"`
	Reminder  bool      `json:"reminder"`
}

// AdminCreateRequest creates a reservation directly on a chosen booth,
// bypassing the propose/commit handshake.
type AdminCreateRequest struct {
	Email     string    `json:"email"`
	BoothID   int64     `json:"booth_id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	Duration  int       `json:"duration"`
	Purpose   string    `json:"purpose"`
	Reminder  bool      `json:"reminder"`
}

type ReservationService struct {
	ledger      domain.Ledger
	proposals   domain.ProposalStore
	enqueuer    domain.NotifyEnqueuer
	eventBus    domain.EventPublisher
	resolver    *identity.Resolver
	booths      []models.Booth
	hours       models.BusinessHours
	horizonDays int
	proposalTTL time.Duration
	logger      *zerolog.Logger
}

func NewReservationService(
	ledg domain.Ledger,
	proposals domain.ProposalStore,
	enqueuer domain.NotifyEnqueuer,
	eventBus domain.EventPublisher,
	resolver *identity.Resolver,
	booths []models.Booth,
	hours models.BusinessHours,
	horizonDays int,
	proposalTTL time.Duration,
	logger *zerolog.Logger,
) *ReservationService {
	if horizonDays <= 0 {
		horizonDays = models.DefaultHorizonDays
	}
	if proposalTTL <= 0 {
		proposalTTL = models.DefaultProposalTTL * time.Second
	}
	return &ReservationService{
		ledger:      ledg,
		proposals:   proposals,
		enqueuer:    enqueuer,
		eventBus:    eventBus,
		resolver:    resolver,
		booths:      booths,
		hours:       hours,
		horizonDays: horizonDays,
		proposalTTL: proposalTTL,
		logger:      logger,
	}
}

func (s *ReservationService) ValidateDate(date time.Time) error {
	// Дата не в прошлом
	if date.Before(time.Now().AddDate(0, 0, -1)) {
		return ledger.ErrPastDate
	}

	maxDate := time.Now().AddDate(0, 0, s.horizonDays)
	if date.After(maxDate) {
		return ledger.ErrDateTooFar
	}

	return nil
}

// validateInterval checks the duration is a positive multiple of the slot
// length and that the interval fits inside the business day.
func (s *ReservationService) validateInterval(startTime string, duration int) (models.Interval, error) {
	if duration <= 0 || duration%s.hours.SlotMinutes != 0 {
		return models.Interval{}, ErrInvalidDuration
	}

	iv, err := models.NewInterval(startTime, duration)
	if err != nil {
		return models.Interval{}, fmt.Errorf("%w: %v", ledger.ErrInvalidInterval, err)
	}

	window := s.hours.Window()
	if !window.Contains(iv) {
		return models.Interval{}, ErrInvalidDuration
	}
	if iv.Start%s.hours.SlotMinutes != 0 {
		return models.Interval{}, ErrInvalidDuration
	}

	return iv, nil
}

func (s *ReservationService) boothByID(id int64) *models.Booth {
	for i := range s.booths {
		if s.booths[i].ID == id {
			return &s.booths[i]
		}
	}
	return nil
}

// Propose assigns a booth for the request and stores the result as a pending
// proposal. Nothing is reserved yet: the booth may be taken by someone else
// before Commit, which re-validates.
func (s *ReservationService) Propose(ctx context.Context, req ProposeRequest) (*models.Proposal, error) {
	ident, err := s.resolver.Resolve(req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateDate(req.Date); err != nil {
		return nil, err
	}
	requested, err := s.validateInterval(req.StartTime, req.Duration)
	if err != nil {
		return nil, err
	}

	dayReservations, err := s.ledger.ListByDate(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	counts, err := s.ledger.CountByBooth(ctx)
	if err != nil {
		return nil, err
	}

	booth := schedule.Assign(s.booths, dayReservations, counts, ident.College, requested)
	if booth == nil {
		metrics.IncReservation("no_capacity")
		return nil, ErrNoCapacity
	}

	r := s.buildReservation(ident, booth, req.Date, req.StartTime, req.Duration, req.Purpose, req.Reminder)

	p := &models.Proposal{
		Token:       uuid.NewString(),
		Reservation: *r,
		ExpiresAt:   time.Now().Add(s.proposalTTL),
	}
	if err := s.proposals.Put(ctx, p, s.proposalTTL); err != nil {
		return nil, fmt.Errorf("failed to store proposal: %w", err)
	}

	s.logger.Info().
		Str("token", p.Token).
		Str("email", ident.Email).
		Int64("booth_id", booth.ID).
		Str("date", req.Date.Format(models.DateLayout)).
		Str("start_time", req.StartTime).
		Msg("proposal created")

	return p, nil
}

// Commit turns a proposal into a durable reservation. The ledger's TryInsert
// is the authority: when the proposed booth was taken in the meantime, the
// assignment is re-run once against fresh state before giving up.
func (s *ReservationService) Commit(ctx context.Context, token string) (*models.Reservation, error) {
	p, err := s.proposals.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrProposalNotFound) {
			return nil, ErrProposalExpired
		}
		return nil, err
	}

	r := p.Reservation
	err = s.ledger.TryInsert(ctx, &r)
	if errors.Is(err, ledger.ErrConflict) {
		reassigned, retryErr := s.reassign(ctx, &r)
		if retryErr != nil {
			_ = s.proposals.Delete(ctx, token)
			metrics.IncReservation("conflict")
			return nil, retryErr
		}
		r = *reassigned
		err = s.ledger.TryInsert(ctx, &r)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			metrics.IncReservation("conflict")
		}
		return nil, err
	}

	if delErr := s.proposals.Delete(ctx, token); delErr != nil {
		s.logger.Warn().Err(delErr).Str("token", token).Msg("failed to delete committed proposal")
	}

	metrics.IncReservation("committed")
	s.publishEvent(events.EventReservationCommitted, &r, "requester")
	s.enqueueNotify(ctx, models.NotifyConfirmation, &r)
	if r.CrossCollege {
		s.publishEvent(events.EventCrossCollegeUse, &r, "requester")
		s.enqueueNotify(ctx, models.NotifyCrossCollege, &r)
	}

	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("email", r.Email).
		Int64("booth_id", r.BoothID).
		Msg("reservation committed")

	return &r, nil
}

// reassign re-runs booth selection for a reservation whose proposed booth was
// lost to a concurrent commit.
func (s *ReservationService) reassign(ctx context.Context, r *models.Reservation) (*models.Reservation, error) {
	requested, err := r.Interval()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidInterval, err)
	}

	dayReservations, err := s.ledger.ListByDate(ctx, r.Date)
	if err != nil {
		return nil, err
	}
	counts, err := s.ledger.CountByBooth(ctx)
	if err != nil {
		return nil, err
	}

	booth := schedule.Assign(s.booths, dayReservations, counts, r.College, requested)
	if booth == nil {
		return nil, ErrNoCapacity
	}

	fresh := *r
	fresh.ID = ""
	s.applyBooth(&fresh, booth)
	return &fresh, nil
}

func (s *ReservationService) buildReservation(ident *identity.Identity, booth *models.Booth, date time.Time, startTime string, duration int, purpose string, reminder bool) *models.Reservation {
	r := &models.Reservation{
		Email:       ident.Email,
		StudentID:   ident.StudentID,
		College:     ident.College,
		CollegeName: ident.CollegeName,
		Date:        date,
		StartTime:   startTime,
		Duration:    duration,
		Purpose:     purpose,
		Reminder:    reminder,
		Status:      models.StatusConfirmed,
	}
	s.applyBooth(r, booth)
	return r
}

func (s *ReservationService) applyBooth(r *models.Reservation, booth *models.Booth) {
	r.BoothID = booth.ID
	r.BoothName = booth.Name
	r.AssignedCollege = booth.College
	r.AssignedCollegeName = booth.CollegeName
	r.CrossCollege = !booth.IsCommon() && booth.College != r.College
}

func (s *ReservationService) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.ledger.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncReservation("cancelled")
	s.publishEvent(events.EventReservationCancelled, r, "requester")
	s.enqueueNotify(ctx, models.NotifyCancellation, r)

	s.logger.Info().Str("reservation_id", id).Msg("reservation cancelled")
	return r, nil
}

// AdminCreate books a concrete booth without the propose/commit handshake.
// The ledger still runs the overlap check.
func (s *ReservationService) AdminCreate(ctx context.Context, req AdminCreateRequest) (*models.Reservation, error) {
	ident, err := s.resolver.Resolve(req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateDate(req.Date); err != nil {
		return nil, err
	}
	if _, err := s.validateInterval(req.StartTime, req.Duration); err != nil {
		return nil, err
	}

	booth := s.boothByID(req.BoothID)
	if booth == nil {
		return nil, ledger.ErrUnknownBooth
	}

	r := s.buildReservation(ident, booth, req.Date, req.StartTime, req.Duration, req.Purpose, req.Reminder)
	if err := s.ledger.TryInsert(ctx, r); err != nil {
		return nil, err
	}

	metrics.IncReservation("committed")
	s.publishEvent(events.EventReservationCommitted, r, "admin")
	s.enqueueNotify(ctx, models.NotifyConfirmation, r)
	if r.CrossCollege {
		s.enqueueNotify(ctx, models.NotifyCrossCollege, r)
	}

	return r, nil
}

// AdminUpdate edits a reservation. A booth change refreshes the denormalized
// booth fields; the ledger re-runs the overlap check for the edited row.
func (s *ReservationService) AdminUpdate(ctx context.Context, id string, upd models.ReservationUpdate) (*models.Reservation, error) {
	if upd.StartTime != nil || upd.Duration != nil {
		startTime := ""
		duration := 0
		if upd.StartTime != nil {
			startTime = *upd.StartTime
		}
		if upd.Duration != nil {
			duration = *upd.Duration
		}
		// Частичная правка: недостающую половину берём из хранимой строки
		if startTime == "" || duration == 0 {
			existing, err := s.getExisting(ctx, id)
			if err != nil {
				return nil, err
			}
			if startTime == "" {
				startTime = existing.StartTime
			}
			if duration == 0 {
				duration = existing.Duration
			}
		}
		if _, err := s.validateInterval(startTime, duration); err != nil {
			return nil, err
		}
	}
	if upd.Date != nil {
		if err := s.ValidateDate(*upd.Date); err != nil {
			return nil, err
		}
	}

	if upd.BoothID != nil {
		booth := s.boothByID(*upd.BoothID)
		if booth == nil {
			return nil, ledger.ErrUnknownBooth
		}
		existing, err := s.getExisting(ctx, id)
		if err != nil {
			return nil, err
		}
		cross := !booth.IsCommon() && booth.College != existing.College
		upd.BoothName = &booth.Name
		upd.AssignedCollege = &booth.College
		upd.AssignedCollegeName = &booth.CollegeName
		upd.CrossCollege = &cross
	}

	r, err := s.ledger.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	metrics.IncReservation("updated")
	s.publishEvent(events.EventReservationUpdated, r, "admin")

	s.logger.Info().Str("reservation_id", id).Msg("reservation updated")
	return r, nil
}

func (s *ReservationService) getExisting(ctx context.Context, id string) (*models.Reservation, error) {
	all, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// DayGrid returns the per-slot occupancy for the date. A slot reads as full
// only when every booth is simultaneously occupied.
func (s *ReservationService) DayGrid(ctx context.Context, date time.Time) ([]schedule.SlotOccupancy, error) {
	if err := s.ValidateDate(date); err != nil {
		return nil, err
	}
	dayReservations, err := s.ledger.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return schedule.BuildDayGrid(s.hours, s.booths, dayReservations), nil
}

func (s *ReservationService) ListByRequester(ctx context.Context, email string) ([]*models.Reservation, error) {
	ident, err := s.resolver.Resolve(email)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListByRequester(ctx, ident.Email)
}

func (s *ReservationService) ListAll(ctx context.Context) ([]*models.Reservation, error) {
	return s.ledger.ListAll(ctx)
}

func (s *ReservationService) ListByDate(ctx context.Context, date time.Time) ([]*models.Reservation, error) {
	return s.ledger.ListByDate(ctx, date)
}

// Stats aggregates utilization per day over all stored reservations.
func (s *ReservationService) Stats(ctx context.Context) ([]models.DayStats, error) {
	all, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	totalSlots := s.hours.SlotsPerDay() * len(s.booths)
	byDate := make(map[string]*models.DayStats)
	var order []string

	for _, r := range all {
		if r.Status != models.StatusConfirmed {
			continue
		}
		key := r.DateKey()
		st, ok := byDate[key]
		if !ok {
			st = &models.DayStats{Date: key, TotalSlots: totalSlots}
			byDate[key] = st
			order = append(order, key)
		}
		st.Reservations++
		st.BookedSlots += r.Duration / s.hours.SlotMinutes
	}

	out := make([]models.DayStats, 0, len(order))
	for _, key := range order {
		st := byDate[key]
		if st.TotalSlots > 0 {
			st.UtilizationRate = float64(st.BookedSlots) / float64(st.TotalSlots)
		}
		out = append(out, *st)
	}
	return out, nil
}

// Booths exposes the configured catalog.
func (s *ReservationService) Booths() []models.Booth {
	return s.booths
}

// Hours exposes the configured business day.
func (s *ReservationService) Hours() models.BusinessHours {
	return s.hours
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID:       r.ID,
		Email:               r.Email,
		BoothID:             r.BoothID,
		BoothName:           r.BoothName,
		College:             r.College,
		AssignedCollege:     r.AssignedCollege,
		AssignedCollegeName: r.AssignedCollegeName,
		Date:                r.DateKey(),
		StartTime:           r.StartTime,
		Duration:            r.Duration,
		Status:              r.Status,
		CrossCollege:        r.CrossCollege,
		ChangedBy:           changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *ReservationService) enqueueNotify(ctx context.Context, taskType string, r *models.Reservation) {
	if s.enqueuer == nil {
		return
	}
	if err := s.enqueuer.EnqueueTask(ctx, taskType, r); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Str("task", taskType).Msg("notify enqueue error")
	}
}
