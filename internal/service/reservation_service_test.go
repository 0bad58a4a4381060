package service

import (
	"context"
	"io"
	"testing"
	"time"

	"boothnik/internal/identity"
	"boothnik/internal/ledger"
	"boothnik/internal/models"
	"boothnik/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueTask(ctx context.Context, taskType string, r *models.Reservation) error {
	return m.Called(ctx, taskType, r).Error(0)
}

func testColleges() map[string]identity.College {
	return map[string]identity.College{
		"a": {Code: "a", Name: "College A"},
		"b": {Code: "b", Name: "College B"},
		"c": {Code: "c", Name: "College C"},
		"d": {Code: "d", Name: "College D"},
		"g": {Code: "g", Name: "College G"},
	}
}

func testBooths() []models.Booth {
	return []models.Booth{
		{ID: 1, Name: "Booth 1", College: "d", CollegeName: "College D"},
		{ID: 2, Name: "Booth 2", College: "c", CollegeName: "College C"},
		{ID: 6, Name: "Booth 6", College: models.CollegeCommon, CollegeName: "Common"},
	}
}

func newTestService(t *testing.T, enqueuer *mockEnqueuer) *ReservationService {
	t.Helper()
	resolver, err := identity.NewResolver(identity.DefaultPattern, identity.DefaultCollegeCharIndex, testColleges())
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	svc := NewReservationService(
		ledger.NewMemory(),
		repository.NewMemoryProposalStore(),
		nil,
		nil,
		resolver,
		testBooths(),
		models.BusinessHours{StartHour: 9, EndHour: 17, SlotMinutes: 10},
		60,
		10*time.Minute,
		&logger,
	)
	if enqueuer != nil {
		svc.enqueuer = enqueuer
	}
	return svc
}

func futureDate() time.Time {
	return time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
}

func TestProposeAssignsOwnCollegeBooth(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	p, err := svc.Propose(ctx, ProposeRequest{
		Email:     "k121c0001@g.neec.ac.jp",
		Date:      futureDate(),
		StartTime: "10:00",
		Duration:  30,
		Purpose:   "interview practice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.Token)
	assert.Equal(t, int64(2), p.Reservation.BoothID)
	assert.Equal(t, "c", p.Reservation.College)
	assert.False(t, p.Reservation.CrossCollege)
	assert.Empty(t, p.Reservation.ID, "proposal must not carry a ledger id yet")

	// Предложение ничего не бронирует
	list, err := svc.ListByDate(ctx, futureDate())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProposeRejectsBadInput(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	date := futureDate()

	cases := []struct {
		name string
		req  ProposeRequest
		want error
	}{
		{"bad email", ProposeRequest{Email: "someone@example.com", Date: date, StartTime: "10:00", Duration: 10}, identity.ErrInvalidEmail},
		{"past date", ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date.AddDate(0, 0, -30), StartTime: "10:00", Duration: 10}, ledger.ErrPastDate},
		{"too far", ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date.AddDate(1, 0, 0), StartTime: "10:00", Duration: 10}, ledger.ErrDateTooFar},
		{"zero duration", ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "10:00", Duration: 0}, ErrInvalidDuration},
		{"not slot multiple", ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "10:00", Duration: 15}, ErrInvalidDuration},
		{"before opening", ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "08:00", Duration: 10}, ErrInvalidDuration},
		{"past closing", ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "16:50", Duration: 20}, ErrInvalidDuration},
		{"off grid start", ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "10:05", Duration: 10}, ErrInvalidDuration},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Propose(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCommitCreatesReservation(t *testing.T) {
	enq := new(mockEnqueuer)
	enq.On("EnqueueTask", mock.Anything, models.NotifyConfirmation, mock.Anything).Return(nil)

	svc := newTestService(t, enq)
	ctx := context.Background()

	p, err := svc.Propose(ctx, ProposeRequest{
		Email:     "k121c0001@g.neec.ac.jp",
		Date:      futureDate(),
		StartTime: "10:00",
		Duration:  30,
	})
	require.NoError(t, err)

	r, err := svc.Commit(ctx, p.Token)
	require.NoError(t, err)
	assert.Contains(t, r.ID, models.ReservationIDPrefix)
	assert.Equal(t, models.StatusConfirmed, r.Status)
	assert.Equal(t, int64(2), r.BoothID)

	enq.AssertExpectations(t)

	// Токен одноразовый
	_, err = svc.Commit(ctx, p.Token)
	assert.ErrorIs(t, err, ErrProposalExpired)
}

func TestCommitUnknownToken(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Commit(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProposalExpired)
}

func TestCommitReassignsOnConflict(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	date := futureDate()

	// Два предложения на один и тот же слот получают одну и ту же будку
	p1, err := svc.Propose(ctx, ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "10:00", Duration: 30})
	require.NoError(t, err)
	p2, err := svc.Propose(ctx, ProposeRequest{Email: "k122c0002@g.neec.ac.jp", Date: date, StartTime: "10:00", Duration: 30})
	require.NoError(t, err)
	assert.Equal(t, p1.Reservation.BoothID, p2.Reservation.BoothID)

	r1, err := svc.Commit(ctx, p1.Token)
	require.NoError(t, err)

	// Второй коммит теряет будку 2 и пересаживается на общую будку 6
	r2, err := svc.Commit(ctx, p2.Token)
	require.NoError(t, err)
	assert.NotEqual(t, r1.BoothID, r2.BoothID)
	assert.Equal(t, int64(6), r2.BoothID)
}

func TestCommitNoCapacityAfterConflict(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	date := futureDate()

	p, err := svc.Propose(ctx, ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "10:00", Duration: 30})
	require.NoError(t, err)

	// Занимаем все будки, пока предложение ждёт коммита
	for _, boothID := range []int64{1, 2, 6} {
		_, err := svc.AdminCreate(ctx, AdminCreateRequest{
			Email:   "k123a0003@g.neec.ac.jp",
			BoothID: boothID,
			Date:    date, StartTime: "10:00", Duration: 30,
		})
		require.NoError(t, err)
	}

	_, err = svc.Commit(ctx, p.Token)
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestCommitCrossCollegeEnqueuesNote(t *testing.T) {
	enq := new(mockEnqueuer)
	enq.On("EnqueueTask", mock.Anything, models.NotifyConfirmation, mock.Anything).Return(nil)
	enq.On("EnqueueTask", mock.Anything, models.NotifyCrossCollege, mock.Anything).Return(nil)

	svc := newTestService(t, enq)
	ctx := context.Background()
	date := futureDate()

	// Будки c и common заняты, студенту колледжа c достаётся будка колледжа d
	for _, boothID := range []int64{2, 6} {
		_, err := svc.AdminCreate(ctx, AdminCreateRequest{
			Email:   "k123d0003@g.neec.ac.jp",
			BoothID: boothID,
			Date:    date, StartTime: "10:00", Duration: 30,
		})
		require.NoError(t, err)
	}

	p, err := svc.Propose(ctx, ProposeRequest{Email: "k121c0001@g.neec.ac.jp", Date: date, StartTime: "10:00", Duration: 30})
	require.NoError(t, err)
	require.True(t, p.Reservation.CrossCollege)
	assert.Equal(t, int64(1), p.Reservation.BoothID)

	r, err := svc.Commit(ctx, p.Token)
	require.NoError(t, err)
	assert.True(t, r.CrossCollege)

	enq.AssertCalled(t, "EnqueueTask", mock.Anything, models.NotifyCrossCollege, mock.Anything)
}

func TestCancelFreesSlot(t *testing.T) {
	enq := new(mockEnqueuer)
	enq.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, enq)
	ctx := context.Background()
	date := futureDate()

	r, err := svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k121c0001@g.neec.ac.jp", BoothID: 2, Date: date, StartTime: "10:00", Duration: 30,
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	enq.AssertCalled(t, "EnqueueTask", mock.Anything, models.NotifyCancellation, mock.Anything)

	_, err = svc.Cancel(ctx, r.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// Слот снова доступен
	_, err = svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k122c0002@g.neec.ac.jp", BoothID: 2, Date: date, StartTime: "10:00", Duration: 30,
	})
	assert.NoError(t, err)
}

func TestAdminCreateUnknownBooth(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.AdminCreate(context.Background(), AdminCreateRequest{
		Email: "k121c0001@g.neec.ac.jp", BoothID: 99, Date: futureDate(), StartTime: "10:00", Duration: 10,
	})
	assert.ErrorIs(t, err, ledger.ErrUnknownBooth)
}

func TestAdminUpdateMovesBooth(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	date := futureDate()

	r, err := svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k121c0001@g.neec.ac.jp", BoothID: 2, Date: date, StartTime: "10:00", Duration: 30,
	})
	require.NoError(t, err)

	boothID := int64(1)
	updated, err := svc.AdminUpdate(ctx, r.ID, models.ReservationUpdate{BoothID: &boothID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.BoothID)
	assert.Equal(t, "Booth 1", updated.BoothName)
	assert.Equal(t, "d", updated.AssignedCollege)
	assert.True(t, updated.CrossCollege, "college c student on a college d booth")

	// Неизвестная будка
	badBooth := int64(99)
	_, err = svc.AdminUpdate(ctx, r.ID, models.ReservationUpdate{BoothID: &badBooth})
	assert.ErrorIs(t, err, ledger.ErrUnknownBooth)
}

func TestAdminUpdateConflict(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	date := futureDate()

	a, err := svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k121c0001@g.neec.ac.jp", BoothID: 2, Date: date, StartTime: "10:00", Duration: 30,
	})
	require.NoError(t, err)
	b, err := svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k122c0002@g.neec.ac.jp", BoothID: 2, Date: date, StartTime: "11:00", Duration: 30,
	})
	require.NoError(t, err)
	_ = a

	start := "10:10"
	_, err = svc.AdminUpdate(ctx, b.ID, models.ReservationUpdate{StartTime: &start})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestDayGridFullSlot(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	date := futureDate()

	for _, boothID := range []int64{1, 2, 6} {
		_, err := svc.AdminCreate(ctx, AdminCreateRequest{
			Email:   "k121c0001@g.neec.ac.jp",
			BoothID: boothID,
			Date:    date, StartTime: "10:00", Duration: 10,
		})
		require.NoError(t, err)
	}

	grid, err := svc.DayGrid(ctx, date)
	require.NoError(t, err)
	require.Len(t, grid, 48)

	var full int
	for _, slot := range grid {
		if slot.Full {
			full++
			assert.Equal(t, "10:00", slot.Time)
		}
	}
	assert.Equal(t, 1, full)
}

func TestListByRequesterNormalizesEmail(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	r, err := svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k121c0001@g.neec.ac.jp", BoothID: 2, Date: futureDate(), StartTime: "10:00", Duration: 10,
	})
	require.NoError(t, err)

	list, err := svc.ListByRequester(ctx, "K121C0001@G.NEEC.AC.JP")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)
}

func TestStats(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	date := futureDate()

	_, err := svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k121c0001@g.neec.ac.jp", BoothID: 2, Date: date, StartTime: "10:00", Duration: 30,
	})
	require.NoError(t, err)
	cancelled, err := svc.AdminCreate(ctx, AdminCreateRequest{
		Email: "k122c0002@g.neec.ac.jp", BoothID: 1, Date: date, StartTime: "10:00", Duration: 20,
	})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	st := stats[0]
	assert.Equal(t, date.Format(models.DateLayout), st.Date)
	assert.Equal(t, 1, st.Reservations, "cancelled rows are excluded")
	assert.Equal(t, 3, st.BookedSlots)
	// 48 слотов в дне на 3 будки
	assert.Equal(t, 144, st.TotalSlots)
	assert.InDelta(t, 3.0/144.0, st.UtilizationRate, 1e-9)
}
