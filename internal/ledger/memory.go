package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"boothnik/internal/models"

	"github.com/google/uuid"
)

// Memory is the in-memory Ledger. Check-then-write sections run under a
// per-(booth,date) mutex so concurrent commits for the same partition
// serialize, while unrelated partitions proceed in parallel.
type Memory struct {
	mu           sync.RWMutex
	reservations map[string]*models.Reservation

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		reservations: make(map[string]*models.Reservation),
		locks:        make(map[string]*sync.Mutex),
	}
}

func partitionKey(boothID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", boothID, date.Format(models.DateLayout))
}

func (m *Memory) partitionLock(key string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// lockPartitions acquires the given partition locks in sorted order and
// returns the matching unlock.
func (m *Memory) lockPartitions(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	locked := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		lock := m.partitionLock(k)
		lock.Lock()
		locked = append(locked, lock)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

func (m *Memory) ListByDate(ctx context.Context, date time.Time) ([]*models.Reservation, error) {
	dateKey := date.Format(models.DateLayout)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Reservation
	for _, r := range m.reservations {
		if r.Status == models.StatusConfirmed && r.DateKey() == dateKey {
			out = append(out, cloneReservation(r))
		}
	}
	sortForDisplay(out)
	return out, nil
}

func (m *Memory) ListByRequester(ctx context.Context, email string) ([]*models.Reservation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Reservation
	for _, r := range m.reservations {
		if strings.EqualFold(r.Email, email) {
			out = append(out, cloneReservation(r))
		}
	}
	sortForDisplay(out)
	return out, nil
}

func (m *Memory) ListAll(ctx context.Context) ([]*models.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, cloneReservation(r))
	}
	sortForDisplay(out)
	return out, nil
}

func (m *Memory) CountByBooth(ctx context.Context) (map[int64]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[int64]int)
	for _, r := range m.reservations {
		counts[r.BoothID]++
	}
	return counts, nil
}

func (m *Memory) TryInsert(ctx context.Context, r *models.Reservation) error {
	candidate, err := r.Interval()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	unlock := m.lockPartitions(partitionKey(r.BoothID, r.Date))
	defer unlock()

	if err := m.checkConflict(r.BoothID, r.DateKey(), candidate, ""); err != nil {
		return err
	}

	now := time.Now()
	stored := cloneReservation(r)
	if stored.ID == "" {
		stored.ID = models.ReservationIDPrefix + uuid.NewString()
	}
	if stored.Status == "" {
		stored.Status = models.StatusConfirmed
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	m.mu.Lock()
	m.reservations[stored.ID] = stored
	m.mu.Unlock()

	*r = *cloneReservation(stored)
	return nil
}

func (m *Memory) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	m.mu.RLock()
	existing, ok := m.reservations[id]
	m.mu.RUnlock()
	if !ok || existing.Status == models.StatusCancelled {
		return nil, ErrNotFound
	}

	unlock := m.lockPartitions(partitionKey(existing.BoothID, existing.Date))
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok || r.Status == models.StatusCancelled {
		return nil, ErrNotFound
	}
	r.Status = models.StatusCancelled
	r.UpdatedAt = time.Now()
	return cloneReservation(r), nil
}

func (m *Memory) Update(ctx context.Context, id string, upd models.ReservationUpdate) (*models.Reservation, error) {
	m.mu.RLock()
	existing, ok := m.reservations[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	edited := cloneReservation(existing)
	applyUpdate(edited, upd)

	candidate, err := edited.Interval()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	// Both the old and the new partition take part in the exclusion scope:
	// the row may move across booths or dates.
	unlock := m.lockPartitions(
		partitionKey(existing.BoothID, existing.Date),
		partitionKey(edited.BoothID, edited.Date),
	)
	defer unlock()

	if edited.Status == models.StatusConfirmed {
		if err := m.checkConflict(edited.BoothID, edited.DateKey(), candidate, id); err != nil {
			return nil, err
		}
	}

	edited.UpdatedAt = time.Now()

	m.mu.Lock()
	if _, ok := m.reservations[id]; !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	m.reservations[id] = edited
	m.mu.Unlock()

	return cloneReservation(edited), nil
}

func (m *Memory) Close() error { return nil }

// checkConflict scans confirmed reservations on the booth/date partition,
// skipping excludeID. Callers must hold the partition lock.
func (m *Memory) checkConflict(boothID int64, dateKey string, candidate models.Interval, excludeID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.reservations {
		if r.ID == excludeID || r.Status != models.StatusConfirmed {
			continue
		}
		if r.BoothID != boothID || r.DateKey() != dateKey {
			continue
		}
		iv, err := r.Interval()
		if err != nil {
			continue
		}
		if iv.Overlaps(candidate) {
			return ErrConflict
		}
	}
	return nil
}

func applyUpdate(r *models.Reservation, upd models.ReservationUpdate) {
	if upd.BoothID != nil {
		r.BoothID = *upd.BoothID
	}
	if upd.Date != nil {
		r.Date = *upd.Date
	}
	if upd.StartTime != nil {
		r.StartTime = *upd.StartTime
	}
	if upd.Duration != nil {
		r.Duration = *upd.Duration
	}
	if upd.Purpose != nil {
		r.Purpose = *upd.Purpose
	}
	if upd.Reminder != nil {
		r.Reminder = *upd.Reminder
	}
	if upd.BoothName != nil {
		r.BoothName = *upd.BoothName
	}
	if upd.AssignedCollege != nil {
		r.AssignedCollege = *upd.AssignedCollege
	}
	if upd.AssignedCollegeName != nil {
		r.AssignedCollegeName = *upd.AssignedCollegeName
	}
	if upd.CrossCollege != nil {
		r.CrossCollege = *upd.CrossCollege
	}
}

func cloneReservation(r *models.Reservation) *models.Reservation {
	c := *r
	return &c
}

func sortForDisplay(rs []*models.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Date.Equal(rs[j].Date) {
			return rs[i].Date.Before(rs[j].Date)
		}
		if rs[i].StartTime != rs[j].StartTime {
			return rs[i].StartTime < rs[j].StartTime
		}
		if rs[i].BoothID != rs[j].BoothID {
			return rs[i].BoothID < rs[j].BoothID
		}
		return rs[i].ID < rs[j].ID
	})
}
