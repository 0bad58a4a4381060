package schedule

import (
	"sort"

	"boothnik/internal/models"
)

// Assign selects a booth for the requested interval, or nil when no booth is
// free. The candidate set is every booth with no overlapping confirmed
// reservation; candidates are ranked ascending by historical reservation
// count (ties by booth id), then the first match wins in preference order:
// the requester's own college, the common pool, any remaining candidate.
//
// Pure over its inputs: no hidden state, same inputs always pick the same
// booth. Assigning reserves nothing; the ledger's TryInsert is the only
// authority that can make the pick durable.
func Assign(
	booths []models.Booth,
	dayReservations []*models.Reservation,
	counts map[int64]int,
	requesterCollege string,
	requested models.Interval,
) *models.Booth {
	candidates := make([]models.Booth, 0, len(booths))
	for _, booth := range booths {
		if isBoothFree(booth.ID, dayReservations, requested) {
			candidates = append(candidates, booth)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := counts[candidates[i].ID], counts[candidates[j].ID]
		if ci != cj {
			return ci < cj
		}
		return candidates[i].ID < candidates[j].ID
	})

	for _, booth := range candidates {
		if booth.College == requesterCollege {
			b := booth
			return &b
		}
	}
	for _, booth := range candidates {
		if booth.IsCommon() {
			b := booth
			return &b
		}
	}

	b := candidates[0]
	return &b
}

func isBoothFree(boothID int64, reservations []*models.Reservation, requested models.Interval) bool {
	for _, r := range reservations {
		if r.BoothID != boothID || r.Status != models.StatusConfirmed {
			continue
		}
		iv, err := r.Interval()
		if err != nil {
			continue
		}
		if iv.Overlaps(requested) {
			return false
		}
	}
	return true
}
