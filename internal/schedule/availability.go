// Package schedule holds the pure scheduling logic: the per-slot availability
// grid and the booth assignment policy. Both are read-only projections over a
// reservation snapshot; the ledger remains the conflict authority.
package schedule

import (
	"sort"

	"boothnik/internal/models"
)

// SlotOccupancy describes one display slot of the business day.
type SlotOccupancy struct {
	Time     string  `json:"time"`
	BoothIDs []int64 `json:"booth_ids,omitempty"`
	// Full is set only when every booth in the catalog is occupied for the
	// slot. Partial occupancy keeps the slot selectable; the real conflict
	// decision happens at assignment and commit time.
	Full bool `json:"full"`
}

// BuildDayGrid expands every confirmed reservation into its constituent slots
// and reports per-slot booth occupancy across the business day.
func BuildDayGrid(hours models.BusinessHours, booths []models.Booth, reservations []*models.Reservation) []SlotOccupancy {
	occupied := make(map[int]map[int64]bool)

	for _, r := range reservations {
		if r.Status != models.StatusConfirmed {
			continue
		}
		iv, err := r.Interval()
		if err != nil {
			continue
		}
		// Walk the interval in slot steps: start inclusive, end exclusive.
		for minute := iv.Start; minute < iv.End; minute += hours.SlotMinutes {
			if occupied[minute] == nil {
				occupied[minute] = make(map[int64]bool)
			}
			occupied[minute][r.BoothID] = true
		}
	}

	window := hours.Window()
	grid := make([]SlotOccupancy, 0, hours.SlotsPerDay())
	for minute := window.Start; minute < window.End; minute += hours.SlotMinutes {
		slot := SlotOccupancy{Time: models.FormatClock(minute)}
		for boothID := range occupied[minute] {
			slot.BoothIDs = append(slot.BoothIDs, boothID)
		}
		sort.Slice(slot.BoothIDs, func(i, j int) bool { return slot.BoothIDs[i] < slot.BoothIDs[j] })
		slot.Full = len(slot.BoothIDs) >= len(booths)
		grid = append(grid, slot)
	}
	return grid
}
