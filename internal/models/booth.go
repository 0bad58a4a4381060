package models

// Booth is one physical unit from the static catalog. Loaded once at startup,
// never mutated afterwards.
type Booth struct {
	ID          int64  `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	College     string `yaml:"college" json:"college"`
	CollegeName string `yaml:"college_name" json:"college_name"`
}

// IsCommon reports whether the booth belongs to the shared pool.
func (b Booth) IsCommon() bool {
	return b.College == CollegeCommon
}

// BusinessHours describes the daily booking window and slot granularity.
type BusinessHours struct {
	StartHour   int `yaml:"start_hour" json:"start_hour"`
	EndHour     int `yaml:"end_hour" json:"end_hour"`
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes"`
}

// Window returns the business day as minutes since midnight.
func (h BusinessHours) Window() Interval {
	return Interval{Start: h.StartHour * 60, End: h.EndHour * 60}
}

// SlotsPerDay returns the number of discrete slots in one business day.
func (h BusinessHours) SlotsPerDay() int {
	if h.SlotMinutes <= 0 {
		return 0
	}
	return (h.EndHour - h.StartHour) * 60 / h.SlotMinutes
}
