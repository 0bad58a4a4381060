package models

import "time"

type Reservation struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	StudentID           string    `json:"student_id"`
	BoothID             int64     `json:"booth_id"`
	BoothName           string    `json:"booth_name"`
	College             string    `json:"college"`
	CollegeName         string    `json:"college_name"`
	AssignedCollege     string    `json:"assigned_college"`
	AssignedCollegeName string    `json:"assigned_college_name"`
	Date                time.Time `json:"date"`
	StartTime           string    `json:"start_time"` // HH:MM
	Duration            int       `json:"duration"`   // minutes
	Purpose             string    `json:"purpose"`
	Reminder            bool      `json:"reminder"`
	CrossCollege        bool      `json:"cross_college"`
	Status              string    `json:"status"` // confirmed, cancelled
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Interval computes the occupied time range of the reservation.
func (r *Reservation) Interval() (Interval, error) {
	return NewInterval(r.StartTime, r.Duration)
}

// DateKey returns the reservation date as YYYY-MM-DD.
func (r *Reservation) DateKey() string {
	return r.Date.Format(DateLayout)
}

// ReservationUpdate carries the admin-editable fields. Nil pointers leave the
// stored value untouched.
type ReservationUpdate struct {
	BoothID   *int64     `json:"booth_id,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	StartTime *string    `json:"start_time,omitempty"`
	Duration  *int       `json:"duration,omitempty"`
	Purpose   *string    `json:"purpose,omitempty"`
	Reminder  *bool      `json:"reminder,omitempty"`

	// Denormalized booth fields, set by the service when BoothID changes.
	BoothName           *string `json:"-"`
	AssignedCollege     *string `json:"-"`
	AssignedCollegeName *string `json:"-"`
	CrossCollege        *bool   `json:"-"`
}

// Proposal is a pending, not yet committed assignment. It holds the fully
// built reservation the caller may commit within the TTL.
type Proposal struct {
	Token       string      `json:"token"`
	Reservation Reservation `json:"reservation"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// NotifyTask is one unit of outbox work for the notification worker.
type NotifyTask struct {
	ID            int64      `json:"id"`
	Type          string     `json:"type"` // confirmation, cancellation, cross_college, reminder
	ReservationID string     `json:"reservation_id"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"` // pending, retry, completed, failed
	RetryCount    int        `json:"retry_count"`
	LastError     string     `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
}

// DayStats summarizes one day for the admin dashboard.
type DayStats struct {
	Date            string  `json:"date"`
	Reservations    int     `json:"reservations"`
	BookedSlots     int     `json:"booked_slots"`
	TotalSlots      int     `json:"total_slots"`
	UtilizationRate float64 `json:"utilization_rate"`
}
