package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// CollegeCommon marks booths in the shared pool, usable by any college.
const CollegeCommon = "common"

const (
	// ReservationIDPrefix префикс идентификаторов бронирований
	ReservationIDPrefix = "RES-"

	// DefaultProposalTTL время жизни незакоммиченного предложения в секундах
	DefaultProposalTTL = 10 * 60

	// DefaultHorizonDays максимальный горизонт бронирования
	DefaultHorizonDays = 60

	// ReminderHour час, в который отправляются напоминания
	ReminderHour = 9

	// WorkerQueueSize размер очереди воркера уведомлений
	WorkerQueueSize = 1000
)

const (
	NotifyConfirmation = "confirmation"
	NotifyCancellation = "cancellation"
	NotifyCrossCollege = "cross_college"
	NotifyReminder     = "reminder"
)

const DateLayout = "2006-01-02"
