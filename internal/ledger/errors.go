// Package ledger defines the reservation ledger error taxonomy and provides
// the in-memory implementation used in tests and single-process deployments.
package ledger

import "errors"

var (
	// ErrConflict - интервал пересекается с существующим подтвержденным бронированием
	ErrConflict = errors.New("reservation conflicts with an existing one")

	// ErrNotFound - бронирование не найдено или уже отменено
	ErrNotFound = errors.New("reservation not found")

	// ErrPastDate - дата в прошлом
	ErrPastDate = errors.New("reservation date is in the past")

	// ErrDateTooFar - дата за пределами горизонта бронирования
	ErrDateTooFar = errors.New("reservation date is beyond the booking horizon")

	// ErrUnknownBooth - ссылка на несуществующий booth id
	ErrUnknownBooth = errors.New("unknown booth id")

	// ErrInvalidInterval - некорректный интервал запроса
	ErrInvalidInterval = errors.New("invalid reservation interval")
)
