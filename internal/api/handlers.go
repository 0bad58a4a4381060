package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"boothnik/internal/identity"
	"boothnik/internal/ledger"
	"boothnik/internal/models"
	"boothnik/internal/service"
)

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}

	grid, err := s.svc.DayGrid(r.Context(), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format(models.DateLayout),
		"slots": grid,
	})
}

func (s *HTTPServer) handleBooths(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booths": s.svc.Booths()})
}

func (s *HTTPServer) handleProposals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Email     string `json:"email"`
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		Duration  int    `json:"duration"`
		Purpose   string `json:"purpose"`
		Reminder  bool   `json:"reminder"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	date, err := time.Parse(models.DateLayout, body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	p, err := s.svc.Propose(r.Context(), service.ProposeRequest{
		Email:     body.Email,
		Date:      date,
		StartTime: body.StartTime,
		Duration:  body.Duration,
		Purpose:   body.Purpose,
		Reminder:  body.Reminder,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCommit(w, r)
	case http.MethodGet:
		list, ok := s.listFiltered(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// listFiltered honours the admin table's optional email and date filters.
func (s *HTTPServer) listFiltered(w http.ResponseWriter, r *http.Request) ([]*models.Reservation, bool) {
	q := r.URL.Query()
	email := strings.TrimSpace(q.Get("email"))
	dateStr := strings.TrimSpace(q.Get("date"))

	var (
		list []*models.Reservation
		err  error
	)
	switch {
	case dateStr != "":
		date, parseErr := time.Parse(models.DateLayout, dateStr)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return nil, false
		}
		list, err = s.svc.ListByDate(r.Context(), date)
	case email != "":
		list, err = s.svc.ListByRequester(r.Context(), email)
		email = ""
	default:
		list, err = s.svc.ListAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}

	if email != "" {
		filtered := list[:0]
		for _, res := range list {
			if strings.EqualFold(res.Email, email) {
				filtered = append(filtered, res)
			}
		}
		list = filtered
	}
	return list, true
}

func (s *HTTPServer) handleCommit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProposalToken string `json:"proposal_token"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ProposalToken) == "" {
		writeError(w, http.StatusBadRequest, "proposal_token is required")
		return
	}

	reservation, err := s.svc.Commit(r.Context(), body.ProposalToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/reservations/"
	suffix := strings.TrimPrefix(r.URL.Path, prefix)
	if suffix == "" || strings.Contains(suffix, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if suffix == "my" {
		s.handleMyReservations(w, r)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		reservation, err := s.svc.Cancel(r.Context(), suffix)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reservation)
	case http.MethodPut:
		var upd models.ReservationUpdate
		if !decodeBody(w, r, &upd) {
			return
		}
		reservation, err := s.svc.AdminUpdate(r.Context(), suffix, upd)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reservation)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	list, err := s.svc.ListByRequester(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *HTTPServer) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Email     string `json:"email"`
		BoothID   int64  `json:"booth_id"`
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		Duration  int    `json:"duration"`
		Purpose   string `json:"purpose"`
		Reminder  bool   `json:"reminder"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	date, err := time.Parse(models.DateLayout, body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	reservation, err := s.svc.AdminCreate(r.Context(), service.AdminCreateRequest{
		Email:     body.Email,
		BoothID:   body.BoothID,
		Date:      date,
		StartTime: body.StartTime,
		Duration:  body.Duration,
		Purpose:   body.Purpose,
		Reminder:  body.Reminder,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if dateStr := strings.TrimSpace(r.URL.Query().Get("date")); dateStr != "" {
		filtered := stats[:0]
		for _, day := range stats {
			if day.Date == dateStr {
				filtered = append(filtered, day)
			}
		}
		stats = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"days": stats})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	list, err := s.svc.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	q := r.URL.Query()
	from := strings.TrimSpace(q.Get("from"))
	to := strings.TrimSpace(q.Get("to"))
	if from != "" || to != "" {
		filtered := list[:0]
		for _, res := range list {
			key := res.DateKey()
			if from != "" && key < from {
				continue
			}
			if to != "" && key > to {
				continue
			}
			filtered = append(filtered, res)
		}
		list = filtered
	}

	path, err := s.exporter.ExportReservations(list)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Файл остаётся в каталоге экспорта, клиенту отдаём его как вложение.
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return time.Time{}, false
	}
	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConflict), errors.Is(err, service.ErrNoCapacity):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrProposalExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrUnknownCollege),
		errors.Is(err, ledger.ErrPastDate),
		errors.Is(err, ledger.ErrDateTooFar),
		errors.Is(err, ledger.ErrUnknownBooth),
		errors.Is(err, ledger.ErrInvalidInterval),
		errors.Is(err, service.ErrInvalidDuration):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
