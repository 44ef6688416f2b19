package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/nishaa-11/Nurse/internal/models"
	"github.com/nishaa-11/Nurse/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store store.ShiftStore
}

func NewHandler(store store.ShiftStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/shifts", h.handleShifts)
	mux.HandleFunc("/api/shifts/", h.handleShiftSubtree)
	mux.HandleFunc("/api/surge/activate", h.handleSurgeActivate)
	mux.HandleFunc("/api/surge/deactivate", h.handleSurgeDeactivate)
	return mux
}

type createShiftRequest struct {
	HospitalID    string   `json:"hospital_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Department    string   `json:"department"`
	Date          string   `json:"date"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	PaymentRate   *float64 `json:"payment_rate"`
	PaymentType   string   `json:"payment_type"`
	BonusAmount   float64  `json:"bonus_amount"`
	UrgencyLevel  string   `json:"urgency_level"`
	HospitalNotes string   `json:"hospital_notes"`
}

type applyRequest struct {
	NurseID string `json:"nurse_id"`
	Message string `json:"message"`
}

type assignRequest struct {
	NurseID string `json:"nurse_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type surgeRequest struct {
	Multiplier float64 `json:"multiplier"`
}

type surgeResponse struct {
	Surge          bool  `json:"surge"`
	ShiftsAffected int64 `json:"shifts_affected"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleShifts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateShift(w, r)
	case http.MethodGet:
		h.handleListShifts(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateShift(w http.ResponseWriter, r *http.Request) {
	var req createShiftRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.HospitalID = strings.TrimSpace(req.HospitalID)
	req.Title = strings.TrimSpace(req.Title)
	req.Department = strings.TrimSpace(req.Department)
	req.Date = strings.TrimSpace(req.Date)
	req.StartTime = strings.TrimSpace(req.StartTime)
	req.EndTime = strings.TrimSpace(req.EndTime)

	if req.HospitalID == "" || req.Title == "" || req.Department == "" || req.Date == "" || req.StartTime == "" || req.EndTime == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "hospital_id, title, department, date, start_time, and end_time are required")
		return
	}
	if req.PaymentRate == nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "payment_rate is required")
		return
	}
	if *req.PaymentRate < 0 {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "payment_rate must be >= 0")
		return
	}
	if !models.ValidDepartment(req.Department) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown department")
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	if !validWallClock(req.StartTime) || !validWallClock(req.EndTime) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "start_time and end_time must be HH:MM")
		return
	}
	if req.UrgencyLevel == "" {
		req.UrgencyLevel = models.UrgencyMedium
	}
	if !models.ValidUrgency(req.UrgencyLevel) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown urgency level")
		return
	}
	if req.PaymentType == "" {
		req.PaymentType = models.PaymentHourly
	}
	if req.PaymentType != models.PaymentHourly && req.PaymentType != models.PaymentFlat {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "payment_type must be hourly or flat")
		return
	}

	shift, err := h.store.CreateShift(r.Context(), store.CreateShiftInput{
		HospitalID:    req.HospitalID,
		Title:         req.Title,
		Description:   req.Description,
		Department:    req.Department,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		PaymentRate:   *req.PaymentRate,
		PaymentType:   req.PaymentType,
		BonusAmount:   req.BonusAmount,
		UrgencyLevel:  req.UrgencyLevel,
		HospitalNotes: req.HospitalNotes,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, shift)
}

func (h *Handler) handleListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.store.ListOpenShifts(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	if shifts == nil {
		shifts = []models.Shift{}
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (h *Handler) handleShiftSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/shifts/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGetShift(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "queue":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleQueue(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleShiftAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetShift(w http.ResponseWriter, r *http.Request, shiftID string) {
	if !isValidUUID(shiftID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "shift_id must be a UUID")
		return
	}
	shift, err := h.store.GetShift(r.Context(), shiftID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request, shiftID string) {
	if !isValidUUID(shiftID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "shift_id must be a UUID")
		return
	}
	queue, err := h.store.ListQueue(r.Context(), shiftID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	if queue == nil {
		queue = []models.Application{}
	}
	writeJSON(w, http.StatusOK, queue)
}

func (h *Handler) handleShiftAction(w http.ResponseWriter, r *http.Request, shiftID, action string) {
	if !isValidUUID(shiftID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "shift_id must be a UUID")
		return
	}

	switch action {
	case "apply":
		h.handleApply(w, r, shiftID)
	case "assign":
		h.handleAssign(w, r, shiftID)
	case "cancel-assignment":
		h.handleCancelAssignment(w, r, shiftID)
	case "start":
		h.handleStart(w, r, shiftID)
	case "complete":
		h.handleComplete(w, r, shiftID)
	case "cancel":
		h.handleCancelShift(w, r, shiftID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request, shiftID string) {
	var req applyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.NurseID = strings.TrimSpace(req.NurseID)
	if req.NurseID == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "nurse_id is required")
		return
	}

	shift, err := h.store.Apply(r.Context(), store.ApplyInput{
		ShiftID:   shiftID,
		NurseID:   req.NurseID,
		Message:   req.Message,
		AppliedAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request, shiftID string) {
	var req assignRequest
	if !decodeBody(w, r, &req) {
		return
	}

	shift, err := h.store.AssignNext(r.Context(), store.AssignInput{
		ShiftID:    shiftID,
		NurseID:    strings.TrimSpace(req.NurseID),
		AssignedAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *Handler) handleCancelAssignment(w http.ResponseWriter, r *http.Request, shiftID string) {
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	shift, err := h.store.CancelAssignment(r.Context(), store.ShiftActionInput{
		ShiftID:    shiftID,
		Reason:     req.Reason,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request, shiftID string) {
	shift, err := h.store.StartShift(r.Context(), store.ShiftActionInput{
		ShiftID:    shiftID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request, shiftID string) {
	shift, err := h.store.CompleteShift(r.Context(), store.ShiftActionInput{
		ShiftID:    shiftID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *Handler) handleCancelShift(w http.ResponseWriter, r *http.Request, shiftID string) {
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	shift, err := h.store.CancelShift(r.Context(), store.ShiftActionInput{
		ShiftID:    shiftID,
		Reason:     req.Reason,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *Handler) handleSurgeActivate(w http.ResponseWriter, r *http.Request) {
	h.handleSurge(w, r, true)
}

func (h *Handler) handleSurgeDeactivate(w http.ResponseWriter, r *http.Request) {
	h.handleSurge(w, r, false)
}

func (h *Handler) handleSurge(w http.ResponseWriter, r *http.Request, active bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req surgeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Multiplier == 0 {
		req.Multiplier = 1.5
	}
	if active && req.Multiplier < 1.0 {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "multiplier must be >= 1.0")
		return
	}

	affected, err := h.store.SetSurge(r.Context(), active, req.Multiplier)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, surgeResponse{Surge: active, ShiftsAffected: affected})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func validWallClock(value string) bool {
	_, err := time.Parse("15:04", value)
	return err == nil
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrShiftNotFound):
		return http.StatusNotFound, "shift_not_found", "shift not found"
	case errors.Is(err, store.ErrEmergencyNotFound):
		return http.StatusNotFound, "emergency_not_found", "emergency request not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "current status does not allow this action"
	case errors.Is(err, store.ErrEmptyQueue):
		return http.StatusBadRequest, "empty_queue", "no applications in queue"
	case errors.Is(err, store.ErrNotInQueue):
		return http.StatusBadRequest, "not_in_queue", "nurse has not applied to this shift"
	case errors.Is(err, store.ErrFull):
		return http.StatusConflict, "full", "emergency request already has enough nurses"
	case errors.Is(err, store.ErrNotNotified):
		return http.StatusBadRequest, "not_notified", "nurse was not notified for this request"
	default:
		log.Printf("internal error: %v", err)
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
