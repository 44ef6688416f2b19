package alertapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nishaa-11/Nurse/internal/dispatch"
	"github.com/nishaa-11/Nurse/internal/geo"
	"github.com/nishaa-11/Nurse/internal/models"
	"github.com/nishaa-11/Nurse/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store         store.EmergencyStore
	dispatcher    *dispatch.Dispatcher
	geo           *geo.Index
	defaultRadius float64
}

type Options struct {
	DefaultRadiusMeters float64
}

func NewHandler(st store.EmergencyStore, dispatcher *dispatch.Dispatcher, index *geo.Index, options Options) *Handler {
	radius := options.DefaultRadiusMeters
	if radius <= 0 {
		radius = 1000
	}
	return &Handler{store: st, dispatcher: dispatcher, geo: index, defaultRadius: radius}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/emergencies", h.handleEmergencies)
	mux.HandleFunc("/api/emergencies/", h.handleEmergencyActions)
	mux.HandleFunc("/api/nurses/nearby", h.handleNearby)
	return mux
}

type createEmergencyRequest struct {
	HospitalID       string   `json:"hospital_id"`
	Situation        string   `json:"situation"`
	Department       string   `json:"department"`
	UrgencyLevel     string   `json:"urgency_level"`
	Latitude         *float64 `json:"lat"`
	Longitude        *float64 `json:"lon"`
	RadiusMeters     float64  `json:"radius_meters"`
	NursesNeeded     int      `json:"nurses_needed"`
	EmergencyRate    float64  `json:"emergency_rate"`
	BonusAmount      float64  `json:"bonus_amount"`
	ContactName      string   `json:"contact_name"`
	ContactPhone     string   `json:"contact_phone"`
	ExpiresInSeconds int      `json:"expires_in_seconds"`
}

type createEmergencyResponse struct {
	Emergency models.EmergencyRequest `json:"emergency"`
	Notified  int                     `json:"notified"`
}

type nurseActionRequest struct {
	NurseID string `json:"nurse_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleEmergencies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateEmergency(w, r)
	case http.MethodGet:
		h.handleListEmergencies(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateEmergency(w http.ResponseWriter, r *http.Request) {
	var req createEmergencyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.HospitalID = strings.TrimSpace(req.HospitalID)
	req.Situation = strings.TrimSpace(req.Situation)
	req.Department = strings.TrimSpace(req.Department)

	if req.HospitalID == "" || req.Situation == "" || req.Latitude == nil || req.Longitude == nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "hospital_id, situation, lat, and lon are required")
		return
	}
	if req.Department == "" {
		req.Department = "General"
	}
	if !models.ValidDepartment(req.Department) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown department")
		return
	}
	if req.UrgencyLevel == "" {
		req.UrgencyLevel = models.UrgencyHigh
	}
	if req.RadiusMeters <= 0 {
		req.RadiusMeters = h.defaultRadius
	}

	input := store.CreateEmergencyInput{
		HospitalID:    req.HospitalID,
		Situation:     req.Situation,
		Department:    req.Department,
		UrgencyLevel:  req.UrgencyLevel,
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		RadiusMeters:  req.RadiusMeters,
		NursesNeeded:  req.NursesNeeded,
		EmergencyRate: req.EmergencyRate,
		BonusAmount:   req.BonusAmount,
		ContactName:   req.ContactName,
		ContactPhone:  req.ContactPhone,
		CreatedAt:     time.Now().UTC(),
	}
	if req.ExpiresInSeconds > 0 {
		input.ExpiresAt = input.CreatedAt.Add(time.Duration(req.ExpiresInSeconds) * time.Second)
	}

	request, err := h.store.CreateEmergency(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}

	notified, err := h.dispatcher.Dispatch(r.Context(), request)
	if err != nil {
		// The request exists and alerts went out; only the bookkeeping
		// write failed. Surface the request anyway.
		log.Printf("record notified error request=%s: %v", request.RequestID, err)
	}

	writeJSON(w, http.StatusCreated, createEmergencyResponse{Emergency: request, Notified: notified})
}

func (h *Handler) handleListEmergencies(w http.ResponseWriter, r *http.Request) {
	requests, err := h.store.ListEmergencies(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	if requests == nil {
		requests = []models.EmergencyRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *Handler) handleEmergencyActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/emergencies/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	requestID := parts[0]
	if !isValidUUID(requestID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}

	switch parts[2] {
	case "accept":
		h.handleAccept(w, r, requestID)
	case "decline":
		h.handleDecline(w, r, requestID)
	case "cancel":
		h.handleCancel(w, r, requestID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request, requestID string) {
	var req nurseActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.NurseID = strings.TrimSpace(req.NurseID)
	if req.NurseID == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "nurse_id is required")
		return
	}

	request, err := h.store.AcceptEmergency(r.Context(), store.EmergencyActionInput{
		RequestID:  requestID,
		NurseID:    req.NurseID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}

	h.dispatcher.NotifyAssigned(req.NurseID, request)
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request, requestID string) {
	var req nurseActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.NurseID = strings.TrimSpace(req.NurseID)
	if req.NurseID == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "nurse_id is required")
		return
	}

	request, err := h.store.DeclineEmergency(r.Context(), store.EmergencyActionInput{
		RequestID:  requestID,
		NurseID:    req.NurseID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request, requestID string) {
	var req nurseActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	request, err := h.store.CancelEmergency(r.Context(), store.EmergencyActionInput{
		RequestID:  requestID,
		Reason:     req.Reason,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleNearby(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("lat")), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("lon")), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "lat and lon are required")
		return
	}
	radius := h.defaultRadius
	if raw := strings.TrimSpace(r.URL.Query().Get("radius")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "radius must be a positive number")
			return
		}
		radius = parsed
	}

	matches := h.geo.Nearby(lat, lon, radius)
	if matches == nil {
		matches = []geo.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
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
	case errors.Is(err, store.ErrEmergencyNotFound):
		return http.StatusNotFound, "emergency_not_found", "emergency request not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "request status does not allow this action"
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
