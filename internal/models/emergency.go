package models

import "time"

type EmergencyRequest struct {
	RequestID          string           `json:"request_id"`
	HospitalID         string           `json:"hospital_id"`
	Situation          string           `json:"situation"`
	Department         string           `json:"department"`
	UrgencyLevel       string           `json:"urgency_level"`
	Latitude           float64          `json:"latitude"`
	Longitude          float64          `json:"longitude"`
	RadiusMeters       float64          `json:"radius_meters"`
	NursesNeeded       int              `json:"nurses_needed"`
	EmergencyRate      float64          `json:"emergency_rate"`
	BonusAmount        float64          `json:"bonus_amount"`
	ContactName        string           `json:"contact_name,omitempty"`
	ContactPhone       string           `json:"contact_phone,omitempty"`
	Status             string           `json:"status"`
	Notified           []NotifiedNurse  `json:"notified,omitempty"`
	Accepted           []AcceptedNurse  `json:"accepted,omitempty"`
	FulfilledAt        *time.Time       `json:"fulfilled_at,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
	ExpiresAt          time.Time        `json:"expires_at"`
	CreatedAt          time.Time        `json:"created_at"`
}

// NotifiedNurse records a single alert delivery attempt. One entry per nurse
// per request; dispatch never notifies the same nurse twice.
type NotifiedNurse struct {
	NurseID        string     `json:"nurse_id"`
	NotifiedAt     time.Time  `json:"notified_at"`
	DistanceMeters float64    `json:"distance_meters"`
	Responded      bool       `json:"responded"`
	Response       string     `json:"response,omitempty"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
}

type AcceptedNurse struct {
	NurseID    string    `json:"nurse_id"`
	AcceptedAt time.Time `json:"accepted_at"`
	Status     string    `json:"status"`
}

const (
	EmergencyActive    = "active"
	EmergencyFulfilled = "fulfilled"
	EmergencyCancelled = "cancelled"
	EmergencyExpired   = "expired"
)

const (
	ResponseAccepted = "accepted"
	ResponseDeclined = "declined"
)

const (
	AcceptStatusAccepted  = "accepted"
	AcceptStatusEnRoute   = "en_route"
	AcceptStatusArrived   = "arrived"
	AcceptStatusCancelled = "cancelled"
)
