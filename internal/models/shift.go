package models

import "time"

type Shift struct {
	ShiftID            string        `json:"shift_id"`
	HospitalID         string        `json:"hospital_id"`
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	Department         string        `json:"department"`
	Date               string        `json:"date"`
	StartTime          string        `json:"start_time"`
	EndTime            string        `json:"end_time"`
	PaymentRate        float64       `json:"payment_rate"`
	PaymentType        string        `json:"payment_type"`
	BonusAmount        float64       `json:"bonus_amount"`
	UrgencyLevel       string        `json:"urgency_level"`
	Status             string        `json:"status"`
	Surge              bool          `json:"surge"`
	SurgeMultiplier    float64       `json:"surge_multiplier"`
	AssignedNurseID    *string       `json:"assigned_nurse_id,omitempty"`
	AssignedAt         *time.Time    `json:"assigned_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	HospitalNotes      string        `json:"hospital_notes,omitempty"`
	Applications       []Application `json:"applications,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Application is one entry in a shift's FIFO queue. Insertion order is
// priority order; entries are never reordered after insert.
type Application struct {
	NurseID   string    `json:"nurse_id"`
	AppliedAt time.Time `json:"applied_at"`
	Message   string    `json:"message,omitempty"`
}

const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	UrgencyLow       = "low"
	UrgencyMedium    = "medium"
	UrgencyHigh      = "high"
	UrgencyEmergency = "emergency"
)

const (
	PaymentHourly = "hourly"
	PaymentFlat   = "flat"
)

var departments = map[string]bool{
	"ICU":           true,
	"ER":            true,
	"Pediatrics":    true,
	"Surgery":       true,
	"Oncology":      true,
	"Cardiology":    true,
	"Neurology":     true,
	"General":       true,
	"Mental Health": true,
	"Geriatrics":    true,
}

func ValidDepartment(value string) bool {
	return departments[value]
}

func ValidUrgency(value string) bool {
	switch value {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

// TerminalStatus reports whether a shift status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}
