package store

import (
	"context"
	"time"

	"github.com/nishaa-11/Nurse/internal/models"
)

type CreateShiftInput struct {
	HospitalID    string
	Title         string
	Description   string
	Department    string
	Date          string
	StartTime     string
	EndTime       string
	PaymentRate   float64
	PaymentType   string
	BonusAmount   float64
	UrgencyLevel  string
	HospitalNotes string
	CreatedAt     time.Time
}

type ApplyInput struct {
	ShiftID   string
	NurseID   string
	Message   string
	AppliedAt time.Time
}

type AssignInput struct {
	ShiftID    string
	NurseID    string // optional; empty means FIFO head
	AssignedAt time.Time
}

type ShiftActionInput struct {
	ShiftID    string
	Reason     string
	OccurredAt time.Time
}

type ShiftStore interface {
	CreateShift(ctx context.Context, input CreateShiftInput) (models.Shift, error)
	GetShift(ctx context.Context, shiftID string) (models.Shift, error)
	ListOpenShifts(ctx context.Context) ([]models.Shift, error)
	ListQueue(ctx context.Context, shiftID string) ([]models.Application, error)
	Apply(ctx context.Context, input ApplyInput) (models.Shift, error)
	AssignNext(ctx context.Context, input AssignInput) (models.Shift, error)
	CancelAssignment(ctx context.Context, input ShiftActionInput) (models.Shift, error)
	StartShift(ctx context.Context, input ShiftActionInput) (models.Shift, error)
	CompleteShift(ctx context.Context, input ShiftActionInput) (models.Shift, error)
	CancelShift(ctx context.Context, input ShiftActionInput) (models.Shift, error)
	SetSurge(ctx context.Context, active bool, multiplier float64) (int64, error)
	SessionStore
}

type CreateEmergencyInput struct {
	HospitalID    string
	Situation     string
	Department    string
	UrgencyLevel  string
	Latitude      float64
	Longitude     float64
	RadiusMeters  float64
	NursesNeeded  int
	EmergencyRate float64
	BonusAmount   float64
	ContactName   string
	ContactPhone  string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

type NotifiedInput struct {
	NurseID        string
	NotifiedAt     time.Time
	DistanceMeters float64
}

type EmergencyActionInput struct {
	RequestID  string
	NurseID    string
	Reason     string
	OccurredAt time.Time
}

type EmergencyStore interface {
	CreateEmergency(ctx context.Context, input CreateEmergencyInput) (models.EmergencyRequest, error)
	GetEmergency(ctx context.Context, requestID string) (models.EmergencyRequest, error)
	ListEmergencies(ctx context.Context) ([]models.EmergencyRequest, error)
	RecordNotified(ctx context.Context, requestID string, entries []NotifiedInput) error
	AcceptEmergency(ctx context.Context, input EmergencyActionInput) (models.EmergencyRequest, error)
	DeclineEmergency(ctx context.Context, input EmergencyActionInput) (models.EmergencyRequest, error)
	CancelEmergency(ctx context.Context, input EmergencyActionInput) (models.EmergencyRequest, error)
	ExpireEmergencies(ctx context.Context, now time.Time) (int, error)
	SessionStore
}

type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (Session, error)
}

// Session is the authenticated principal attached to a request. The auth
// service owns the sessions table; this side only reads it.
type Session struct {
	SessionID string
	UserID    string
	Role      string
	ExpiresAt time.Time
}
