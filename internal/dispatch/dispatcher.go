package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/nishaa-11/Nurse/internal/geo"
	"github.com/nishaa-11/Nurse/internal/hub"
	"github.com/nishaa-11/Nurse/internal/models"
	"github.com/nishaa-11/Nurse/internal/store"
)

// Publisher delivers an encoded event to every connection of one nurse and
// reports how many sends landed.
type Publisher interface {
	Publish(nurseID string, payload []byte) int
}

// Dispatcher fans an emergency request out to every available nurse inside
// its radius. Fan-out works on a snapshot of the geo index, so location
// updates racing a dispatch do not change who gets alerted.
type Dispatcher struct {
	geo   *geo.Index
	pub   Publisher
	store store.EmergencyStore
	now   func() time.Time
}

func New(index *geo.Index, pub Publisher, st store.EmergencyStore) *Dispatcher {
	return &Dispatcher{
		geo:   index,
		pub:   pub,
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type alertPayload struct {
	Emergency      models.EmergencyRequest `json:"emergency"`
	DistanceMeters float64                 `json:"distance_meters"`
}

// Dispatch alerts every matching nurse once and records the notified set.
// Delivery is at-most-once, best-effort; a disconnected client simply misses
// the alert.
func (d *Dispatcher) Dispatch(ctx context.Context, request models.EmergencyRequest) (int, error) {
	matches := d.geo.Nearby(request.Latitude, request.Longitude, request.RadiusMeters)
	if len(matches) == 0 {
		return 0, nil
	}

	notifiedAt := d.now()
	entries := make([]store.NotifiedInput, 0, len(matches))
	for _, match := range matches {
		payload := hub.EncodeEnvelope("emergency_alert", alertPayload{
			Emergency:      request,
			DistanceMeters: match.DistanceMeters,
		})
		delivered := d.pub.Publish(match.Location.NurseID, payload)
		if delivered == 0 {
			log.Printf("alert not delivered request=%s nurse=%s", request.RequestID, match.Location.NurseID)
		}
		entries = append(entries, store.NotifiedInput{
			NurseID:        match.Location.NurseID,
			NotifiedAt:     notifiedAt,
			DistanceMeters: match.DistanceMeters,
		})
	}

	if err := d.store.RecordNotified(ctx, request.RequestID, entries); err != nil {
		return len(entries), err
	}
	return len(entries), nil
}

// NotifyAssigned tells one nurse their acceptance went through.
func (d *Dispatcher) NotifyAssigned(nurseID string, request models.EmergencyRequest) {
	payload := hub.EncodeEnvelope("emergency_assigned", request)
	if delivered := d.pub.Publish(nurseID, payload); delivered == 0 {
		log.Printf("assignment notice not delivered request=%s nurse=%s", request.RequestID, nurseID)
	}
}
