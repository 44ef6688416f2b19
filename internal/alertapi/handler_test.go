package alertapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nishaa-11/Nurse/internal/dispatch"
	"github.com/nishaa-11/Nurse/internal/geo"
	"github.com/nishaa-11/Nurse/internal/hub"
	"github.com/nishaa-11/Nurse/internal/models"
	"github.com/nishaa-11/Nurse/internal/store"
)

type fakeEmergencyStore struct {
	createEmergency func(ctx context.Context, input store.CreateEmergencyInput) (models.EmergencyRequest, error)
	getEmergency    func(ctx context.Context, requestID string) (models.EmergencyRequest, error)
	listEmergencies func(ctx context.Context) ([]models.EmergencyRequest, error)
	recordNotified  func(ctx context.Context, requestID string, entries []store.NotifiedInput) error
	accept          func(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error)
	decline         func(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error)
	cancel          func(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error)
}

func (f *fakeEmergencyStore) CreateEmergency(ctx context.Context, input store.CreateEmergencyInput) (models.EmergencyRequest, error) {
	return f.createEmergency(ctx, input)
}

func (f *fakeEmergencyStore) GetEmergency(ctx context.Context, requestID string) (models.EmergencyRequest, error) {
	return f.getEmergency(ctx, requestID)
}

func (f *fakeEmergencyStore) ListEmergencies(ctx context.Context) ([]models.EmergencyRequest, error) {
	return f.listEmergencies(ctx)
}

func (f *fakeEmergencyStore) RecordNotified(ctx context.Context, requestID string, entries []store.NotifiedInput) error {
	if f.recordNotified == nil {
		return nil
	}
	return f.recordNotified(ctx, requestID, entries)
}

func (f *fakeEmergencyStore) AcceptEmergency(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error) {
	return f.accept(ctx, input)
}

func (f *fakeEmergencyStore) DeclineEmergency(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error) {
	return f.decline(ctx, input)
}

func (f *fakeEmergencyStore) CancelEmergency(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error) {
	return f.cancel(ctx, input)
}

func (f *fakeEmergencyStore) ExpireEmergencies(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeEmergencyStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	return store.Session{}, store.ErrSessionNotFound
}

const testRequestID = "2d7e4f8a-5b3c-4d1e-8f6a-9c0b1a2d3e4f"

// latDegrees converts a north-south distance to degrees of latitude.
func latDegrees(meters float64) float64 {
	return meters / 111194.9
}

func newTestHandler(st *fakeEmergencyStore, index *geo.Index) *Handler {
	if index == nil {
		index = geo.NewIndex()
	}
	return NewHandler(st, dispatch.New(index, hub.New(), st), index, Options{})
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp.Error.Code
}

func TestCreateEmergencyDispatchesToRadius(t *testing.T) {
	index := geo.NewIndex()
	index.Update("near", 40.0+latDegrees(900), -74.0, true)
	index.Update("far", 40.0+latDegrees(1100), -74.0, true)

	var notifiedEntries []store.NotifiedInput
	st := &fakeEmergencyStore{
		createEmergency: func(_ context.Context, input store.CreateEmergencyInput) (models.EmergencyRequest, error) {
			return models.EmergencyRequest{
				RequestID:    testRequestID,
				HospitalID:   input.HospitalID,
				Situation:    input.Situation,
				Department:   input.Department,
				UrgencyLevel: input.UrgencyLevel,
				Latitude:     input.Latitude,
				Longitude:    input.Longitude,
				RadiusMeters: input.RadiusMeters,
				NursesNeeded: input.NursesNeeded,
				Status:       models.EmergencyActive,
			}, nil
		},
		recordNotified: func(_ context.Context, _ string, entries []store.NotifiedInput) error {
			notifiedEntries = entries
			return nil
		},
	}
	h := newTestHandler(st, index)

	body := `{"hospital_id":"hosp-1","situation":"code blue","department":"ICU","lat":40.0,"lon":-74.0,"nurses_needed":2}`
	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var resp createEmergencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Notified != 1 {
		t.Fatalf("notified %d, want 1", resp.Notified)
	}
	if resp.Emergency.RadiusMeters != 1000 {
		t.Fatalf("default radius %f, want 1000", resp.Emergency.RadiusMeters)
	}
	if resp.Emergency.UrgencyLevel != models.UrgencyHigh {
		t.Fatalf("default urgency %q, want high", resp.Emergency.UrgencyLevel)
	}
	if len(notifiedEntries) != 1 || notifiedEntries[0].NurseID != "near" {
		t.Fatalf("unexpected notified entries %+v", notifiedEntries)
	}
}

func TestCreateEmergencyValidation(t *testing.T) {
	st := &fakeEmergencyStore{
		createEmergency: func(context.Context, store.CreateEmergencyInput) (models.EmergencyRequest, error) {
			t.Fatalf("store must not be reached on invalid input")
			return models.EmergencyRequest{}, nil
		},
	}
	h := newTestHandler(st, nil)

	cases := []struct {
		name string
		body string
	}{
		{"missing situation", `{"hospital_id":"h","lat":40.0,"lon":-74.0}`},
		{"missing coordinates", `{"hospital_id":"h","situation":"s"}`},
		{"unknown department", `{"hospital_id":"h","situation":"s","department":"Astrology","lat":40.0,"lon":-74.0}`},
		{"unknown field", `{"hospital_id":"h","bogus":true}`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateEmergencyForwardsExpiry(t *testing.T) {
	var got store.CreateEmergencyInput
	st := &fakeEmergencyStore{
		createEmergency: func(_ context.Context, input store.CreateEmergencyInput) (models.EmergencyRequest, error) {
			got = input
			return models.EmergencyRequest{RequestID: testRequestID, Status: models.EmergencyActive}, nil
		},
	}
	h := newTestHandler(st, nil)

	body := `{"hospital_id":"h","situation":"s","lat":40.0,"lon":-74.0,"expires_in_seconds":600}`
	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201", rec.Code)
	}
	if got.ExpiresAt.IsZero() {
		t.Fatalf("expires_at not set")
	}
	if want := got.CreatedAt.Add(10 * time.Minute); !got.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at %v, want %v", got.ExpiresAt, want)
	}
}

func TestAccept(t *testing.T) {
	accepted := models.EmergencyRequest{
		RequestID: testRequestID,
		Status:    models.EmergencyActive,
		Accepted:  []models.AcceptedNurse{{NurseID: "nurse-1", Status: models.AcceptStatusAccepted}},
	}
	st := &fakeEmergencyStore{
		accept: func(_ context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error) {
			if input.NurseID != "nurse-1" {
				t.Fatalf("nurse id %q", input.NurseID)
			}
			return accepted, nil
		},
	}
	h := newTestHandler(st, nil)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies/"+testRequestID+"/actions/accept", `{"nurse_id":"nurse-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp models.EmergencyRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Accepted) != 1 || resp.Accepted[0].NurseID != "nurse-1" {
		t.Fatalf("unexpected accepted list %+v", resp.Accepted)
	}
}

func TestAcceptFull(t *testing.T) {
	st := &fakeEmergencyStore{
		accept: func(context.Context, store.EmergencyActionInput) (models.EmergencyRequest, error) {
			return models.EmergencyRequest{}, store.ErrFull
		},
	}
	h := newTestHandler(st, nil)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies/"+testRequestID+"/actions/accept", `{"nurse_id":"nurse-1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "full" {
		t.Fatalf("error code %q", code)
	}
}

func TestAcceptRequiresNurseID(t *testing.T) {
	h := newTestHandler(&fakeEmergencyStore{}, nil)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies/"+testRequestID+"/actions/accept", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestDeclineNotNotified(t *testing.T) {
	st := &fakeEmergencyStore{
		decline: func(context.Context, store.EmergencyActionInput) (models.EmergencyRequest, error) {
			return models.EmergencyRequest{}, store.ErrNotNotified
		},
	}
	h := newTestHandler(st, nil)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies/"+testRequestID+"/actions/decline", `{"nurse_id":"nurse-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "not_notified" {
		t.Fatalf("error code %q", code)
	}
}

func TestCancelExpiredConflict(t *testing.T) {
	st := &fakeEmergencyStore{
		cancel: func(context.Context, store.EmergencyActionInput) (models.EmergencyRequest, error) {
			return models.EmergencyRequest{}, store.ErrInvalidState
		},
	}
	h := newTestHandler(st, nil)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies/"+testRequestID+"/actions/cancel", `{"reason":"handled internally"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestActionRejectsBadRequestID(t *testing.T) {
	h := newTestHandler(&fakeEmergencyStore{}, nil)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/emergencies/not-a-uuid/actions/accept", `{"nurse_id":"n"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestListEmergencies(t *testing.T) {
	st := &fakeEmergencyStore{
		listEmergencies: func(context.Context) ([]models.EmergencyRequest, error) {
			return []models.EmergencyRequest{{RequestID: testRequestID, Status: models.EmergencyActive}}, nil
		},
	}
	h := newTestHandler(st, nil)

	rec := doRequest(t, h.Routes(), http.MethodGet, "/api/emergencies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var list []models.EmergencyRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].RequestID != testRequestID {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestNearby(t *testing.T) {
	index := geo.NewIndex()
	index.Update("near", 40.0+latDegrees(500), -74.0, true)
	index.Update("far", 40.0+latDegrees(2000), -74.0, true)
	h := newTestHandler(&fakeEmergencyStore{}, index)

	rec := doRequest(t, h.Routes(), http.MethodGet, "/api/nurses/nearby?lat=40.0&lon=-74.0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var matches []geo.Match
	if err := json.Unmarshal(rec.Body.Bytes(), &matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) != 1 || matches[0].Location.NurseID != "near" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestNearbyValidation(t *testing.T) {
	h := newTestHandler(&fakeEmergencyStore{}, nil)

	rec := doRequest(t, h.Routes(), http.MethodGet, "/api/nurses/nearby?lat=abc&lon=-74.0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}

	rec = doRequest(t, h.Routes(), http.MethodGet, "/api/nurses/nearby?lat=40.0&lon=-74.0&radius=-5", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestNearbyEmptyEncodesAsArray(t *testing.T) {
	h := newTestHandler(&fakeEmergencyStore{}, nil)

	rec := doRequest(t, h.Routes(), http.MethodGet, "/api/nurses/nearby?lat=40.0&lon=-74.0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("empty result should encode as [], got %q", body)
	}
}
