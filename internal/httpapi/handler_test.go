package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nishaa-11/Nurse/internal/models"
	"github.com/nishaa-11/Nurse/internal/store"
)

type fakeShiftStore struct {
	createShift func(ctx context.Context, input store.CreateShiftInput) (models.Shift, error)
	getShift    func(ctx context.Context, shiftID string) (models.Shift, error)
	listOpen    func(ctx context.Context) ([]models.Shift, error)
	listQueue   func(ctx context.Context, shiftID string) ([]models.Application, error)
	apply       func(ctx context.Context, input store.ApplyInput) (models.Shift, error)
	assignNext  func(ctx context.Context, input store.AssignInput) (models.Shift, error)
	shiftAction func(ctx context.Context, input store.ShiftActionInput) (models.Shift, error)
	setSurge    func(ctx context.Context, active bool, multiplier float64) (int64, error)
}

func (f *fakeShiftStore) CreateShift(ctx context.Context, input store.CreateShiftInput) (models.Shift, error) {
	return f.createShift(ctx, input)
}

func (f *fakeShiftStore) GetShift(ctx context.Context, shiftID string) (models.Shift, error) {
	return f.getShift(ctx, shiftID)
}

func (f *fakeShiftStore) ListOpenShifts(ctx context.Context) ([]models.Shift, error) {
	return f.listOpen(ctx)
}

func (f *fakeShiftStore) ListQueue(ctx context.Context, shiftID string) ([]models.Application, error) {
	return f.listQueue(ctx, shiftID)
}

func (f *fakeShiftStore) Apply(ctx context.Context, input store.ApplyInput) (models.Shift, error) {
	return f.apply(ctx, input)
}

func (f *fakeShiftStore) AssignNext(ctx context.Context, input store.AssignInput) (models.Shift, error) {
	return f.assignNext(ctx, input)
}

func (f *fakeShiftStore) CancelAssignment(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	return f.shiftAction(ctx, input)
}

func (f *fakeShiftStore) StartShift(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	return f.shiftAction(ctx, input)
}

func (f *fakeShiftStore) CompleteShift(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	return f.shiftAction(ctx, input)
}

func (f *fakeShiftStore) CancelShift(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	return f.shiftAction(ctx, input)
}

func (f *fakeShiftStore) SetSurge(ctx context.Context, active bool, multiplier float64) (int64, error) {
	return f.setSurge(ctx, active, multiplier)
}

func (f *fakeShiftStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	return store.Session{}, store.ErrSessionNotFound
}

const testShiftID = "6f1b0a52-9c1f-4c44-9a0e-0f5f3f1b2a3c"

func validCreateBody() string {
	return `{
		"hospital_id": "hosp-1",
		"title": "Night shift ICU",
		"department": "ICU",
		"date": "2026-09-01",
		"start_time": "19:00",
		"end_time": "07:00",
		"payment_rate": 85.5
	}`
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
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

func TestCreateShift(t *testing.T) {
	st := &fakeShiftStore{
		createShift: func(_ context.Context, input store.CreateShiftInput) (models.Shift, error) {
			return models.Shift{
				ShiftID:      testShiftID,
				HospitalID:   input.HospitalID,
				Title:        input.Title,
				Department:   input.Department,
				PaymentRate:  input.PaymentRate,
				PaymentType:  input.PaymentType,
				UrgencyLevel: input.UrgencyLevel,
				Status:       models.StatusOpen,
			}, nil
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts", validCreateBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var shift models.Shift
	if err := json.Unmarshal(rec.Body.Bytes(), &shift); err != nil {
		t.Fatalf("decode shift: %v", err)
	}
	if shift.Status != models.StatusOpen {
		t.Fatalf("new shift status %q, want open", shift.Status)
	}
	if shift.UrgencyLevel != models.UrgencyMedium {
		t.Fatalf("default urgency %q, want medium", shift.UrgencyLevel)
	}
	if shift.PaymentType != models.PaymentHourly {
		t.Fatalf("default payment type %q, want hourly", shift.PaymentType)
	}
}

func TestCreateShiftValidation(t *testing.T) {
	st := &fakeShiftStore{
		createShift: func(context.Context, store.CreateShiftInput) (models.Shift, error) {
			t.Fatalf("store must not be reached on invalid input")
			return models.Shift{}, nil
		},
	}
	h := NewHandler(st)

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"hospital_id":"h","department":"ICU","date":"2026-09-01","start_time":"19:00","end_time":"07:00","payment_rate":10}`},
		{"missing payment rate", `{"hospital_id":"h","title":"t","department":"ICU","date":"2026-09-01","start_time":"19:00","end_time":"07:00"}`},
		{"negative payment rate", `{"hospital_id":"h","title":"t","department":"ICU","date":"2026-09-01","start_time":"19:00","end_time":"07:00","payment_rate":-1}`},
		{"unknown department", `{"hospital_id":"h","title":"t","department":"Astrology","date":"2026-09-01","start_time":"19:00","end_time":"07:00","payment_rate":10}`},
		{"bad date", `{"hospital_id":"h","title":"t","department":"ICU","date":"09/01/2026","start_time":"19:00","end_time":"07:00","payment_rate":10}`},
		{"bad time", `{"hospital_id":"h","title":"t","department":"ICU","date":"2026-09-01","start_time":"7pm","end_time":"07:00","payment_rate":10}`},
		{"unknown urgency", `{"hospital_id":"h","title":"t","department":"ICU","date":"2026-09-01","start_time":"19:00","end_time":"07:00","payment_rate":10,"urgency_level":"extreme"}`},
		{"bad payment type", `{"hospital_id":"h","title":"t","department":"ICU","date":"2026-09-01","start_time":"19:00","end_time":"07:00","payment_rate":10,"payment_type":"weekly"}`},
		{"unknown field", `{"hospital_id":"h","bogus":true}`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetShiftNotFound(t *testing.T) {
	st := &fakeShiftStore{
		getShift: func(context.Context, string) (models.Shift, error) {
			return models.Shift{}, store.ErrShiftNotFound
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodGet, "/api/shifts/"+testShiftID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "shift_not_found" {
		t.Fatalf("error code %q", code)
	}
}

func TestGetShiftRejectsBadID(t *testing.T) {
	h := NewHandler(&fakeShiftStore{})

	rec := doRequest(t, h.Routes(), http.MethodGet, "/api/shifts/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestApply(t *testing.T) {
	var got store.ApplyInput
	st := &fakeShiftStore{
		apply: func(_ context.Context, input store.ApplyInput) (models.Shift, error) {
			got = input
			return models.Shift{ShiftID: input.ShiftID, Status: models.StatusOpen}, nil
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts/"+testShiftID+"/actions/apply", `{"nurse_id":"nurse-1","message":"available"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got.ShiftID != testShiftID || got.NurseID != "nurse-1" || got.Message != "available" {
		t.Fatalf("unexpected apply input %+v", got)
	}
}

func TestApplyRequiresNurseID(t *testing.T) {
	h := NewHandler(&fakeShiftStore{})

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts/"+testShiftID+"/actions/apply", `{"message":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestApplyConflict(t *testing.T) {
	st := &fakeShiftStore{
		apply: func(context.Context, store.ApplyInput) (models.Shift, error) {
			return models.Shift{}, store.ErrInvalidState
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts/"+testShiftID+"/actions/apply", `{"nurse_id":"nurse-1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "invalid_state" {
		t.Fatalf("error code %q", code)
	}
}

func TestAssignEmptyQueue(t *testing.T) {
	st := &fakeShiftStore{
		assignNext: func(context.Context, store.AssignInput) (models.Shift, error) {
			return models.Shift{}, store.ErrEmptyQueue
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts/"+testShiftID+"/actions/assign", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "empty_queue" {
		t.Fatalf("error code %q", code)
	}
}

func TestAssignExplicitNurseNotInQueue(t *testing.T) {
	st := &fakeShiftStore{
		assignNext: func(_ context.Context, input store.AssignInput) (models.Shift, error) {
			if input.NurseID != "nurse-9" {
				t.Fatalf("nurse id %q forwarded, want nurse-9", input.NurseID)
			}
			return models.Shift{}, store.ErrNotInQueue
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts/"+testShiftID+"/actions/assign", `{"nurse_id":"nurse-9"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "not_in_queue" {
		t.Fatalf("error code %q", code)
	}
}

func TestShiftActions(t *testing.T) {
	cases := []struct {
		action string
		body   string
	}{
		{"start", ""},
		{"complete", ""},
		{"cancel", `{"reason":"no longer needed"}`},
		{"cancel-assignment", `{"reason":"nurse dropped out"}`},
	}

	for _, tt := range cases {
		t.Run(tt.action, func(t *testing.T) {
			st := &fakeShiftStore{
				shiftAction: func(_ context.Context, input store.ShiftActionInput) (models.Shift, error) {
					if input.ShiftID != testShiftID {
						t.Fatalf("shift id %q", input.ShiftID)
					}
					return models.Shift{ShiftID: input.ShiftID}, nil
				},
			}
			h := NewHandler(st)

			rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts/"+testShiftID+"/actions/"+tt.action, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status %d, want 200 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUnknownActionIs404(t *testing.T) {
	h := NewHandler(&fakeShiftStore{})

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/shifts/"+testShiftID+"/actions/promote", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestListShiftsEmpty(t *testing.T) {
	st := &fakeShiftStore{
		listOpen: func(context.Context) ([]models.Shift, error) { return nil, nil },
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodGet, "/api/shifts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("empty listing should encode as [], got %q", body)
	}
}

func TestSurgeActivate(t *testing.T) {
	var gotActive bool
	var gotMultiplier float64
	st := &fakeShiftStore{
		setSurge: func(_ context.Context, active bool, multiplier float64) (int64, error) {
			gotActive = active
			gotMultiplier = multiplier
			return 3, nil
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/surge/activate", `{"multiplier":2.0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if !gotActive || gotMultiplier != 2.0 {
		t.Fatalf("SetSurge(%v, %f)", gotActive, gotMultiplier)
	}

	var resp surgeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Surge || resp.ShiftsAffected != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSurgeActivateDefaultMultiplier(t *testing.T) {
	var gotMultiplier float64
	st := &fakeShiftStore{
		setSurge: func(_ context.Context, _ bool, multiplier float64) (int64, error) {
			gotMultiplier = multiplier
			return 0, nil
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/surge/activate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if gotMultiplier != 1.5 {
		t.Fatalf("default multiplier %f, want 1.5", gotMultiplier)
	}
}

func TestSurgeActivateRejectsLowMultiplier(t *testing.T) {
	h := NewHandler(&fakeShiftStore{})

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/surge/activate", `{"multiplier":0.5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestSurgeDeactivate(t *testing.T) {
	st := &fakeShiftStore{
		setSurge: func(_ context.Context, active bool, _ float64) (int64, error) {
			if active {
				t.Fatalf("deactivate must pass active=false")
			}
			return 2, nil
		},
	}
	h := NewHandler(st)

	rec := doRequest(t, h.Routes(), http.MethodPost, "/api/surge/deactivate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
}

func TestErrorEnvelopeCarriesRequestID(t *testing.T) {
	st := &fakeShiftStore{
		getShift: func(context.Context, string) (models.Shift, error) {
			return models.Shift{}, store.ErrShiftNotFound
		},
	}
	h := NewHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/shifts/"+testShiftID, nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.RequestID != "req-42" {
		t.Fatalf("request id %q, want req-42", resp.RequestID)
	}
}
