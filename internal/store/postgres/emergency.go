package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nishaa-11/Nurse/internal/models"
	"github.com/nishaa-11/Nurse/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const emergencyColumns = `
	request_id, hospital_id, situation, department, urgency_level, latitude, longitude,
	radius_meters, nurses_needed, emergency_rate, bonus_amount, contact_name, contact_phone,
	status, fulfilled_at, cancelled_at, cancellation_reason, expires_at, created_at`

func (s *Store) CreateEmergency(ctx context.Context, input store.CreateEmergencyInput) (models.EmergencyRequest, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	expiresAt := input.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(s.defaultTTL)
	}
	nursesNeeded := input.NursesNeeded
	if nursesNeeded < 1 {
		nursesNeeded = 1
	}

	request := models.EmergencyRequest{
		RequestID:     uuid.NewString(),
		HospitalID:    input.HospitalID,
		Situation:     input.Situation,
		Department:    input.Department,
		UrgencyLevel:  input.UrgencyLevel,
		Latitude:      input.Latitude,
		Longitude:     input.Longitude,
		RadiusMeters:  input.RadiusMeters,
		NursesNeeded:  nursesNeeded,
		EmergencyRate: input.EmergencyRate,
		BonusAmount:   input.BonusAmount,
		ContactName:   input.ContactName,
		ContactPhone:  input.ContactPhone,
		Status:        models.EmergencyActive,
		ExpiresAt:     expiresAt,
		CreatedAt:     createdAt,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO emergency_requests (
			request_id, hospital_id, situation, department, urgency_level, latitude, longitude,
			radius_meters, nurses_needed, emergency_rate, bonus_amount, contact_name, contact_phone,
			status, cancellation_reason, expires_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,'',$15,$16)
	`, request.RequestID, request.HospitalID, request.Situation, request.Department,
		request.UrgencyLevel, request.Latitude, request.Longitude, request.RadiusMeters,
		request.NursesNeeded, request.EmergencyRate, request.BonusAmount, request.ContactName,
		request.ContactPhone, request.Status, request.ExpiresAt, request.CreatedAt)
	if err != nil {
		return models.EmergencyRequest{}, err
	}

	return request, nil
}

func (s *Store) GetEmergency(ctx context.Context, requestID string) (models.EmergencyRequest, error) {
	request, err := s.expireAndLoad(ctx, requestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	return request, nil
}

func (s *Store) ListEmergencies(ctx context.Context) ([]models.EmergencyRequest, error) {
	// Lazy expiry: flip anything past its deadline before reading.
	if _, err := s.ExpireEmergencies(ctx, time.Now().UTC()); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT`+emergencyColumns+`
		FROM emergency_requests
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.EmergencyRequest
	for rows.Next() {
		request, err := scanEmergency(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range requests {
		if err := s.loadResponses(ctx, &requests[i]); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

func (s *Store) RecordNotified(ctx context.Context, requestID string, entries []store.NotifiedInput) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, entry := range entries {
		if _, err = tx.Exec(ctx, `
			INSERT INTO emergency_notified (request_id, nurse_id, notified_at, distance_meters, responded)
			VALUES ($1, $2, $3, $4, FALSE)
			ON CONFLICT (request_id, nurse_id) DO NOTHING
		`, requestID, entry.NurseID, entry.NotifiedAt, entry.DistanceMeters); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// AcceptEmergency records a first-come-first-served acceptance. The request
// row lock serializes racing accepts; capacity is checked under the lock so
// at most nursesNeeded acceptances ever exist.
func (s *Store) AcceptEmergency(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, nursesNeeded, expiresAt, err := lockEmergency(ctx, tx, input.RequestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	if status == models.EmergencyActive && !occurredAt.Before(expiresAt) {
		// The expiry flip must survive the failed accept, so commit it
		// before reporting the conflict.
		if _, err = tx.Exec(ctx, `
			UPDATE emergency_requests SET status = $1 WHERE request_id = $2
		`, models.EmergencyExpired, input.RequestID); err != nil {
			return models.EmergencyRequest{}, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.EmergencyRequest{}, err
		}
		err = store.ErrInvalidState
		return models.EmergencyRequest{}, err
	}
	var alreadyAccepted bool
	if err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM emergency_accepted WHERE request_id = $1 AND nurse_id = $2)
	`, input.RequestID, input.NurseID).Scan(&alreadyAccepted); err != nil {
		return models.EmergencyRequest{}, err
	}

	switch {
	case status == models.EmergencyFulfilled && alreadyAccepted:
		// Retry of an acceptance that filled the request stays a no-op.
	case status == models.EmergencyFulfilled:
		err = store.ErrFull
		return models.EmergencyRequest{}, err
	case !store.ValidEmergencyTransition("accept", status):
		err = store.ErrInvalidState
		return models.EmergencyRequest{}, err
	}

	if !alreadyAccepted {
		var acceptedCount int
		if err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM emergency_accepted WHERE request_id = $1
		`, input.RequestID).Scan(&acceptedCount); err != nil {
			return models.EmergencyRequest{}, err
		}
		if acceptedCount >= nursesNeeded {
			err = store.ErrFull
			return models.EmergencyRequest{}, err
		}

		if _, err = tx.Exec(ctx, `
			INSERT INTO emergency_accepted (request_id, nurse_id, accepted_at, status)
			VALUES ($1, $2, $3, $4)
		`, input.RequestID, input.NurseID, occurredAt, models.AcceptStatusAccepted); err != nil {
			return models.EmergencyRequest{}, err
		}

		if _, err = tx.Exec(ctx, `
			UPDATE emergency_notified
			SET responded = TRUE, response = $1, responded_at = $2
			WHERE request_id = $3 AND nurse_id = $4
		`, models.ResponseAccepted, occurredAt, input.RequestID, input.NurseID); err != nil {
			return models.EmergencyRequest{}, err
		}

		if acceptedCount+1 >= nursesNeeded {
			if _, err = tx.Exec(ctx, `
				UPDATE emergency_requests SET status = $1, fulfilled_at = $2 WHERE request_id = $3
			`, models.EmergencyFulfilled, occurredAt, input.RequestID); err != nil {
				return models.EmergencyRequest{}, err
			}
		}
	}

	request, err := loadEmergencyTx(ctx, tx, input.RequestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.EmergencyRequest{}, err
	}
	return request, nil
}

func (s *Store) DeclineEmergency(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, _, _, err := lockEmergency(ctx, tx, input.RequestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	if !store.ValidEmergencyTransition("decline", status) {
		err = store.ErrInvalidState
		return models.EmergencyRequest{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	tag, err := tx.Exec(ctx, `
		UPDATE emergency_notified
		SET responded = TRUE, response = $1, responded_at = $2
		WHERE request_id = $3 AND nurse_id = $4
	`, models.ResponseDeclined, occurredAt, input.RequestID, input.NurseID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrNotNotified
		return models.EmergencyRequest{}, err
	}

	request, err := loadEmergencyTx(ctx, tx, input.RequestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.EmergencyRequest{}, err
	}
	return request, nil
}

func (s *Store) CancelEmergency(ctx context.Context, input store.EmergencyActionInput) (models.EmergencyRequest, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, _, _, err := lockEmergency(ctx, tx, input.RequestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	if !store.ValidEmergencyTransition("cancel", status) {
		err = store.ErrInvalidState
		return models.EmergencyRequest{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	if _, err = tx.Exec(ctx, `
		UPDATE emergency_requests
		SET status = $1, cancelled_at = $2, cancellation_reason = $3
		WHERE request_id = $4
	`, models.EmergencyCancelled, occurredAt, input.Reason, input.RequestID); err != nil {
		return models.EmergencyRequest{}, err
	}

	request, err := loadEmergencyTx(ctx, tx, input.RequestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.EmergencyRequest{}, err
	}
	return request, nil
}

// ExpireEmergencies flips every active request past its deadline. Runs both
// lazily before reads and on a periodic sweep.
func (s *Store) ExpireEmergencies(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE emergency_requests
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
	`, models.EmergencyExpired, models.EmergencyActive, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) expireAndLoad(ctx context.Context, requestID string) (models.EmergencyRequest, error) {
	request, err := scanEmergency(s.pool.QueryRow(ctx, `
		SELECT`+emergencyColumns+` FROM emergency_requests WHERE request_id = $1
	`, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EmergencyRequest{}, store.ErrEmergencyNotFound
		}
		return models.EmergencyRequest{}, err
	}

	if request.Status == models.EmergencyActive && !time.Now().UTC().Before(request.ExpiresAt) {
		if _, err := s.pool.Exec(ctx, `
			UPDATE emergency_requests SET status = $1 WHERE request_id = $2 AND status = $3
		`, models.EmergencyExpired, requestID, models.EmergencyActive); err != nil {
			return models.EmergencyRequest{}, err
		}
		request.Status = models.EmergencyExpired
	}

	if err := s.loadResponses(ctx, &request); err != nil {
		return models.EmergencyRequest{}, err
	}
	return request, nil
}

func (s *Store) loadResponses(ctx context.Context, request *models.EmergencyRequest) error {
	rows, err := s.pool.Query(ctx, `
		SELECT nurse_id, notified_at, distance_meters, responded, response, responded_at
		FROM emergency_notified
		WHERE request_id = $1
		ORDER BY notified_at ASC
	`, request.RequestID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var entry models.NotifiedNurse
		var response sql.NullString
		var respondedAt sql.NullTime
		if err := rows.Scan(&entry.NurseID, &entry.NotifiedAt, &entry.DistanceMeters, &entry.Responded, &response, &respondedAt); err != nil {
			return err
		}
		if response.Valid {
			entry.Response = response.String
		}
		entry.RespondedAt = nullTimePtr(respondedAt)
		request.Notified = append(request.Notified, entry)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	accepted, err := s.pool.Query(ctx, `
		SELECT nurse_id, accepted_at, status
		FROM emergency_accepted
		WHERE request_id = $1
		ORDER BY accepted_at ASC
	`, request.RequestID)
	if err != nil {
		return err
	}
	defer accepted.Close()
	for accepted.Next() {
		var entry models.AcceptedNurse
		if err := accepted.Scan(&entry.NurseID, &entry.AcceptedAt, &entry.Status); err != nil {
			return err
		}
		request.Accepted = append(request.Accepted, entry)
	}
	return accepted.Err()
}

func lockEmergency(ctx context.Context, tx pgx.Tx, requestID string) (string, int, time.Time, error) {
	var status string
	var nursesNeeded int
	var expiresAt time.Time
	err := tx.QueryRow(ctx, `
		SELECT status, nurses_needed, expires_at
		FROM emergency_requests
		WHERE request_id = $1
		FOR UPDATE
	`, requestID).Scan(&status, &nursesNeeded, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, time.Time{}, store.ErrEmergencyNotFound
		}
		return "", 0, time.Time{}, err
	}
	return status, nursesNeeded, expiresAt, nil
}

func loadEmergencyTx(ctx context.Context, tx pgx.Tx, requestID string) (models.EmergencyRequest, error) {
	request, err := scanEmergency(tx.QueryRow(ctx, `
		SELECT`+emergencyColumns+` FROM emergency_requests WHERE request_id = $1
	`, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EmergencyRequest{}, store.ErrEmergencyNotFound
		}
		return models.EmergencyRequest{}, err
	}

	rows, err := tx.Query(ctx, `
		SELECT nurse_id, accepted_at, status
		FROM emergency_accepted
		WHERE request_id = $1
		ORDER BY accepted_at ASC
	`, requestID)
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry models.AcceptedNurse
		if err := rows.Scan(&entry.NurseID, &entry.AcceptedAt, &entry.Status); err != nil {
			return models.EmergencyRequest{}, err
		}
		request.Accepted = append(request.Accepted, entry)
	}
	return request, rows.Err()
}

func scanEmergency(row pgx.Row) (models.EmergencyRequest, error) {
	var request models.EmergencyRequest
	var fulfilledAt, cancelledAt sql.NullTime
	err := row.Scan(
		&request.RequestID, &request.HospitalID, &request.Situation, &request.Department,
		&request.UrgencyLevel, &request.Latitude, &request.Longitude, &request.RadiusMeters,
		&request.NursesNeeded, &request.EmergencyRate, &request.BonusAmount, &request.ContactName,
		&request.ContactPhone, &request.Status, &fulfilledAt, &cancelledAt,
		&request.CancellationReason, &request.ExpiresAt, &request.CreatedAt,
	)
	if err != nil {
		return models.EmergencyRequest{}, err
	}
	request.FulfilledAt = nullTimePtr(fulfilledAt)
	request.CancelledAt = nullTimePtr(cancelledAt)
	return request, nil
}
