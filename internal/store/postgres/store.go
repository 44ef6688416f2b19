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
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool       *pgxpool.Pool
	defaultTTL time.Duration
}

type Options struct {
	// DefaultEmergencyTTL is applied when a create request carries no expiry.
	DefaultEmergencyTTL time.Duration
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	ttl := options.DefaultEmergencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{pool: pool, defaultTTL: ttl}
}

const shiftColumns = `
	shift_id, hospital_id, title, description, department, shift_date, start_time, end_time,
	payment_rate, payment_type, bonus_amount, urgency_level, status, surge, surge_multiplier,
	assigned_nurse_id, assigned_at, completed_at, cancelled_at, cancellation_reason,
	hospital_notes, created_at`

func (s *Store) CreateShift(ctx context.Context, input store.CreateShiftInput) (models.Shift, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	shift := models.Shift{
		ShiftID:         uuid.NewString(),
		HospitalID:      input.HospitalID,
		Title:           input.Title,
		Description:     input.Description,
		Department:      input.Department,
		Date:            input.Date,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		PaymentRate:     input.PaymentRate,
		PaymentType:     input.PaymentType,
		BonusAmount:     input.BonusAmount,
		UrgencyLevel:    input.UrgencyLevel,
		Status:          models.StatusOpen,
		SurgeMultiplier: 1.0,
		HospitalNotes:   input.HospitalNotes,
		CreatedAt:       createdAt,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO shifts (
			shift_id, hospital_id, title, description, department, shift_date, start_time, end_time,
			payment_rate, payment_type, bonus_amount, urgency_level, status, surge, surge_multiplier,
			cancellation_reason, hospital_notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,FALSE,$14,'',$15,$16)
	`, shift.ShiftID, shift.HospitalID, shift.Title, shift.Description, shift.Department,
		shift.Date, shift.StartTime, shift.EndTime, shift.PaymentRate, shift.PaymentType,
		shift.BonusAmount, shift.UrgencyLevel, shift.Status, shift.SurgeMultiplier,
		shift.HospitalNotes, shift.CreatedAt)
	if err != nil {
		return models.Shift{}, err
	}

	return shift, nil
}

func (s *Store) GetShift(ctx context.Context, shiftID string) (models.Shift, error) {
	shift, err := scanShift(s.pool.QueryRow(ctx, `SELECT`+shiftColumns+` FROM shifts WHERE shift_id = $1`, shiftID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Shift{}, store.ErrShiftNotFound
		}
		return models.Shift{}, err
	}

	applications, err := listApplications(ctx, s.pool, shiftID)
	if err != nil {
		return models.Shift{}, err
	}
	shift.Applications = applications
	return shift, nil
}

// ListOpenShifts returns open shifts, surge listings first, newest first
// within each group.
func (s *Store) ListOpenShifts(ctx context.Context) ([]models.Shift, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+shiftColumns+`
		FROM shifts
		WHERE status = $1
		ORDER BY surge DESC, created_at DESC
	`, models.StatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []models.Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

// ListQueue returns the nurses waiting on a shift in FIFO order. The current
// assignee's application is retained for reassignment but is no longer
// waiting, so it is excluded from the view.
func (s *Store) ListQueue(ctx context.Context, shiftID string) ([]models.Application, error) {
	var assignedNurse sql.NullString
	if err := s.pool.QueryRow(ctx, `SELECT assigned_nurse_id FROM shifts WHERE shift_id = $1`, shiftID).Scan(&assignedNurse); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrShiftNotFound
		}
		return nil, err
	}

	applications, err := listApplications(ctx, s.pool, shiftID)
	if err != nil {
		return nil, err
	}
	if !assignedNurse.Valid {
		return applications, nil
	}
	queue := applications[:0]
	for _, application := range applications {
		if application.NurseID != assignedNurse.String {
			queue = append(queue, application)
		}
	}
	return queue, nil
}

func (s *Store) Apply(ctx context.Context, input store.ApplyInput) (models.Shift, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Shift{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, err := lockShift(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}
	if !store.ValidShiftTransition("apply", status) {
		err = store.ErrInvalidState
		return models.Shift{}, err
	}

	appliedAt := input.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now().UTC()
	}

	// Duplicate apply is an idempotent no-op; the primary key absorbs it.
	_, err = tx.Exec(ctx, `
		INSERT INTO shift_applications (shift_id, nurse_id, applied_at, message)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shift_id, nurse_id) DO NOTHING
	`, input.ShiftID, input.NurseID, appliedAt, input.Message)
	if err != nil {
		return models.Shift{}, err
	}

	shift, err := loadShiftTx(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Shift{}, err
	}
	return shift, nil
}

func (s *Store) AssignNext(ctx context.Context, input store.AssignInput) (models.Shift, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Shift{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, err := lockShift(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}
	if !store.ValidShiftTransition("assign", status) {
		err = store.ErrInvalidState
		return models.Shift{}, err
	}

	nurseID := input.NurseID
	if nurseID != "" {
		var inQueue bool
		if err = tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM shift_applications WHERE shift_id = $1 AND nurse_id = $2)
		`, input.ShiftID, nurseID).Scan(&inQueue); err != nil {
			return models.Shift{}, err
		}
		if !inQueue {
			err = store.ErrNotInQueue
			return models.Shift{}, err
		}
	} else {
		nurseID, err = queueHead(ctx, tx, input.ShiftID)
		if err != nil {
			return models.Shift{}, err
		}
		if nurseID == "" {
			err = store.ErrEmptyQueue
			return models.Shift{}, err
		}
	}

	assignedAt := input.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}

	// Conditional update: the status predicate is the compare-and-set that
	// keeps two concurrent assigns from both succeeding.
	tag, err := tx.Exec(ctx, `
		UPDATE shifts
		SET status = $1, assigned_nurse_id = $2, assigned_at = $3
		WHERE shift_id = $4 AND status = $5
	`, models.StatusAssigned, nurseID, assignedAt, input.ShiftID, models.StatusOpen)
	if err != nil {
		return models.Shift{}, err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrInvalidState
		return models.Shift{}, err
	}

	shift, err := loadShiftTx(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Shift{}, err
	}
	return shift, nil
}

// CancelAssignment drops the current assignee from the queue and promotes
// the remaining FIFO head, or reopens the shift when the queue drains.
// The cancelled nurse is not re-queued.
func (s *Store) CancelAssignment(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Shift{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, err := lockShift(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}
	if !store.ValidShiftTransition("cancel_assignment", status) {
		err = store.ErrInvalidState
		return models.Shift{}, err
	}

	var assignedNurse sql.NullString
	if err = tx.QueryRow(ctx, `SELECT assigned_nurse_id FROM shifts WHERE shift_id = $1`, input.ShiftID).Scan(&assignedNurse); err != nil {
		return models.Shift{}, err
	}
	if assignedNurse.Valid {
		if _, err = tx.Exec(ctx, `
			DELETE FROM shift_applications WHERE shift_id = $1 AND nurse_id = $2
		`, input.ShiftID, assignedNurse.String); err != nil {
			return models.Shift{}, err
		}
	}

	nextNurse, err := queueHead(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	if nextNurse != "" {
		_, err = tx.Exec(ctx, `
			UPDATE shifts SET assigned_nurse_id = $1, assigned_at = $2 WHERE shift_id = $3
		`, nextNurse, occurredAt, input.ShiftID)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE shifts SET status = $1, assigned_nurse_id = NULL, assigned_at = NULL WHERE shift_id = $2
		`, models.StatusOpen, input.ShiftID)
	}
	if err != nil {
		return models.Shift{}, err
	}

	shift, err := loadShiftTx(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Shift{}, err
	}
	return shift, nil
}

func (s *Store) StartShift(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	return s.applyAction(ctx, input, "start", `UPDATE shifts SET status = $1 WHERE shift_id = $2`)
}

func (s *Store) CompleteShift(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	return s.applyAction(ctx, input, "complete", `UPDATE shifts SET status = $1, completed_at = now() WHERE shift_id = $2`)
}

func (s *Store) CancelShift(ctx context.Context, input store.ShiftActionInput) (models.Shift, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Shift{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, err := lockShift(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}
	if !store.ValidShiftTransition("cancel", status) {
		err = store.ErrInvalidState
		return models.Shift{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	if _, err = tx.Exec(ctx, `
		UPDATE shifts
		SET status = $1, assigned_nurse_id = NULL, assigned_at = NULL,
			cancelled_at = $2, cancellation_reason = $3
		WHERE shift_id = $4
	`, models.StatusCancelled, occurredAt, input.Reason, input.ShiftID); err != nil {
		return models.Shift{}, err
	}

	shift, err := loadShiftTx(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Shift{}, err
	}
	return shift, nil
}

func (s *Store) applyAction(ctx context.Context, input store.ShiftActionInput, action, updateSQL string) (models.Shift, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Shift{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	status, err := lockShift(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}
	if !store.ValidShiftTransition(action, status) {
		err = store.ErrInvalidState
		return models.Shift{}, err
	}

	next, _ := store.StatusAfter(action)
	if _, err = tx.Exec(ctx, updateSQL, next, input.ShiftID); err != nil {
		return models.Shift{}, err
	}

	shift, err := loadShiftTx(ctx, tx, input.ShiftID)
	if err != nil {
		return models.Shift{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Shift{}, err
	}
	return shift, nil
}

// SetSurge flips the surge flag across every open shift and returns the
// number of listings touched. Activation also applies the multiplier.
func (s *Store) SetSurge(ctx context.Context, active bool, multiplier float64) (int64, error) {
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	if !active {
		multiplier = 1.0
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE shifts SET surge = $1, surge_multiplier = $2 WHERE status = $3
	`, active, multiplier, models.StatusOpen)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, role, expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > now()
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.UserID, &session.Role, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	return session, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listApplications(ctx context.Context, q queryer, shiftID string) ([]models.Application, error) {
	rows, err := q.Query(ctx, `
		SELECT nurse_id, applied_at, message
		FROM shift_applications
		WHERE shift_id = $1
		ORDER BY applied_at ASC, seq ASC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applications []models.Application
	for rows.Next() {
		var application models.Application
		if err := rows.Scan(&application.NurseID, &application.AppliedAt, &application.Message); err != nil {
			return nil, err
		}
		applications = append(applications, application)
	}
	return applications, rows.Err()
}

func lockShift(ctx context.Context, tx pgx.Tx, shiftID string) (string, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM shifts WHERE shift_id = $1 FOR UPDATE`, shiftID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrShiftNotFound
		}
		return "", err
	}
	return status, nil
}

func queueHead(ctx context.Context, tx pgx.Tx, shiftID string) (string, error) {
	var nurseID string
	err := tx.QueryRow(ctx, `
		SELECT nurse_id
		FROM shift_applications
		WHERE shift_id = $1
		ORDER BY applied_at ASC, seq ASC
		LIMIT 1
	`, shiftID).Scan(&nurseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return nurseID, nil
}

func loadShiftTx(ctx context.Context, tx pgx.Tx, shiftID string) (models.Shift, error) {
	shift, err := scanShift(tx.QueryRow(ctx, `SELECT`+shiftColumns+` FROM shifts WHERE shift_id = $1`, shiftID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Shift{}, store.ErrShiftNotFound
		}
		return models.Shift{}, err
	}

	applications, err := listApplications(ctx, tx, shiftID)
	if err != nil {
		return models.Shift{}, err
	}
	shift.Applications = applications
	return shift, nil
}

func scanShift(row pgx.Row) (models.Shift, error) {
	var shift models.Shift
	var assignedNurse sql.NullString
	var assignedAt, completedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&shift.ShiftID, &shift.HospitalID, &shift.Title, &shift.Description, &shift.Department,
		&shift.Date, &shift.StartTime, &shift.EndTime, &shift.PaymentRate, &shift.PaymentType,
		&shift.BonusAmount, &shift.UrgencyLevel, &shift.Status, &shift.Surge, &shift.SurgeMultiplier,
		&assignedNurse, &assignedAt, &completedAt, &cancelledAt, &shift.CancellationReason,
		&shift.HospitalNotes, &shift.CreatedAt,
	)
	if err != nil {
		return models.Shift{}, err
	}
	shift.AssignedNurseID = nullStringPtr(assignedNurse)
	shift.AssignedAt = nullTimePtr(assignedAt)
	shift.CompletedAt = nullTimePtr(completedAt)
	shift.CancelledAt = nullTimePtr(cancelledAt)
	return shift, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	out := value.String
	return &out
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	out := value.Time
	return &out
}
