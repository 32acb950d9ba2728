package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// blockingStatuses is inlined in queries that must skip freed intervals.
const blockingStatusFilter = `status NOT IN ('cancelled', 'no_show')`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound("patient not found")
		}
		return nil, err
	}
	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound("practitioner not found")
		}
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var durationMinutes int

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.StartTime,
		&durationMinutes,
		&a.Reason,
		&a.Notes,
		&a.Channel,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound("appointment not found")
		}
		return nil, err
	}

	a.Duration = time.Duration(durationMinutes) * time.Minute
	return &a, nil
}

const appointmentColumns = `id, patient_id, practitioner_id, start_time, duration_minutes, reason, notes, channel, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) GetCalendar(ctx context.Context, practitionerID uuid.UUID) (*Calendar, error) {
	var (
		cal        Calendar
		windows    []byte
		exceptions []byte
	)

	err := r.pool.QueryRow(ctx, `
		SELECT practitioner_id, timezone, windows, exceptions, vacation, version, created_at, updated_at
		FROM calendars
		WHERE practitioner_id = $1
	`, practitionerID).Scan(
		&cal.PractitionerID,
		&cal.Timezone,
		&windows,
		&exceptions,
		&cal.Vacation,
		&cal.Version,
		&cal.CreatedAt,
		&cal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound("calendar not found",
				"practitioner_id", practitionerID.String())
		}
		return nil, err
	}

	if err := json.Unmarshal(windows, &cal.Windows); err != nil {
		return nil, fmt.Errorf("decode calendar windows: %w", err)
	}
	if err := json.Unmarshal(exceptions, &cal.Exceptions); err != nil {
		return nil, fmt.Errorf("decode calendar exceptions: %w", err)
	}

	return &cal, nil
}

func (r *PgRepository) CreateCalendar(ctx context.Context, cal *Calendar) error {
	windows, err := json.Marshal(cal.Windows)
	if err != nil {
		return fmt.Errorf("encode calendar windows: %w", err)
	}
	exceptions, err := json.Marshal(cal.Exceptions)
	if err != nil {
		return fmt.Errorf("encode calendar exceptions: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO calendars (practitioner_id, timezone, windows, exceptions, vacation, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, now(), now())
		ON CONFLICT (practitioner_id) DO NOTHING
		RETURNING version, created_at, updated_at
	`, cal.PractitionerID, cal.Timezone, windows, exceptions, cal.Vacation).Scan(
		&cal.Version, &cal.CreatedAt, &cal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict("calendar already exists",
				"practitioner_id", cal.PractitionerID.String())
		}
		return fmt.Errorf("insert calendar: %w", err)
	}

	return nil
}

func (r *PgRepository) UpdateCalendar(ctx context.Context, cal *Calendar, fromVersion int64) error {
	windows, err := json.Marshal(cal.Windows)
	if err != nil {
		return fmt.Errorf("encode calendar windows: %w", err)
	}
	exceptions, err := json.Marshal(cal.Exceptions)
	if err != nil {
		return fmt.Errorf("encode calendar exceptions: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		UPDATE calendars
		SET windows = $2,
		    exceptions = $3,
		    vacation = $4,
		    version = version + 1,
		    updated_at = now()
		WHERE practitioner_id = $1
		  AND version = $5
		RETURNING version, updated_at
	`, cal.PractitionerID, windows, exceptions, cal.Vacation, fromVersion).Scan(
		&cal.Version, &cal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a lost version race from a missing row.
			var exists bool
			if chkErr := r.pool.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM calendars WHERE practitioner_id = $1)
			`, cal.PractitionerID).Scan(&exists); chkErr != nil {
				return chkErr
			}
			if exists {
				return ErrConflict("calendar version mismatch",
					"practitioner_id", cal.PractitionerID.String())
			}
			return ErrNotFound("calendar not found",
				"practitioner_id", cal.PractitionerID.String())
		}
		return fmt.Errorf("update calendar: %w", err)
	}

	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListBlockingBetween(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND `+blockingStatusFilter+`
		  AND start_time < $3
		  AND $2 < start_time + make_interval(mins => duration_minutes)
		ORDER BY start_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

// CreateAppointmentIfFree is the conditional write enforcing the non-overlap
// invariant at the store: the insert only happens when no blocking
// appointment overlaps the half-open interval.
func (r *PgRepository) CreateAppointmentIfFree(ctx context.Context, appt *Appointment) error {
	end := appt.End()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE practitioner_id = $3
			  AND `+blockingStatusFilter+`
			  AND start_time < $10
			  AND $4 < start_time + make_interval(mins => duration_minutes)
		)
		RETURNING created_at, updated_at
	`,
		appt.ID,
		appt.PatientID,
		appt.PractitionerID,
		appt.StartTime,
		int(appt.Duration/time.Minute),
		appt.Reason,
		appt.Notes,
		appt.Channel,
		appt.Status,
		end,
	)

	if err := row.Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict("interval overlaps an existing appointment",
				"practitioner_id", appt.PractitionerID.String())
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	return nil
}

// UpdateAppointmentStatus only writes when the current status matches,
// serializing transitions per appointment id.
func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	appt, err := scanAppointment(row)
	if err != nil {
		if IsKind(err, KindNotFound) {
			var exists bool
			if chkErr := r.pool.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)
			`, id).Scan(&exists); chkErr != nil {
				return nil, chkErr
			}
			if exists {
				return nil, ErrConflict("appointment status changed concurrently",
					"appointment_id", id.String())
			}
			return nil, ErrNotFound("appointment not found", "appointment_id", id.String())
		}
		return nil, err
	}

	return appt, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []any

	add := func(clause string, val any) {
		args = append(args, val)
		query += fmt.Sprintf(clause, len(args))
	}

	if f.PractitionerID != uuid.Nil {
		add(" AND practitioner_id = $%d", f.PractitionerID)
	}
	if f.PatientID != uuid.Nil {
		add(" AND patient_id = $%d", f.PatientID)
	}
	if !f.From.IsZero() {
		add(" AND start_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add(" AND start_time < $%d", f.To)
	}
	if f.Status != "" {
		add(" AND status = $%d", f.Status)
	}
	if f.Channel != "" {
		add(" AND channel = $%d", f.Channel)
	}

	query += " ORDER BY start_time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) FindOverdueScheduled(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND start_time + make_interval(mins => duration_minutes) < $1
		ORDER BY start_time
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
