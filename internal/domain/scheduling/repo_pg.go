package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinreg/clinreg/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PgScheduleRepository implements ScheduleRepository on PostgreSQL.
type PgScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewPgScheduleRepository(pool *pgxpool.Pool) *PgScheduleRepository {
	return &PgScheduleRepository{pool: pool}
}

func (r *PgScheduleRepository) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const scheduleCols = `id, doctor_id, schedule_name, description, is_active,
	appointment_interval, period_start_date, period_end_date, created_at, changed_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.DoctorID, &s.Name, &s.Description, &s.IsActive,
		&s.AppointmentInterval, &s.PeriodStart.Time, &s.PeriodEnd.Time, &s.CreatedAt, &s.ChangedAt)
	if err != nil {
		return nil, err
	}
	s.PeriodStart = NewDate(s.PeriodStart.Time)
	s.PeriodEnd = NewDate(s.PeriodEnd.Time)
	return &s, nil
}

func (r *PgScheduleRepository) Create(ctx context.Context, s *Schedule) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedules (id, doctor_id, schedule_name, description, is_active,
			appointment_interval, period_start_date, period_end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, changed_at`,
		s.ID, s.DoctorID, s.Name, s.Description, s.IsActive,
		s.AppointmentInterval, s.PeriodStart.Time, s.PeriodEnd.Time)
	if err := row.Scan(&s.CreatedAt, &s.ChangedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (r *PgScheduleRepository) Update(ctx context.Context, s *Schedule) error {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE schedules
		SET schedule_name = $2, description = $3, is_active = $4,
			appointment_interval = $5, period_start_date = $6, period_end_date = $7,
			changed_at = now()
		WHERE id = $1
		RETURNING changed_at`,
		s.ID, s.Name, s.Description, s.IsActive,
		s.AppointmentInterval, s.PeriodStart.Time, s.PeriodEnd.Time)
	if err := row.Scan(&s.ChangedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrScheduleNotFound
		}
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (r *PgScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PgScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = $1`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	return s, err
}

func (r *PgScheduleRepository) GetByDayID(ctx context.Context, dayID uuid.UUID) (*Schedule, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT s.id, s.doctor_id, s.schedule_name, s.description, s.is_active,
			s.appointment_interval, s.period_start_date, s.period_end_date,
			s.created_at, s.changed_at
		FROM schedules s
		JOIN schedule_days d ON d.schedule_id = s.id
		WHERE d.id = $1`, dayID)
	s, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	return s, err
}

func (r *PgScheduleRepository) GetByDoctorAndName(ctx context.Context, doctorID uuid.UUID, name string) (*Schedule, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE doctor_id = $1 AND schedule_name = $2`,
		doctorID, name)
	s, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *PgScheduleRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Schedule, error) {
	out := make(map[uuid.UUID]*Schedule, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select schedules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (r *PgScheduleRepository) List(ctx context.Context, filter ScheduleListFilter, limit, offset int) ([]*Schedule, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	idx := 1
	addCond := func(cond string, val any) {
		where += fmt.Sprintf(cond, idx)
		args = append(args, val)
		idx++
	}
	if filter.DoctorID != nil {
		addCond(" AND doctor_id = $%d", *filter.DoctorID)
	}
	if filter.Name != "" {
		addCond(" AND schedule_name ILIKE $%d", "%"+filter.Name+"%")
	}
	if filter.IsActive != nil {
		addCond(" AND is_active = $%d", *filter.IsActive)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM schedules"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	query := `SELECT ` + scheduleCols + ` FROM schedules` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		schedules = append(schedules, s)
	}
	return schedules, total, rows.Err()
}

// PgScheduleDayRepository implements ScheduleDayRepository on PostgreSQL.
type PgScheduleDayRepository struct {
	pool *pgxpool.Pool
}

func NewPgScheduleDayRepository(pool *pgxpool.Pool) *PgScheduleDayRepository {
	return &PgScheduleDayRepository{pool: pool}
}

func (r *PgScheduleDayRepository) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const dayCols = `id, schedule_id, date, day_of_week, is_active,
	work_start_time, work_end_time, break_start_time, break_end_time`

func scanDay(row pgx.Row) (*ScheduleDay, error) {
	var d ScheduleDay
	var workStart, workEnd, breakStart, breakEnd pgtype.Time
	err := row.Scan(&d.ID, &d.ScheduleID, &d.Date.Time, &d.DayOfWeek, &d.IsActive,
		&workStart, &workEnd, &breakStart, &breakEnd)
	if err != nil {
		return nil, err
	}
	d.Date = NewDate(d.Date.Time)
	d.WorkStart = timeOfDayFromPG(workStart)
	d.WorkEnd = timeOfDayFromPG(workEnd)
	d.BreakStart = timeOfDayPtrFromPG(breakStart)
	d.BreakEnd = timeOfDayPtrFromPG(breakEnd)
	return &d, nil
}

func (r *PgScheduleDayRepository) CreateBatch(ctx context.Context, days []*ScheduleDay) error {
	if len(days) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range days {
		batch.Queue(`
			INSERT INTO schedule_days (id, schedule_id, date, day_of_week, is_active,
				work_start_time, work_end_time, break_start_time, break_end_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			d.ID, d.ScheduleID, d.Date.Time, d.DayOfWeek, d.IsActive,
			d.WorkStart.PG(), d.WorkEnd.PG(), pgTimePtr(d.BreakStart), pgTimePtr(d.BreakEnd))
	}
	var br pgx.BatchResults
	if tx := db.TxFromContext(ctx); tx != nil {
		br = tx.SendBatch(ctx, batch)
	} else {
		br = r.pool.SendBatch(ctx, batch)
	}
	defer br.Close()
	for range days {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert schedule day: %w", err)
		}
	}
	return nil
}

func (r *PgScheduleDayRepository) Update(ctx context.Context, d *ScheduleDay) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE schedule_days
		SET is_active = $2, work_start_time = $3, work_end_time = $4,
			break_start_time = $5, break_end_time = $6
		WHERE id = $1`,
		d.ID, d.IsActive, d.WorkStart.PG(), d.WorkEnd.PG(),
		pgTimePtr(d.BreakStart), pgTimePtr(d.BreakEnd))
	if err != nil {
		return fmt.Errorf("update schedule day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDayNotFound
	}
	return nil
}

func (r *PgScheduleDayRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_days WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDayNotFound
	}
	return nil
}

func (r *PgScheduleDayRepository) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleDay, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+dayCols+` FROM schedule_days WHERE id = $1`, id)
	d, err := scanDay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDayNotFound
	}
	return d, err
}

func (r *PgScheduleDayRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ScheduleDay, error) {
	out := make(map[uuid.UUID]*ScheduleDay, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+dayCols+` FROM schedule_days WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select schedule days: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

func (r *PgScheduleDayRepository) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*ScheduleDay, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+dayCols+` FROM schedule_days WHERE schedule_id = $1 ORDER BY date`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("select schedule days: %w", err)
	}
	defer rows.Close()
	var days []*ScheduleDay
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// PgAppointmentRepository implements AppointmentRepository on PostgreSQL.
// A partial unique index over (schedule_day_id, time) for non-cancelled
// rows backs the overlap rule against concurrent writers.
type PgAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPgAppointmentRepository(pool *pgxpool.Pool) *PgAppointmentRepository {
	return &PgAppointmentRepository{pool: pool}
}

func (r *PgAppointmentRepository) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const appointmentCols = `a.id, a.schedule_day_id, a.time, a.patient_id, a.status, a.type,
	a.phone_number, a.address, a.referral_type, a.referral_origin, a.insurance_type,
	a.reason, a.office_number, a.additional_services, a.cancelled_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var t pgtype.Time
	err := row.Scan(&a.ID, &a.ScheduleDayID, &t, &a.PatientID, &a.Status, &a.Type,
		&a.PhoneNumber, &a.Address, &a.ReferralType, &a.ReferralOrigin, &a.InsuranceType,
		&a.Reason, &a.OfficeNumber, &a.AdditionalServices, &a.CancelledAt)
	if err != nil {
		return nil, err
	}
	a.Time = timeOfDayFromPG(t)
	return &a, nil
}

func (r *PgAppointmentRepository) Create(ctx context.Context, a *Appointment) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (schedule_day_id, time, patient_id, status, type,
			phone_number, address, referral_type, referral_origin, insurance_type,
			reason, office_number, additional_services, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		a.ScheduleDayID, a.Time.PG(), a.PatientID, a.Status, a.Type,
		a.PhoneNumber, a.Address, a.ReferralType, a.ReferralOrigin, a.InsuranceType,
		a.Reason, a.OfficeNumber, a.AdditionalServices, a.CancelledAt)
	if err := row.Scan(&a.ID); err != nil {
		if isUniqueViolation(err) {
			return ErrOverlapping
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgAppointmentRepository) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET time = $2, patient_id = $3, status = $4, type = $5, phone_number = $6,
			address = $7, referral_type = $8, referral_origin = $9, insurance_type = $10,
			reason = $11, office_number = $12, additional_services = $13, cancelled_at = $14
		WHERE id = $1`,
		a.ID, a.Time.PG(), a.PatientID, a.Status, a.Type, a.PhoneNumber,
		a.Address, a.ReferralType, a.ReferralOrigin, a.InsuranceType,
		a.Reason, a.OfficeNumber, a.AdditionalServices, a.CancelledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOverlapping
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgAppointmentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgAppointmentRepository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments a WHERE a.id = $1`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

func (r *PgAppointmentRepository) ListByDay(ctx context.Context, dayID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments a WHERE a.schedule_day_id = $1 ORDER BY a.time`, dayID)
	if err != nil {
		return nil, fmt.Errorf("select appointments: %w", err)
	}
	defer rows.Close()
	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (r *PgAppointmentRepository) List(ctx context.Context, filter AppointmentListFilter, limit, offset int) ([]*Appointment, int, error) {
	from := ` FROM appointments a
		JOIN schedule_days d ON d.id = a.schedule_day_id
		JOIN schedules s ON s.id = d.schedule_id`
	where := " WHERE 1=1"
	args := []any{}
	idx := 1
	addCond := func(cond string, val any) {
		where += fmt.Sprintf(cond, idx)
		args = append(args, val)
		idx++
	}
	if filter.ScheduleDayID != nil {
		addCond(" AND a.schedule_day_id = $%d", *filter.ScheduleDayID)
	}
	if filter.DoctorID != nil {
		addCond(" AND s.doctor_id = $%d", *filter.DoctorID)
	}
	if filter.PatientID != nil {
		addCond(" AND a.patient_id = $%d", *filter.PatientID)
	}
	if filter.Status != "" {
		addCond(" AND a.status = $%d", filter.Status)
	}
	if filter.DateFrom != nil {
		addCond(" AND d.date >= $%d", DateOnly(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		addCond(" AND d.date <= $%d", DateOnly(*filter.DateTo))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*)"+from+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + appointmentCols + from + where +
		fmt.Sprintf(" ORDER BY d.date, a.time LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}
