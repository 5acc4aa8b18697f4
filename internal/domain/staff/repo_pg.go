package staff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinreg/clinreg/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doctorCols = `id, first_name, last_name, middle_name, iin, date_of_birth,
	client_roles, enabled, specializations, attachment_data,
	served_patient_types, served_referral_types, served_referral_origins, served_payment_types,
	created_at, changed_at`

func (r *repoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.MiddleName, &d.IIN, &d.DateOfBirth,
		&d.ClientRoles, &d.Enabled, &d.Specializations, &d.AttachmentData,
		&d.ServedPatientTypes, &d.ServedReferralTypes, &d.ServedReferralOrigins, &d.ServedPaymentTypes,
		&d.CreatedAt, &d.ChangedAt)
	return &d, err
}

func (r *repoPG) Upsert(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (id, first_name, last_name, middle_name, full_name, iin, date_of_birth,
			client_roles, enabled, specializations, attachment_data,
			served_patient_types, served_referral_types, served_referral_origins, served_payment_types)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
			middle_name=EXCLUDED.middle_name, full_name=EXCLUDED.full_name,
			iin=EXCLUDED.iin, date_of_birth=EXCLUDED.date_of_birth,
			client_roles=EXCLUDED.client_roles, enabled=EXCLUDED.enabled,
			specializations=EXCLUDED.specializations, attachment_data=EXCLUDED.attachment_data,
			served_patient_types=EXCLUDED.served_patient_types,
			served_referral_types=EXCLUDED.served_referral_types,
			served_referral_origins=EXCLUDED.served_referral_origins,
			served_payment_types=EXCLUDED.served_payment_types,
			changed_at=NOW()`,
		d.ID, d.FirstName, d.LastName, d.MiddleName, d.FullName(), d.IIN, d.DateOfBirth,
		d.ClientRoles, d.Enabled, d.Specializations, d.AttachmentData,
		d.ServedPatientTypes, d.ServedReferralTypes, d.ServedReferralOrigins, d.ServedPaymentTypes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*Doctor{}, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*Doctor, len(ids))
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Doctor, int, error) {
	query := `SELECT ` + doctorCols + ` FROM doctors WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM doctors WHERE 1=1`
	var args []interface{}
	idx := 1

	addCond := func(cond string, arg interface{}) {
		c := fmt.Sprintf(cond, idx)
		query += c
		countQuery += c
		args = append(args, arg)
		idx++
	}

	if filter.FullName != "" {
		addCond(` AND full_name ILIKE $%d`, "%"+filter.FullName+"%")
	}
	if filter.Specialization != "" {
		addCond(` AND specializations @> $%d`, fmt.Sprintf(`[{"name": %q}]`, filter.Specialization))
	}
	if filter.AreaNumber != 0 {
		addCond(` AND (attachment_data->>'area_number')::int = $%d`, filter.AreaNumber)
	}
	if filter.OnlyEnabled {
		query += ` AND enabled`
		countQuery += ` AND enabled`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
