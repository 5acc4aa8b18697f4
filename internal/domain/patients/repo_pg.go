package patients

import (
	"context"
	"errors"
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

// ErrIINTaken is returned when another patient already carries the IIN.
var ErrIINTaken = errors.New("patient with this iin already exists")

const patientCols = `id, iin, first_name, last_name, middle_name, maiden_name, date_of_birth,
	gender, attachment_data, relatives, addresses, contact_info, profile_status,
	created_at, changed_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.IIN, &p.FirstName, &p.LastName, &p.MiddleName, &p.MaidenName, &p.DateOfBirth,
		&p.Gender, &p.AttachmentData, &p.Relatives, &p.Addresses, &p.ContactInfo, &p.ProfileStatus,
		&p.CreatedAt, &p.ChangedAt)
	return &p, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.Gender == "" {
		p.Gender = GenderNotSpecified
	}
	if p.ProfileStatus == "" {
		p.ProfileStatus = ProfileActive
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, iin, first_name, last_name, middle_name, maiden_name, date_of_birth,
			gender, attachment_data, relatives, addresses, contact_info, profile_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, changed_at`,
		p.ID, p.IIN, p.FirstName, p.LastName, p.MiddleName, p.MaidenName, p.DateOfBirth,
		p.Gender, p.AttachmentData, p.Relatives, p.Addresses, p.ContactInfo, p.ProfileStatus).
		Scan(&p.CreatedAt, &p.ChangedAt)
	if isUniqueViolation(err) {
		return ErrIINTaken
	}
	return err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET iin=$2, first_name=$3, last_name=$4, middle_name=$5, maiden_name=$6,
			date_of_birth=$7, gender=$8, attachment_data=$9, relatives=$10, addresses=$11,
			contact_info=$12, profile_status=$13, changed_at=NOW()
		WHERE id = $1`,
		p.ID, p.IIN, p.FirstName, p.LastName, p.MiddleName, p.MaidenName,
		p.DateOfBirth, p.Gender, p.AttachmentData, p.Relatives, p.Addresses,
		p.ContactInfo, p.ProfileStatus)
	if isUniqueViolation(err) {
		return ErrIINTaken
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByIIN(ctx context.Context, iin string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE iin = $1`, iin))
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*Patient{}, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*Patient, len(ids))
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patients WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patients WHERE 1=1`
	var args []interface{}
	idx := 1

	if filter.IIN != "" {
		cond := fmt.Sprintf(` AND iin = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, filter.IIN)
		idx++
	}
	if filter.FullName != "" {
		cond := fmt.Sprintf(` AND (last_name || ' ' || first_name || ' ' || COALESCE(middle_name, '')) ILIKE $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, "%"+filter.FullName+"%")
		idx++
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

	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
