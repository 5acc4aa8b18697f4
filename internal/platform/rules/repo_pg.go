package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

const ruleCols = `id, rule_data, description, created_at, changed_at`

// rule_data is stored as a single-key object, e.g.
// {"MAX_SCHEDULE_PERIOD": {"value": 90}}.
func (r *repoPG) scanRule(row pgx.Row) (*Rule, error) {
	var ru Rule
	var raw []byte
	err := row.Scan(&ru.ID, &raw, &ru.Description, &ru.CreatedAt, &ru.ChangedAt)
	if err != nil {
		return nil, err
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode rule_data: %w", err)
	}
	for key, data := range wrapped {
		ru.Key = key
		ru.Data = data
		break
	}
	return &ru, nil
}

func wrapData(key string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage{key: data})
}

func (r *repoPG) Create(ctx context.Context, ru *Rule) error {
	raw, err := wrapData(ru.Key, ru.Data)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO platform_rules (rule_data, description)
		VALUES ($1, $2)
		RETURNING id, created_at, changed_at`,
		raw, ru.Description).Scan(&ru.ID, &ru.CreatedAt, &ru.ChangedAt)
}

func (r *repoPG) Update(ctx context.Context, ru *Rule) error {
	raw, err := wrapData(ru.Key, ru.Data)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE platform_rules SET rule_data=$2, description=$3, changed_at=NOW()
		WHERE id = $1`,
		ru.ID, raw, ru.Description)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM platform_rules WHERE id = $1`, id)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Rule, error) {
	return r.scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM platform_rules WHERE id = $1`, id))
}

func (r *repoPG) GetByKey(ctx context.Context, key string) (*Rule, error) {
	ru, err := r.scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM platform_rules WHERE rule_data ? $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ru, err
}

func (r *repoPG) List(ctx context.Context, keyFilter string, limit, offset int) ([]*Rule, int, error) {
	query := `SELECT ` + ruleCols + ` FROM platform_rules WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM platform_rules WHERE 1=1`
	var args []interface{}
	idx := 1

	if keyFilter != "" {
		cond := fmt.Sprintf(` AND rule_data ? $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, keyFilter)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Rule
	for rows.Next() {
		ru, err := r.scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ru)
	}
	return items, total, rows.Err()
}
