package staff

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	FullName       string
	Specialization string
	AreaNumber     int
	OnlyEnabled    bool
}

// Repository provides access to the mirrored doctor records.
type Repository interface {
	Upsert(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Doctor, int, error)
}
