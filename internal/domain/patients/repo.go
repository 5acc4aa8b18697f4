package patients

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	IIN      string
	FullName string
}

// Repository provides access to patient records.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByIIN(ctx context.Context, iin string) (*Patient, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error)
}
