package port

import (
	"context"

	"petmatch/internal/domain"
)

// AnimalStore reads shelter-animal rows. Each call uses its own scoped
// connection and releases it before returning.
type AnimalStore interface {
	// FetchAll returns every visible row ordered by id.
	FetchAll(ctx context.Context) ([]domain.Animal, error)

	// FetchByID returns one row or domain.ErrAnimalNotFound.
	FetchByID(ctx context.Context, id int64) (domain.Animal, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	Close() error
}
