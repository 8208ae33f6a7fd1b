package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/db"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

// Storage aggregates the collaborator stores: simple data-access
// wrappers with no invariants beyond record existence.
type Storage struct {
	Users interface {
		Create(ctx context.Context, u *User) error
		GetByID(ctx context.Context, id int64) (*User, error)
		GetByEmail(ctx context.Context, email string) (*User, error)
	}
	Products interface {
		Create(ctx context.Context, p *Product) error
		List(ctx context.Context) ([]Product, error)
		GetByID(ctx context.Context, id int64) (*Product, error)
		Update(ctx context.Context, id int64, name, description string, price decimal.Decimal) (*Product, error)
		Delete(ctx context.Context, id int64) error
	}
	Categories interface {
		Create(ctx context.Context, c *Category) error
		List(ctx context.Context) ([]Category, error)
		Update(ctx context.Context, id int64, title, image string) (*Category, error)
		Delete(ctx context.Context, id int64) error
	}
}

func NewStorage(q db.Querier) Storage {
	return Storage{
		Users:      &UsersStore{q},
		Products:   &ProductsStore{q},
		Categories: &CategoriesStore{q},
	}
}
