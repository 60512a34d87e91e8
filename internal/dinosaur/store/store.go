package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
)

var (
	ErrNotFound            = errors.New("dinosaur not found")
	ErrEmptyPatch          = errors.New("patch has no fields")
	ErrUnsupportedOperator = errors.New("unsupported query operator")
)

// OpEqual is the only comparison QueryByField accepts.
const OpEqual = "=="

// Store is the document store contract used by the API router and the demo.
// Every call is one round trip to the backing database.
type Store interface {
	// List returns every record of the collection, order unconstrained.
	List(ctx context.Context) ([]*dinosaur.Dinosaur, error)
	// Create assigns ID and CreatedAt on d, persists it and returns the new id.
	Create(ctx context.Context, d *dinosaur.Dinosaur) (string, error)
	// Update applies p to the record; ErrNotFound when the id is unknown.
	Update(ctx context.Context, id string, p dinosaur.Patch) error
	// Delete removes the record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	QueryByField(ctx context.Context, field, op string, value interface{}) ([]*dinosaur.Dinosaur, error)
}

// NewID returns a fresh 20 character document id.
func NewID() string {
	return xid.New().String()
}

func checkOperator(op string) error {
	if op != OpEqual {
		return fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	return nil
}
