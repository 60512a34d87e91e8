package store

import (
	"context"
	"time"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
	"github.com/denosaur/dinosaurs/pkg/logger"
	"github.com/denosaur/dinosaurs/pkg/metrics"
)

// Instrument wraps s so every call is counted and logged at debug level.
func Instrument(s Store) Store {
	return &instrumented{next: s}
}

type instrumented struct {
	next Store
}

func observe(op string, start time.Time, err error) {
	metrics.ObserveStore(op, err)
	if err != nil {
		logger.Debugf("store %s failed after %s: %v", op, time.Since(start), err)
		return
	}
	logger.Debugf("store %s ok in %s", op, time.Since(start))
}

func (i *instrumented) List(ctx context.Context) ([]*dinosaur.Dinosaur, error) {
	start := time.Now()
	out, err := i.next.List(ctx)
	observe("list", start, err)
	return out, err
}

func (i *instrumented) Create(ctx context.Context, d *dinosaur.Dinosaur) (string, error) {
	start := time.Now()
	id, err := i.next.Create(ctx, d)
	observe("create", start, err)
	return id, err
}

func (i *instrumented) Update(ctx context.Context, id string, p dinosaur.Patch) error {
	start := time.Now()
	err := i.next.Update(ctx, id, p)
	observe("update", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := i.next.Delete(ctx, id)
	observe("delete", start, err)
	return err
}

func (i *instrumented) QueryByField(ctx context.Context, field, op string, value interface{}) ([]*dinosaur.Dinosaur, error) {
	start := time.Now()
	out, err := i.next.QueryByField(ctx, field, op, value)
	observe("query", start, err)
	return out, err
}
