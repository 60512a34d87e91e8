// Package demo runs a scripted create, read, update and delete pass against a store.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
	"github.com/denosaur/dinosaurs/internal/dinosaur/store"
)

const (
	demoName        = "Denosaur"
	demoDescription = "Dinosaurs should be simple."
)

// Authenticator establishes the backend session before the first store call.
type Authenticator interface {
	EnsureAuth(ctx context.Context) error
}

// Result summarizes what the demo did.
type Result struct {
	CreatedID string
	Listed    int
	Matched   int
	Updated   *dinosaur.Dinosaur
	Deleted   bool
}

// Run walks through every store operation once, writing progress to out.
func Run(ctx context.Context, auth Authenticator, s store.Store, out io.Writer) (*Result, error) {
	fmt.Fprintln(out, "Initializing auth (anonymous) and document store...")
	if err := auth.EnsureAuth(ctx); err != nil {
		return nil, fmt.Errorf("ensure auth: %w", err)
	}
	res := &Result{}

	fmt.Fprintln(out, "\n[CREATE] adding a dinosaur doc...")
	id, err := s.Create(ctx, &dinosaur.Dinosaur{
		Name:        demoName,
		Description: demoDescription,
		IsCool:      dinosaur.Bool(true),
	})
	if err != nil {
		return res, fmt.Errorf("create: %w", err)
	}
	res.CreatedID = id
	fmt.Fprintln(out, "Created doc id:", id)

	fmt.Fprintln(out, "\n[READ] listing all dinosaurs...")
	all, err := s.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list: %w", err)
	}
	res.Listed = len(all)
	for _, d := range all {
		fmt.Fprintln(out, d.ID, render(d))
	}

	fmt.Fprintf(out, "\n[READ] query by name == '%s'...\n", demoName)
	byName, err := s.QueryByField(ctx, dinosaur.FieldName, store.OpEqual, demoName)
	if err != nil {
		return res, fmt.Errorf("query: %w", err)
	}
	res.Matched = len(byName)
	target := pick(byName, id)
	if target == nil {
		fmt.Fprintln(out, "Found: nothing")
		fmt.Fprintln(out, "\nDone.")
		return res, nil
	}
	fmt.Fprintln(out, "Found:", target.ID, render(target))

	fmt.Fprintln(out, "\n[UPDATE] toggling isCool to false...")
	if err := s.Update(ctx, target.ID, dinosaur.Patch{IsCool: dinosaur.Bool(false)}); err != nil {
		return res, fmt.Errorf("update %s: %w", target.ID, err)
	}
	after, err := s.QueryByField(ctx, dinosaur.FieldName, store.OpEqual, demoName)
	if err != nil {
		return res, fmt.Errorf("query after update: %w", err)
	}
	res.Updated = pick(after, target.ID)
	if res.Updated != nil {
		fmt.Fprintln(out, "After update:", res.Updated.ID, render(res.Updated))
	}

	fmt.Fprintln(out, "\n[DELETE] removing doc", target.ID)
	if err := s.Delete(ctx, target.ID); err != nil {
		return res, fmt.Errorf("delete %s: %w", target.ID, err)
	}
	res.Deleted = true

	fmt.Fprintln(out, "\nDone.")
	return res, nil
}

// pick prefers the record with id and otherwise takes the first match.
func pick(items []*dinosaur.Dinosaur, id string) *dinosaur.Dinosaur {
	for _, d := range items {
		if d.ID == id {
			return d
		}
	}
	if len(items) > 0 {
		return items[0]
	}
	return nil
}

func render(d *dinosaur.Dinosaur) string {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%+v", *d)
	}
	return string(b)
}
