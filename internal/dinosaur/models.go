package dinosaur

import (
	"errors"
	"time"
)

// ErrNameRequired is reported when a record is created without a usable name.
var ErrNameRequired = errors.New("name is required")

// Field names as stored in the collection.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldDescription = "description"
	FieldCreatedAt   = "createdAt"
	FieldIsCool      = "isCool"
)

// Dinosaur is one record of the dinosaurs collection. ID and CreatedAt are
// assigned by the store at creation time and never change afterwards.
// Documents written without a createdAt keep it nil and list without the field.
type Dinosaur struct {
	ID          string     `json:"id" bson:"id"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description" bson:"description"`
	CreatedAt   *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	IsCool      *bool      `json:"isCool,omitempty" bson:"isCool,omitempty"`
}

// Validate checks the only invariant enforced at the API boundary.
func (d *Dinosaur) Validate() error {
	if d.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// Patch lists the mutable fields of a record; nil members are left untouched.
type Patch struct {
	Name        *string
	Description *string
	IsCool      *bool
}

// Empty reports whether the patch would not change anything.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsCool == nil
}

// Fields returns the patched field names in a stable order.
func (p Patch) Fields() []string {
	var out []string
	if p.Name != nil {
		out = append(out, FieldName)
	}
	if p.Description != nil {
		out = append(out, FieldDescription)
	}
	if p.IsCool != nil {
		out = append(out, FieldIsCool)
	}
	return out
}

// Apply copies the patched values onto d.
func (p Patch) Apply(d *Dinosaur) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.IsCool != nil {
		v := *p.IsCool
		d.IsCool = &v
	}
}

// Value returns the value held in the named field. The second result is false
// for unknown fields and for an unset isCool.
func (d *Dinosaur) Value(field string) (interface{}, bool) {
	switch field {
	case FieldID:
		return d.ID, true
	case FieldName:
		return d.Name, true
	case FieldDescription:
		return d.Description, true
	case FieldCreatedAt:
		if d.CreatedAt == nil {
			return nil, false
		}
		return *d.CreatedAt, true
	case FieldIsCool:
		if d.IsCool == nil {
			return nil, false
		}
		return *d.IsCool, true
	}
	return nil, false
}

// Equals reports whether the named field holds value.
func (d *Dinosaur) Equals(field string, value interface{}) bool {
	got, ok := d.Value(field)
	if !ok {
		return false
	}
	if t, isTime := got.(time.Time); isTime {
		other, ok := value.(time.Time)
		return ok && t.Equal(other)
	}
	return got == value
}

// Time is a convenience for setting createdAt.
func Time(v time.Time) *time.Time { return &v }

// Bool is a convenience for building patches and records.
func Bool(v bool) *bool { return &v }

// String is a convenience for building patches.
func String(v string) *string { return &v }
