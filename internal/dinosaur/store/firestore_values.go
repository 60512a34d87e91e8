package store

import (
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
)

// value is the Firestore REST representation of a single field value.
// Exactly one member is set.
type value struct {
	StringValue    *string  `json:"stringValue,omitempty"`
	BooleanValue   *bool    `json:"booleanValue,omitempty"`
	IntegerValue   *string  `json:"integerValue,omitempty"`
	DoubleValue    *float64 `json:"doubleValue,omitempty"`
	TimestampValue *string  `json:"timestampValue,omitempty"`
	NullValue      *string  `json:"nullValue,omitempty"`
}

type restDocument struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]value `json:"fields"`
	CreateTime string           `json:"createTime,omitempty"`
	UpdateTime string           `json:"updateTime,omitempty"`
}

// encodeValue converts a Go query/patch value to its REST form.
func encodeValue(v interface{}) (value, error) {
	switch t := v.(type) {
	case nil:
		null := "NULL_VALUE"
		return value{NullValue: &null}, nil
	case string:
		return value{StringValue: &t}, nil
	case bool:
		return value{BooleanValue: &t}, nil
	case int:
		s := strconv.Itoa(t)
		return value{IntegerValue: &s}, nil
	case int64:
		s := strconv.FormatInt(t, 10)
		return value{IntegerValue: &s}, nil
	case float64:
		return value{DoubleValue: &t}, nil
	case time.Time:
		s := t.UTC().Format(time.RFC3339Nano)
		return value{TimestampValue: &s}, nil
	}
	return value{}, fmt.Errorf("unsupported field value type %T", v)
}

func encodeFields(d *dinosaur.Dinosaur) map[string]value {
	name, desc := d.Name, d.Description
	fields := map[string]value{
		dinosaur.FieldName:        {StringValue: &name},
		dinosaur.FieldDescription: {StringValue: &desc},
	}
	if d.IsCool != nil {
		cool := *d.IsCool
		fields[dinosaur.FieldIsCool] = value{BooleanValue: &cool}
	}
	return fields
}

func encodePatch(p dinosaur.Patch) map[string]value {
	fields := map[string]value{}
	if p.Name != nil {
		fields[dinosaur.FieldName] = value{StringValue: p.Name}
	}
	if p.Description != nil {
		fields[dinosaur.FieldDescription] = value{StringValue: p.Description}
	}
	if p.IsCool != nil {
		fields[dinosaur.FieldIsCool] = value{BooleanValue: p.IsCool}
	}
	return fields
}

// decodeDocument maps a REST document onto a record. The id is the last
// segment of the document resource name. Fields written by other clients
// with unexpected types are ignored.
func decodeDocument(doc *restDocument) (*dinosaur.Dinosaur, error) {
	d := &dinosaur.Dinosaur{ID: path.Base(doc.Name)}
	if v, ok := doc.Fields[dinosaur.FieldName]; ok && v.StringValue != nil {
		d.Name = *v.StringValue
	}
	if v, ok := doc.Fields[dinosaur.FieldDescription]; ok && v.StringValue != nil {
		d.Description = *v.StringValue
	}
	if v, ok := doc.Fields[dinosaur.FieldIsCool]; ok && v.BooleanValue != nil {
		d.IsCool = dinosaur.Bool(*v.BooleanValue)
	}
	if v, ok := doc.Fields[dinosaur.FieldCreatedAt]; ok && v.TimestampValue != nil {
		ts, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
		if err != nil {
			return nil, fmt.Errorf("decode %s.createdAt: %w", d.ID, err)
		}
		d.CreatedAt = &ts
	}
	return d, nil
}
