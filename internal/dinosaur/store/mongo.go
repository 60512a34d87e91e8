package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
)

// MongoStore implements Store on a MongoDB collection.
// Records carry their own "id" string field (unique index) so ids look the
// same across every backend.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(ctx context.Context, col *mongo.Collection) (*MongoStore, error) {
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: dinosaur.FieldID, Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idxModel); err != nil {
		return nil, err
	}
	return &MongoStore{col: col}, nil
}

func (m *MongoStore) Create(ctx context.Context, d *dinosaur.Dinosaur) (string, error) {
	d.ID = NewID()
	// mongo keeps millisecond precision; truncate so callers see the stored value
	d.CreatedAt = dinosaur.Time(time.Now().UTC().Truncate(time.Millisecond))
	if _, err := m.col.InsertOne(ctx, d); err != nil {
		return "", err
	}
	return d.ID, nil
}

func (m *MongoStore) List(ctx context.Context) ([]*dinosaur.Dinosaur, error) {
	return m.find(ctx, bson.M{})
}

func (m *MongoStore) Update(ctx context.Context, id string, p dinosaur.Patch) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	set := bson.M{}
	if p.Name != nil {
		set[dinosaur.FieldName] = *p.Name
	}
	if p.Description != nil {
		set[dinosaur.FieldDescription] = *p.Description
	}
	if p.IsCool != nil {
		set[dinosaur.FieldIsCool] = *p.IsCool
	}
	res, err := m.col.UpdateOne(ctx, bson.M{dinosaur.FieldID: id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{dinosaur.FieldID: id})
	return err
}

func (m *MongoStore) QueryByField(ctx context.Context, field, op string, value interface{}) ([]*dinosaur.Dinosaur, error) {
	if err := checkOperator(op); err != nil {
		return nil, err
	}
	return m.find(ctx, bson.M{field: value})
}

func (m *MongoStore) find(ctx context.Context, filter bson.M) ([]*dinosaur.Dinosaur, error) {
	cur, err := m.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*dinosaur.Dinosaur{}
	for cur.Next(ctx) {
		var d dinosaur.Dinosaur
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}
