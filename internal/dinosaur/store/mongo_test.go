package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	stamp := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	mt.Run("create assigns id and timestamp", func(mt *mtest.T) {
		s := &MongoStore{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		d := &dinosaur.Dinosaur{Name: "Denosaur"}
		id, err := s.Create(ctx, d)
		require.NoError(mt, err)
		require.Len(mt, id, 20)
		require.Equal(mt, id, d.ID)
		require.NotNil(mt, d.CreatedAt)
		require.False(mt, d.CreatedAt.IsZero())
	})

	mt.Run("list decodes documents", func(mt *mtest.T) {
		s := &MongoStore{col: mt.Coll}
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "id", Value: "a"}, {Key: "name", Value: "Rex"}, {Key: "description", Value: ""},
			{Key: "createdAt", Value: primitive.NewDateTimeFromTime(stamp)},
		})
		last := mtest.CreateCursorResponse(0, ns, mtest.NextBatch, bson.D{
			{Key: "id", Value: "b"}, {Key: "name", Value: "Denosaur"}, {Key: "description", Value: "test"},
			{Key: "createdAt", Value: primitive.NewDateTimeFromTime(stamp)}, {Key: "isCool", Value: true},
		})
		mt.AddMockResponses(first, last)

		items, err := s.List(ctx)
		require.NoError(mt, err)
		require.Len(mt, items, 2)
		require.Equal(mt, "Rex", items[0].Name)
		require.Nil(mt, items[0].IsCool)
		require.NotNil(mt, items[0].CreatedAt)
		require.True(mt, stamp.Equal(*items[0].CreatedAt))
		require.NotNil(mt, items[1].IsCool)
		require.True(mt, *items[1].IsCool)
	})

	mt.Run("update of unknown id", func(mt *mtest.T) {
		s := &MongoStore{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := s.Update(ctx, "missing", dinosaur.Patch{IsCool: dinosaur.Bool(false)})
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("update of known id", func(mt *mtest.T) {
		s := &MongoStore{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		require.NoError(mt, s.Update(ctx, "a", dinosaur.Patch{Name: dinosaur.String("Rexy")}))
	})

	mt.Run("empty patch and bad operator never reach the server", func(mt *mtest.T) {
		s := &MongoStore{col: mt.Coll}
		require.ErrorIs(mt, s.Update(ctx, "a", dinosaur.Patch{}), ErrEmptyPatch)
		_, err := s.QueryByField(ctx, dinosaur.FieldName, ">", "x")
		require.ErrorIs(mt, err, ErrUnsupportedOperator)
	})

	mt.Run("delete of unknown id succeeds", func(mt *mtest.T) {
		s := &MongoStore{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		require.NoError(mt, s.Delete(ctx, "missing"))
	})
}
