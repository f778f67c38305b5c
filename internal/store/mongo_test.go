package store

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/model"
)

// featureDoc renders f the way the driver would store it.
func featureDoc(t *testing.T, f model.Feature) bson.D {
	t.Helper()
	raw, err := bson.Marshal(f)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get", func(mt *mtest.T) {
		want := sampleFeature("p1", 1_200_000)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, featureDoc(t, want)))

		got, err := NewMongoStore(mt.Coll).Get(context.Background(), "p1")
		require.NoError(mt, err)
		assert.Equal(mt, want, *got)
	})

	mt.Run("get not found", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewMongoStore(mt.Coll).Get(context.Background(), "missing")
		require.Error(mt, err)
		assert.True(mt, eris.Is(err, ErrNotFound))
	})

	mt.Run("find", func(mt *mtest.T) {
		a := sampleFeature("a", 100)
		b := sampleFeature("b", 200)
		b.Properties.Price = nil
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, featureDoc(t, a), featureDoc(t, b)))

		got, err := NewMongoStore(mt.Coll).Find(context.Background(), Query{Impute: true})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.InDelta(mt, 100, *got[1].Properties.Price, 0.001)
		assert.Equal(mt, []string{model.FieldPrice}, got[1].Properties.ImputedFields)
	})

	mt.Run("insert many", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}, bson.E{Key: "nModified", Value: int32(2)}))

		n, err := NewMongoStore(mt.Coll).InsertMany(context.Background(),
			[]model.Feature{sampleFeature("a", 1), sampleFeature("b", 2)})
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})

	mt.Run("insert error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}))

		_, err := NewMongoStore(mt.Coll).InsertMany(context.Background(), []model.Feature{sampleFeature("a", 1)})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "mongo: insert properties")
	})

	mt.Run("city analytics", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalMarketValue", Value: 3_000_000.0},
			{Key: "avgYield", Value: 0.055},
			{Key: "propertyCount", Value: int32(3)},
			{Key: "avgPrice", Value: 1_000_000.0},
		}))

		a, err := NewMongoStore(mt.Coll).CityAnalytics(context.Background())
		require.NoError(mt, err)
		assert.InDelta(mt, 3_000_000, a.TotalMarketValue, 0.001)
		assert.InDelta(mt, 5.5, a.AvgROI, 1e-9)
		assert.Equal(mt, int64(3), a.PropertyCount)
		assert.InDelta(mt, 1_000_000, a.AvgPrice, 0.001)
	})

	mt.Run("city analytics empty", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		a, err := NewMongoStore(mt.Coll).CityAnalytics(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, &CityAnalytics{}, a)
	})

	mt.Run("delete all", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(4)}))

		n, err := NewMongoStore(mt.Coll).DeleteAll(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), n)
	})

	mt.Run("migrate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, NewMongoStore(mt.Coll).Migrate(context.Background()))
	})
}

func TestMongoFilter(t *testing.T) {
	bbox := geospatial.BBox{West: -122.43, South: 37.77, East: -122.40, North: 37.80}
	f := mongoFilter(Query{
		BBox:     &bbox,
		MinPrice: model.Float(1),
		MaxPrice: model.Float(2),
		Search:   "1.5 Main (rear)",
	})
	require.Len(t, f, 3)

	assert.Equal(t, "geometry", f[0].Key)
	within := f[0].Value.(bson.D)[0]
	assert.Equal(t, "$geoWithin", within.Key)

	assert.Equal(t, "properties.price", f[1].Key)
	assert.Equal(t, bson.D{{Key: "$gte", Value: 1.0}, {Key: "$lte", Value: 2.0}}, f[1].Value)

	assert.Equal(t, "properties.address", f[2].Key)
	assert.Equal(t, primitive.Regex{Pattern: `1\.5 Main \(rear\)`, Options: "i"}, f[2].Value)
}

func TestMongoFilter_Empty(t *testing.T) {
	assert.Empty(t, mongoFilter(Query{}))
}
