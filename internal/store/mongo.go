package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/terrascope/terrascope/internal/model"
)

// MongoStore implements Store on a MongoDB collection of GeoJSON features.
type MongoStore struct {
	coll   *mongo.Collection
	client *mongo.Client
}

// NewMongo connects to MongoDB and returns a store for database.collection.
func NewMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx) //nolint:errcheck
		return nil, eris.Wrap(err, "mongo: ping")
	}
	return &MongoStore{coll: client.Database(database).Collection(collection), client: client}, nil
}

// NewMongoStore wraps an existing collection. Close leaves its client open.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "geometry", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "properties.price", Value: 1}}},
	})
	return eris.Wrap(err, "mongo: create indexes")
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.coll.Database().Client().Ping(ctx, nil), "mongo: ping")
}

func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	return eris.Wrap(s.client.Disconnect(context.Background()), "mongo: disconnect")
}

func (s *MongoStore) InsertMany(ctx context.Context, features []model.Feature) (int64, error) {
	prepared, err := prepare(features)
	if err != nil {
		return 0, err
	}
	if len(prepared) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, len(prepared))
	for i, f := range prepared {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: f.ID}}).
			SetReplacement(f).
			SetUpsert(true)
	}
	res, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, eris.Wrap(err, "mongo: insert properties")
	}
	return res.MatchedCount + res.UpsertedCount, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*model.Feature, error) {
	var f model.Feature
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, eris.Wrapf(ErrNotFound, "mongo: get %s", id)
		}
		return nil, eris.Wrapf(err, "mongo: get %s", id)
	}
	return &f, nil
}

func (s *MongoStore) Find(ctx context.Context, q Query) ([]model.Feature, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	cur, err := s.coll.Find(ctx, mongoFilter(q), options.Find().SetLimit(int64(q.EffectiveLimit())))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: find properties")
	}
	var out []model.Feature
	if err := cur.All(ctx, &out); err != nil {
		return nil, eris.Wrap(err, "mongo: decode properties")
	}
	return finish(out, q), nil
}

// mongoFilter translates q into a query document.
func mongoFilter(q Query) bson.D {
	filter := bson.D{}
	if q.BBox != nil {
		poly := q.BBox.Polygon()
		filter = append(filter, bson.E{Key: "geometry", Value: bson.D{
			{Key: "$geoWithin", Value: bson.D{
				{Key: "$geometry", Value: bson.D{
					{Key: "type", Value: poly.Type},
					{Key: "coordinates", Value: poly.Coordinates},
				}},
			}},
		}})
	}
	price := bson.D{}
	if q.MinPrice != nil {
		price = append(price, bson.E{Key: "$gte", Value: *q.MinPrice})
	}
	if q.MaxPrice != nil {
		price = append(price, bson.E{Key: "$lte", Value: *q.MaxPrice})
	}
	if len(price) > 0 {
		filter = append(filter, bson.E{Key: "properties.price", Value: price})
	}
	if q.Search != "" {
		filter = append(filter, bson.E{Key: "properties.address", Value: primitive.Regex{
			Pattern: regexp.QuoteMeta(q.Search),
			Options: "i",
		}})
	}
	return filter
}

type mongoAnalytics struct {
	TotalMarketValue float64  `bson:"totalMarketValue"`
	AvgYield         *float64 `bson:"avgYield"`
	PropertyCount    int64    `bson:"propertyCount"`
	AvgPrice         *float64 `bson:"avgPrice"`
}

func (s *MongoStore) CityAnalytics(ctx context.Context) (*CityAnalytics, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalMarketValue", Value: bson.D{{Key: "$sum", Value: "$properties.price"}}},
			{Key: "avgYield", Value: bson.D{{Key: "$avg", Value: "$properties.yield"}}},
			{Key: "propertyCount", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$properties.price"}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, eris.Wrap(err, "mongo: city analytics")
	}
	var groups []mongoAnalytics
	if err := cur.All(ctx, &groups); err != nil {
		return nil, eris.Wrap(err, "mongo: decode city analytics")
	}

	a := &CityAnalytics{}
	if len(groups) == 0 {
		return a, nil
	}
	g := groups[0]
	a.TotalMarketValue = g.TotalMarketValue
	a.PropertyCount = g.PropertyCount
	if g.AvgYield != nil {
		a.AvgROI = *g.AvgYield * 100
	}
	if g.AvgPrice != nil {
		a.AvgPrice = *g.AvgPrice
	}
	return a, nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, eris.Wrap(err, "mongo: count properties")
	}
	return n, nil
}

func (s *MongoStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, eris.Wrap(err, "mongo: delete properties")
	}
	return res.DeletedCount, nil
}
