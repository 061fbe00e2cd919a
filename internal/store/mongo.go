package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore backs collections with a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// DialMongo connects to uri and selects database. The client is verified
// with a ping so a bad address fails at startup rather than on first use.
func DialMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Collection returns the named mongo collection.
func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{coll: s.db.Collection(name)}
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Find(ctx context.Context, query map[string]any, opts *FindOptions) ([]map[string]any, error) {
	findOpts := options.Find()
	if opts != nil {
		if len(opts.Fields) > 0 {
			projection := bson.D{}
			for _, field := range opts.Fields {
				projection = append(projection, bson.E{Key: field, Value: 1})
			}
			findOpts.SetProjection(projection)
		}
		if len(opts.Sort) > 0 {
			sortDoc := bson.D{}
			for _, key := range opts.Sort {
				order := 1
				if strings.HasPrefix(key, "-") {
					key = strings.TrimPrefix(key, "-")
					order = -1
				}
				sortDoc = append(sortDoc, bson.E{Key: key, Value: order})
			}
			findOpts.SetSort(sortDoc)
		}
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
		if opts.Skip > 0 {
			findOpts.SetSkip(opts.Skip)
		}
	}
	cursor, err := c.coll.Find(ctx, bson.M(query), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []map[string]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, map[string]any(doc))
	}
	return out, cursor.Err()
}

func (c *mongoCollection) FindOne(ctx context.Context, query map[string]any) (map[string]any, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, bson.M(query)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return map[string]any(doc), nil
}

func (c *mongoCollection) Count(ctx context.Context, query map[string]any) (int64, error) {
	return c.coll.CountDocuments(ctx, bson.M(query))
}

func (c *mongoCollection) Insert(ctx context.Context, docs ...map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	payload := make([]any, len(docs))
	for i, doc := range docs {
		payload[i] = bson.M(doc)
	}
	_, err := c.coll.InsertMany(ctx, payload)
	return err
}

func (c *mongoCollection) Update(ctx context.Context, selector, mod map[string]any, multi bool) (int64, error) {
	if multi {
		result, err := c.coll.UpdateMany(ctx, bson.M(selector), bson.M(mod))
		if err != nil {
			return 0, err
		}
		return result.MatchedCount, nil
	}
	result, err := c.coll.UpdateOne(ctx, bson.M(selector), bson.M(mod))
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (c *mongoCollection) Replace(ctx context.Context, selector, doc map[string]any) error {
	result, err := c.coll.ReplaceOne(ctx, bson.M(selector), bson.M(doc))
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Remove(ctx context.Context, selector map[string]any) (int64, error) {
	result, err := c.coll.DeleteMany(ctx, bson.M(selector))
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
