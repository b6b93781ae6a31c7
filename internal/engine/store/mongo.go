package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase   = "ytsaver"
	mongoCollection = "video_cache"
)

// Mongo stores one document per (channel, key) in the video_cache collection.
// Payloads are kept as JSON strings so they round-trip byte for byte.
type Mongo struct {
	client  *mongo.Client
	coll    *mongo.Collection
	channel string
}

type mongoEntry struct {
	Channel   string    `bson:"channel"`
	Key       string    `bson:"key"`
	Payload   string    `bson:"payload"`
	CreatedAt time.Time `bson:"created_at"`
}

// OpenMongo connects to uri and scopes documents under namespace.
func OpenMongo(ctx context.Context, uri, namespace string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("store: mongo backend needs CACHE_URL")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store: mongo ping: %w", err)
	}
	coll := client.Database(mongoDatabase).Collection(mongoCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "channel", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store: mongo index: %w", err)
	}
	return &Mongo{client: client, coll: coll, channel: namespace}, nil
}

func (m *Mongo) get(ctx context.Context, key string) ([]byte, bool, error) {
	var e mongoEntry
	err := m.coll.FindOne(ctx, bson.M{"channel": m.channel, "key": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: mongo get %q: %w", key, err)
	}
	return []byte(e.Payload), true, nil
}

func (m *Mongo) Upsert(ctx context.Context, key string, fill FillFunc) ([]byte, bool, error) {
	if v, ok, err := m.get(ctx, key); err != nil || ok {
		return v, false, err
	}
	v, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	filter := bson.M{"channel": m.channel, "key": key}
	update := bson.M{"$setOnInsert": mongoEntry{
		Channel:   m.channel,
		Key:       key,
		Payload:   string(v),
		CreatedAt: time.Now().UTC(),
	}}
	res, err := m.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, false, fmt.Errorf("store: mongo upsert %q: %w", key, err)
	}
	if res.UpsertedCount == 0 {
		stored, _, err := m.get(ctx, key)
		return stored, false, err
	}
	return v, true, nil
}

func (m *Mongo) Len(ctx context.Context) (int, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"channel": m.channel})
	if err != nil {
		return 0, fmt.Errorf("store: mongo count: %w", err)
	}
	return int(n), nil
}

func (m *Mongo) Flush(context.Context) error { return nil }

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
