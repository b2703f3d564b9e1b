package message

import (
	"chat_relay/internal/model"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	MessageRepo struct {
		collection *mongo.Collection
		stamper    *Stamper
		timeout    time.Duration
	}

	document struct {
		ID        primitive.ObjectID `bson:"_id"`
		From      string             `bson:"from"`
		To        string             `bson:"to"`
		Content   string             `bson:"content"`
		Timestamp int64              `bson:"timestamp"`
	}
)

func NewMessageRepo(db *mongo.Database, collection string, timeout time.Duration) *MessageRepo {
	return &MessageRepo{
		collection: db.Collection(collection),
		stamper:    NewStamper(nil),
		timeout:    timeout,
	}
}

func (r *MessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "from", Value: 1}, {Key: "to", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}

func (r *MessageRepo) Append(ctx context.Context, from, to, content string) (model.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	doc := document{
		ID:        primitive.NewObjectID(),
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: r.stamper.Next().UnixNano(),
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return model.Record{}, fmt.Errorf("%w: insert message: %v", model.ErrStorageUnavailable, err)
	}
	return doc.record(), nil
}

// Query returns the conversation between a and b in both directions,
// oldest first.
func (r *MessageRepo) Query(ctx context.Context, a, b string) ([]model.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"$or": bson.A{
			bson.M{"from": a, "to": b},
			bson.M{"from": b, "to": a},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find messages: %v", model.ErrStorageUnavailable, err)
	}
	defer cursor.Close(ctx)

	records := make([]model.Record, 0)
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode message: %v", model.ErrStorageUnavailable, err)
		}
		records = append(records, doc.record())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate messages: %v", model.ErrStorageUnavailable, err)
	}
	return records, nil
}

func (r *MessageRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (d document) record() model.Record {
	return model.Record{
		ID:        d.ID.Hex(),
		From:      d.From,
		To:        d.To,
		Content:   d.Content,
		Timestamp: time.Unix(0, d.Timestamp).UTC(),
	}
}
