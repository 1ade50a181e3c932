package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/propwatch/propwatch/internal/models"
)

// EventRepository stores qualifying events (API errors, ETL outcomes) used by
// frequency and pattern rules and by reports.
type EventRepository interface {
	Insert(ctx context.Context, event *models.Event) error
	CountSince(ctx context.Context, eventType, component string, since time.Time) (int64, error)
	Recent(ctx context.Context, eventType string, since time.Time, limit int64) ([]models.Event, error)
	Range(ctx context.Context, from, to time.Time) ([]models.Event, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type eventRepository struct {
	collection *mongo.Collection
}

func NewEventRepository(db *mongo.Database) EventRepository {
	return &eventRepository{collection: db.Collection("events")}
}

func (r *eventRepository) Insert(ctx context.Context, event *models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, event)
	return err
}

func (r *eventRepository) CountSince(ctx context.Context, eventType, component string, since time.Time) (int64, error) {
	filter := bson.M{
		"type":      eventType,
		"timestamp": bson.M{"$gte": since},
	}
	if component != "" {
		filter["component"] = component
	}
	return r.collection.CountDocuments(ctx, filter)
}

func (r *eventRepository) Recent(ctx context.Context, eventType string, since time.Time, limit int64) ([]models.Event, error) {
	filter := bson.M{"timestamp": bson.M{"$gte": since}}
	if eventType != "" {
		filter["type"] = eventType
	}

	if limit <= 0 {
		limit = 500
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) Range(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	filter := bson.M{"timestamp": bson.M{"$gte": from, "$lte": to}}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
