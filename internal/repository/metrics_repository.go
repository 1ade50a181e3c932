package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/database"
)

// MetricsRepository stores the append-only metric sample time series.
type MetricsRepository interface {
	Insert(ctx context.Context, sample *models.MetricSample) error
	InsertBatch(ctx context.Context, samples []models.MetricSample) error
	Latest(ctx context.Context, name, component string) (*models.MetricSample, error)
	Range(ctx context.Context, name, component string, from, to time.Time) ([]models.MetricSample, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type metricsRepository struct {
	collection *mongo.Collection
}

func NewMetricsRepository(db *mongo.Database) MetricsRepository {
	return &metricsRepository{collection: db.Collection("metric_samples")}
}

func (r *metricsRepository) Insert(ctx context.Context, sample *models.MetricSample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, sample)
	return err
}

func (r *metricsRepository) InsertBatch(ctx context.Context, samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(samples))
	now := time.Now()
	for i := range samples {
		if samples[i].Timestamp.IsZero() {
			samples[i].Timestamp = now
		}
		docs = append(docs, samples[i])
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *metricsRepository) Latest(ctx context.Context, name, component string) (*models.MetricSample, error) {
	filter := bson.M{"name": name}
	if component != "" {
		filter["component"] = component
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var sample models.MetricSample
	err := r.collection.FindOne(ctx, filter, opts).Decode(&sample)
	if err == mongo.ErrNoDocuments {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

func (r *metricsRepository) Range(ctx context.Context, name, component string, from, to time.Time) ([]models.MetricSample, error) {
	filter := bson.M{
		"timestamp": bson.M{"$gte": from, "$lte": to},
	}
	if name != "" {
		filter["name"] = name
	}
	if component != "" {
		filter["component"] = component
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var samples []models.MetricSample
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (r *metricsRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
