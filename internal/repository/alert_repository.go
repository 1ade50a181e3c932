package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/database"
)

// AlertFilter narrows List queries.
type AlertFilter struct {
	Status    models.AlertStatus
	Severity  models.Severity
	Component string
	Since     time.Time
	Limit     int64
}

// AlertRepository stores fired alerts.
type AlertRepository interface {
	Insert(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error)
	FindActive(ctx context.Context, alertType, component string) (*models.Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]models.Alert, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, update bson.M) error
	Summary(ctx context.Context) (*models.AlertSummary, error)
	DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type alertRepository struct {
	collection *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) AlertRepository {
	return &alertRepository{collection: db.Collection("alerts")}
}

func (r *alertRepository) Insert(ctx context.Context, alert *models.Alert) error {
	alert.ID = primitive.NewObjectID()
	_, err := r.collection.InsertOne(ctx, alert)
	return err
}

func (r *alertRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	var alert models.Alert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err == mongo.ErrNoDocuments {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindActive returns the most recent active alert for (alertType, component).
func (r *alertRepository) FindActive(ctx context.Context, alertType, component string) (*models.Alert, error) {
	filter := bson.M{
		"alert_type": alertType,
		"component":  component,
		"status":     models.AlertStatusActive,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var alert models.Alert
	err := r.collection.FindOne(ctx, filter, opts).Decode(&alert)
	if err == mongo.ErrNoDocuments {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	if filter.Component != "" {
		query["component"] = filter.Component
	}
	if !filter.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": filter.Since}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepository) SetStatus(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *alertRepository) Summary(ctx context.Context) (*models.AlertSummary, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	active, err := r.collection.CountDocuments(ctx, bson.M{"status": models.AlertStatusActive})
	if err != nil {
		return nil, err
	}

	bySeverity, err := r.groupCount(ctx, "$severity")
	if err != nil {
		return nil, err
	}
	byComponent, err := r.groupCount(ctx, "$component")
	if err != nil {
		return nil, err
	}

	return &models.AlertSummary{
		TotalAlerts: total,
		ActiveCount: active,
		BySeverity:  bySeverity,
		ByComponent: byComponent,
	}, nil
}

func (r *alertRepository) groupCount(ctx context.Context, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   field,
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var result struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		counts[result.ID] = result.Count
	}
	return counts, nil
}

func (r *alertRepository) DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"status":      models.AlertStatusResolved,
		"resolved_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
