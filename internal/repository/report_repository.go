package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/database"
)

// ReportRepository stores scheduled report definitions.
type ReportRepository interface {
	Create(ctx context.Context, report *models.ScheduledReport) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.ScheduledReport, error)
	GetAll(ctx context.Context) ([]models.ScheduledReport, error)
	GetDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error)
	Update(ctx context.Context, report *models.ScheduledReport) error
	SetRunResult(ctx context.Context, id primitive.ObjectID, ranAt, nextRun time.Time) error
	SetNextRun(ctx context.Context, id primitive.ObjectID, nextRun time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type reportRepository struct {
	collection *mongo.Collection
}

func NewReportRepository(db *mongo.Database) ReportRepository {
	return &reportRepository{collection: db.Collection("scheduled_reports")}
}

func (r *reportRepository) Create(ctx context.Context, report *models.ScheduledReport) error {
	report.ID = primitive.NewObjectID()
	_, err := r.collection.InsertOne(ctx, report)
	return err
}

func (r *reportRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ScheduledReport, error) {
	var report models.ScheduledReport
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) GetAll(ctx context.Context) ([]models.ScheduledReport, error) {
	return r.find(ctx, bson.M{})
}

func (r *reportRepository) GetDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error) {
	return r.find(ctx, bson.M{
		"enabled":  true,
		"next_run": bson.M{"$lte": now},
	})
}

func (r *reportRepository) find(ctx context.Context, filter bson.M) ([]models.ScheduledReport, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.ScheduledReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) Update(ctx context.Context, report *models.ScheduledReport) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": report.ID}, report)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *reportRepository) SetRunResult(ctx context.Context, id primitive.ObjectID, ranAt, nextRun time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_run": ranAt,
		"next_run": nextRun,
	}})
	return err
}

func (r *reportRepository) SetNextRun(ctx context.Context, id primitive.ObjectID, nextRun time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"next_run": nextRun}})
	return err
}

func (r *reportRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
