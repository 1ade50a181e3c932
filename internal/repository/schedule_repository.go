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

// ScheduleRepository stores ETL job schedules.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.ETLSchedule) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.ETLSchedule, error)
	GetAll(ctx context.Context) ([]models.ETLSchedule, error)
	GetDue(ctx context.Context, now time.Time) ([]models.ETLSchedule, error)
	Update(ctx context.Context, schedule *models.ETLSchedule) error
	MarkRunning(ctx context.Context, id primitive.ObjectID, startedAt, nextRun time.Time) error
	SetResult(ctx context.Context, id primitive.ObjectID, status, lastError string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type scheduleRepository struct {
	collection *mongo.Collection
}

func NewScheduleRepository(db *mongo.Database) ScheduleRepository {
	return &scheduleRepository{collection: db.Collection("etl_schedules")}
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *models.ETLSchedule) error {
	schedule.ID = primitive.NewObjectID()
	schedule.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, schedule)
	return err
}

func (r *scheduleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ETLSchedule, error) {
	var schedule models.ETLSchedule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&schedule)
	if err == mongo.ErrNoDocuments {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) GetAll(ctx context.Context) ([]models.ETLSchedule, error) {
	return r.find(ctx, bson.M{})
}

func (r *scheduleRepository) GetDue(ctx context.Context, now time.Time) ([]models.ETLSchedule, error) {
	return r.find(ctx, bson.M{
		"enabled":  true,
		"next_run": bson.M{"$lte": now},
	})
}

func (r *scheduleRepository) find(ctx context.Context, filter bson.M) ([]models.ETLSchedule, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var schedules []models.ETLSchedule
	if err := cursor.All(ctx, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *models.ETLSchedule) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": schedule.ID}, schedule)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// MarkRunning records the start of an execution attempt and the already
// recomputed next run in one update, so a crash mid-run cannot wedge the
// schedule.
func (r *scheduleRepository) MarkRunning(ctx context.Context, id primitive.ObjectID, startedAt, nextRun time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_run":    startedAt,
		"next_run":    nextRun,
		"last_status": models.JobStatusRunning,
		"last_error":  "",
	}})
	return err
}

func (r *scheduleRepository) SetResult(ctx context.Context, id primitive.ObjectID, status, lastError string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_status": status,
		"last_error":  lastError,
	}})
	return err
}

func (r *scheduleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
