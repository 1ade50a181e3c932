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

// RuleRepository stores alert rule definitions.
type RuleRepository interface {
	Create(ctx context.Context, rule *models.AlertRule) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.AlertRule, error)
	GetEnabled(ctx context.Context) ([]models.AlertRule, error)
	GetAll(ctx context.Context) ([]models.AlertRule, error)
	Update(ctx context.Context, rule *models.AlertRule) error
	SetLastTriggered(ctx context.Context, id primitive.ObjectID, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ruleRepository struct {
	collection *mongo.Collection
}

func NewRuleRepository(db *mongo.Database) RuleRepository {
	return &ruleRepository{collection: db.Collection("alert_rules")}
}

func (r *ruleRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	rule.ID = primitive.NewObjectID()
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, rule)
	return err
}

func (r *ruleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AlertRule, error) {
	var rule models.AlertRule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) GetEnabled(ctx context.Context) ([]models.AlertRule, error) {
	return r.find(ctx, bson.M{"enabled": true})
}

func (r *ruleRepository) GetAll(ctx context.Context) ([]models.AlertRule, error) {
	return r.find(ctx, bson.M{})
}

func (r *ruleRepository) find(ctx context.Context, filter bson.M) ([]models.AlertRule, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []models.AlertRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *ruleRepository) Update(ctx context.Context, rule *models.AlertRule) error {
	rule.UpdatedAt = time.Now()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *ruleRepository) SetLastTriggered(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_triggered": at, "updated_at": at}})
	return err
}

func (r *ruleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
