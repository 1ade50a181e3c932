package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/database"
)

// ChannelRepository stores notification channels and the alert-type mappings
// that route alerts to them.
type ChannelRepository interface {
	CreateChannel(ctx context.Context, channel *models.NotificationChannel) error
	GetChannel(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error)
	ListChannels(ctx context.Context) ([]models.NotificationChannel, error)
	UpdateChannel(ctx context.Context, channel *models.NotificationChannel) error
	DeleteChannel(ctx context.Context, id primitive.ObjectID) error

	CreateMapping(ctx context.Context, mapping *models.NotificationMapping) error
	ListMappings(ctx context.Context) ([]models.NotificationMapping, error)
	MappingsForAlertType(ctx context.Context, alertType string) ([]models.NotificationMapping, error)
	DeleteMapping(ctx context.Context, id primitive.ObjectID) error
}

type channelRepository struct {
	channels *mongo.Collection
	mappings *mongo.Collection
}

func NewChannelRepository(db *mongo.Database) ChannelRepository {
	return &channelRepository{
		channels: db.Collection("notification_channels"),
		mappings: db.Collection("notification_mappings"),
	}
}

func (r *channelRepository) CreateChannel(ctx context.Context, channel *models.NotificationChannel) error {
	channel.ID = primitive.NewObjectID()
	_, err := r.channels.InsertOne(ctx, channel)
	return err
}

func (r *channelRepository) GetChannel(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error) {
	var channel models.NotificationChannel
	err := r.channels.FindOne(ctx, bson.M{"_id": id}).Decode(&channel)
	if err == mongo.ErrNoDocuments {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) ListChannels(ctx context.Context) ([]models.NotificationChannel, error) {
	cursor, err := r.channels.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var channels []models.NotificationChannel
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) UpdateChannel(ctx context.Context, channel *models.NotificationChannel) error {
	res, err := r.channels.ReplaceOne(ctx, bson.M{"_id": channel.ID}, channel)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *channelRepository) DeleteChannel(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.channels.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	// Mappings referencing the channel become dangling and are skipped at
	// dispatch time.
	return nil
}

func (r *channelRepository) CreateMapping(ctx context.Context, mapping *models.NotificationMapping) error {
	mapping.ID = primitive.NewObjectID()
	_, err := r.mappings.InsertOne(ctx, mapping)
	return err
}

func (r *channelRepository) ListMappings(ctx context.Context) ([]models.NotificationMapping, error) {
	cursor, err := r.mappings.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mappings []models.NotificationMapping
	if err := cursor.All(ctx, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

// MappingsForAlertType returns enabled mappings matching the alert type
// exactly or via the '*' wildcard.
func (r *channelRepository) MappingsForAlertType(ctx context.Context, alertType string) ([]models.NotificationMapping, error) {
	filter := bson.M{
		"enabled": true,
		"alert_type": bson.M{
			"$in": []string{"*", alertType},
		},
	}

	cursor, err := r.mappings.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mappings []models.NotificationMapping
	if err := cursor.All(ctx, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *channelRepository) DeleteMapping(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.mappings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
