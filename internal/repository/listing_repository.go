package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propwatch/propwatch/internal/models"
)

// ListingRepository stores listing snapshots captured by ETL runs.
type ListingRepository interface {
	InsertBatch(ctx context.Context, snapshots []models.ListingSnapshot) error
	CountSince(ctx context.Context, source string, since time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type listingRepository struct {
	collection *mongo.Collection
}

func NewListingRepository(db *mongo.Database) ListingRepository {
	return &listingRepository{collection: db.Collection("listing_snapshots")}
}

func (r *listingRepository) InsertBatch(ctx context.Context, snapshots []models.ListingSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(snapshots))
	now := time.Now()
	for i := range snapshots {
		snapshots[i].ID = primitive.NewObjectID()
		if snapshots[i].CapturedAt.IsZero() {
			snapshots[i].CapturedAt = now
		}
		docs = append(docs, snapshots[i])
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *listingRepository) CountSince(ctx context.Context, source string, since time.Time) (int64, error) {
	filter := bson.M{"captured_at": bson.M{"$gte": since}}
	if source != "" {
		filter["source"] = source
	}
	return r.collection.CountDocuments(ctx, filter)
}

func (r *listingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"captured_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
