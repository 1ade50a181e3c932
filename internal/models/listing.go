package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingSnapshot is one captured state of an external listing, written by
// the listings_fetch ETL plugin.
type ListingSnapshot struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Source     string             `bson:"source" json:"source"`
	ListingID  string             `bson:"listing_id" json:"listing_id"`
	Address    string             `bson:"address,omitempty" json:"address,omitempty"`
	City       string             `bson:"city,omitempty" json:"city,omitempty"`
	Price      float64            `bson:"price" json:"price"`
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`
	CapturedAt time.Time          `bson:"captured_at" json:"captured_at"`
}
