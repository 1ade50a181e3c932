package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MetricSample is one point of a named time series. Samples are append-only;
// multiple samples per name/component/timestamp are valid.
type MetricSample struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Value     float64            `bson:"value" json:"value"`
	Unit      string             `bson:"unit,omitempty" json:"unit,omitempty"`
	Category  string             `bson:"category,omitempty" json:"category,omitempty"`
	Component string             `bson:"component" json:"component"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
