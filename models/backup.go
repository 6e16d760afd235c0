package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserBackup points at a JSON snapshot of a progress record archived in S3.
type UserBackup struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	GuestID   string             `bson:"guestId" json:"guestId"`
	S3Key     string             `bson:"s3Key" json:"-"`
	SyncType  SyncType           `bson:"syncType" json:"syncType"`
	Revision  int64              `bson:"revision" json:"revision"`
	SizeBytes int64              `bson:"sizeBytes" json:"sizeBytes"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
