package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmailLog records an attempt to deliver a verification email.
type EmailLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ToEmail   string             `bson:"toEmail" json:"toEmail"`
	Purpose   TokenType          `bson:"purpose" json:"purpose"`
	Subject   string             `bson:"subject" json:"subject"`
	Transport string             `bson:"transport" json:"transport"` // smtp or log
	Delivered bool               `bson:"delivered" json:"delivered"`
	Error     string             `bson:"error,omitempty" json:"error,omitempty"`
	SentAt    time.Time          `bson:"sentAt" json:"sentAt"`
}
