package store

import (
	"context"

	"github.com/kevinaaaquil/readersync/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertEmailLog records a verification email delivery attempt.
func (db *DB) InsertEmailLog(ctx context.Context, log *models.EmailLog) error {
	_, err := db.EmailLogs().InsertOne(ctx, log, options.InsertOne())
	return err
}
