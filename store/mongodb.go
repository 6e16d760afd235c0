package store

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// expiredTokenRetention is how long a token row survives past expiresAt before
// MongoDB's TTL monitor removes it.
const expiredTokenRetention = 7 * 24 * time.Hour

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var (
	_ RecordStore   = (*DB)(nil)
	_ TokenStore    = (*DB)(nil)
	_ EmailLogStore = (*DB)(nil)
	_ BackupStore   = (*DB)(nil)
	_ UserStore     = (*DB)(nil)
)

func NewMongoDB(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	slog.Info("connected to mongodb", "db", dbName)
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) UserProgress() *mongo.Collection {
	return db.Database.Collection("user_progress")
}

func (db *DB) VerificationTokens() *mongo.Collection {
	return db.Database.Collection("verification_tokens")
}

func (db *DB) EmailLogs() *mongo.Collection {
	return db.Database.Collection("email_logs")
}

func (db *DB) Backups() *mongo.Collection {
	return db.Database.Collection("user_backups")
}

// EnsureIndexes creates the indexes the stores rely on for uniqueness and lookups.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	unused := bson.M{"isUsed": false}
	_, err := db.VerificationTokens().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(unused).SetName("code_unused"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(unused).SetName("email_type_unused"),
		},
		{
			Keys: bson.D{{Key: "code", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(expiredTokenRetention.Seconds())),
		},
		{
			Keys: bson.D{{Key: "isUsed", Value: 1}},
		},
	})
	if err != nil {
		return err
	}
	_, err = db.UserProgress().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "guestId", Value: 1}},
		},
	})
	if err != nil {
		return err
	}
	_, err = db.Backups().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = db.Users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
