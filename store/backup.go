package store

import (
	"context"

	"github.com/kevinaaaquil/readersync/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertBackup(ctx context.Context, b *models.UserBackup) error {
	res, err := db.Backups().InsertOne(ctx, b)
	if err != nil {
		return err
	}
	b.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) BackupsByEmail(ctx context.Context, email string) ([]models.UserBackup, error) {
	cur, err := db.Backups().Find(ctx, bson.M{"email": email}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	backups := []models.UserBackup{}
	if err := cur.All(ctx, &backups); err != nil {
		return nil, err
	}
	return backups, nil
}

func (db *DB) BackupByID(ctx context.Context, id primitive.ObjectID) (*models.UserBackup, error) {
	var b models.UserBackup
	err := db.Backups().FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) DeleteBackup(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Backups().DeleteOne(ctx, bson.M{"_id": id})
	return err
}
