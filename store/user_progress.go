package store

import (
	"context"

	"github.com/kevinaaaquil/readersync/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (db *DB) findProgress(ctx context.Context, filter bson.M) (*models.UserProgressRecord, error) {
	var rec models.UserProgressRecord
	err := db.UserProgress().FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (db *DB) FindProgressByEmail(ctx context.Context, email string) (*models.UserProgressRecord, error) {
	return db.findProgress(ctx, bson.M{"email": email})
}

func (db *DB) FindProgressByGuest(ctx context.Context, guestID string) (*models.UserProgressRecord, error) {
	return db.findProgress(ctx, bson.M{"guestId": guestID})
}

func (db *DB) FindProgressByEmailOrGuest(ctx context.Context, email, guestID string) (*models.UserProgressRecord, error) {
	if email != "" {
		rec, err := db.FindProgressByEmail(ctx, email)
		if err != nil || rec != nil {
			return rec, err
		}
	}
	if guestID == "" {
		return nil, nil
	}
	return db.FindProgressByGuest(ctx, guestID)
}

func (db *DB) CreateProgress(ctx context.Context, rec *models.UserProgressRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	rec.Revision = 1
	_, err := db.UserProgress().InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (db *DB) ReplaceProgress(ctx context.Context, rec *models.UserProgressRecord) error {
	expected := rec.Revision
	next := *rec
	next.Revision = expected + 1
	res, err := db.UserProgress().ReplaceOne(ctx, bson.M{"_id": rec.ID, "revision": expected}, &next)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	rec.Revision = next.Revision
	return nil
}

func (db *DB) DeleteProgress(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.UserProgress().DeleteOne(ctx, bson.M{"_id": id})
	return err
}
