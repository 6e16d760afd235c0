package store

import (
	"context"
	"time"

	"github.com/kevinaaaquil/readersync/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) FindActiveToken(ctx context.Context, email string, typ models.TokenType, now time.Time) (*models.VerificationToken, error) {
	filter := bson.M{
		"email":     email,
		"type":      typ,
		"isUsed":    false,
		"expiresAt": bson.M{"$gt": now},
	}
	var tok models.VerificationToken
	err := db.VerificationTokens().FindOne(ctx, filter, options.FindOne().SetSort(bson.M{"createdAt": -1})).Decode(&tok)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (db *DB) PurgeStaleTokens(ctx context.Context, email string, typ models.TokenType, now time.Time) error {
	_, err := db.VerificationTokens().DeleteMany(ctx, bson.M{
		"email":     email,
		"type":      typ,
		"isUsed":    false,
		"expiresAt": bson.M{"$lte": now},
	})
	return err
}

func (db *DB) InsertToken(ctx context.Context, tok *models.VerificationToken) error {
	if tok.ID.IsZero() {
		tok.ID = primitive.NewObjectID()
	}
	_, err := db.VerificationTokens().InsertOne(ctx, tok)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (db *DB) ConsumeToken(ctx context.Context, code string, typ models.TokenType, now time.Time) (*models.VerificationToken, error) {
	filter := bson.M{
		"code":      code,
		"type":      typ,
		"isUsed":    false,
		"expiresAt": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"isUsed": true, "usedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var tok models.VerificationToken
	err := db.VerificationTokens().FindOneAndUpdate(ctx, filter, update, opts).Decode(&tok)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (db *DB) RecordTokenAttempt(ctx context.Context, code string, now time.Time) error {
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"lastAttemptAt": now},
	}
	opts := options.FindOneAndUpdate().SetSort(bson.M{"createdAt": -1})
	err := db.VerificationTokens().FindOneAndUpdate(ctx, bson.M{"code": code}, update, opts).Err()
	if err == mongo.ErrNoDocuments {
		return nil
	}
	return err
}

func (db *DB) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.VerificationTokens().DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (db *DB) TokenStats(ctx context.Context, now time.Time) (models.TokenStatistics, error) {
	coll := db.VerificationTokens()
	stats := models.TokenStatistics{ByType: map[models.TokenType]int64{}}
	var err error
	if stats.Total, err = coll.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, err
	}
	if stats.Used, err = coll.CountDocuments(ctx, bson.M{"isUsed": true}); err != nil {
		return stats, err
	}
	if stats.Active, err = coll.CountDocuments(ctx, bson.M{"isUsed": false, "expiresAt": bson.M{"$gt": now}}); err != nil {
		return stats, err
	}
	if stats.Expired, err = coll.CountDocuments(ctx, bson.M{"isUsed": false, "expiresAt": bson.M{"$lte": now}}); err != nil {
		return stats, err
	}

	cur, err := coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$type"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return stats, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		Type  models.TokenType `bson:"_id"`
		Count int64            `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return stats, err
	}
	for _, r := range rows {
		stats.ByType[r.Type] = r.Count
	}
	return stats, nil
}
