package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/models"
)

// MongoStore persists battles in MongoDB. Physical record expiry rides on a
// TTL index over expiresAt, so shrinking that field is the "set TTL" hint.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoStore(uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(500).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{
		client:   client,
		database: client.Database(database),
	}

	// Create indexes in the background (non-blocking)
	go s.ensureIndexes()

	return s, nil
}

// ensureIndexes creates all required indexes. Called once on startup.
func (s *MongoStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "battleId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "forfeitAt", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}

	if _, err := s.battles().Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("Warning: failed to create indexes on battles: %v", err)
	}
}

func (s *MongoStore) battles() *mongo.Collection {
	return s.database.Collection("battles")
}

func (s *MongoStore) sweepLocks() *mongo.Collection {
	return s.database.Collection("sweep_locks")
}

// NotifyEvents exposes the collection backing the cross-replica notification
// bus.
func (s *MongoStore) NotifyEvents() *mongo.Collection {
	return s.database.Collection("notify_events")
}

func (s *MongoStore) Insert(ctx context.Context, battle *models.Battle) error {
	_, err := s.battles().InsertOne(ctx, battle)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("failed to insert battle: %w", err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, battleID string) (*models.Battle, error) {
	var battle models.Battle
	err := s.battles().FindOne(ctx, bson.M{"battleId": battleID}).Decode(&battle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find battle: %w", err)
	}
	battle.Normalize()
	return &battle, nil
}

func (s *MongoStore) Update(ctx context.Context, battleID string, fields Fields) (*models.Battle, error) {
	return s.findOneAndUpdate(ctx, bson.M{"battleId": battleID}, fields, ErrNotFound)
}

func (s *MongoStore) UpdateIf(ctx context.Context, battleID string, cond Condition, fields Fields) (*models.Battle, error) {
	filter := bson.M{"battleId": battleID}

	if len(cond.StatusIn) > 0 {
		var statuses []models.BattleStatus
		for _, st := range cond.StatusIn {
			statuses = append(statuses, models.StatusSynonyms(st)...)
		}
		filter["status"] = bson.M{"$in": statuses}
	}

	if cond.ResponderIn != nil {
		clause := bson.M{"responderId": bson.M{"$in": cond.ResponderIn}}
		for _, id := range cond.ResponderIn {
			if id == "" {
				// Legacy records may lack the field entirely.
				filter["$or"] = []bson.M{
					clause,
					{"responderId": bson.M{"$exists": false}},
				}
				clause = nil
				break
			}
		}
		if clause != nil {
			filter["responderId"] = clause["responderId"]
		}
	}

	updated, err := s.findOneAndUpdate(ctx, filter, fields, ErrConditionFailed)
	if errors.Is(err, ErrConditionFailed) {
		// Distinguish a lost race from a missing record.
		count, countErr := s.battles().CountDocuments(ctx, bson.M{"battleId": battleID})
		if countErr == nil && count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrConditionFailed
	}
	return updated, err
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, filter bson.M, fields Fields, noMatch error) (*models.Battle, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var battle models.Battle
	err := s.battles().
		FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M(fields)}, opts).
		Decode(&battle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, noMatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update battle: %w", err)
	}
	battle.Normalize()
	return &battle, nil
}

func (s *MongoStore) Delete(ctx context.Context, battleID string) error {
	_, err := s.battles().DeleteOne(ctx, bson.M{"battleId": battleID})
	if err != nil {
		return fmt.Errorf("failed to delete battle: %w", err)
	}
	return nil
}

func (s *MongoStore) FindForfeitDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Battle, error) {
	statuses := append(
		models.StatusSynonyms(models.BattleStatusCreated),
		models.StatusSynonyms(models.BattleStatusJoined)...,
	)
	filter := bson.M{
		"status":    bson.M{"$in": statuses},
		"forfeitAt": bson.M{"$lt": cutoff},
	}

	opts := options.Find().SetLimit(int64(limit))
	cursor, err := s.battles().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query forfeit-due battles: %w", err)
	}
	defer cursor.Close(ctx)

	var battles []models.Battle
	if err := cursor.All(ctx, &battles); err != nil {
		return nil, fmt.Errorf("failed to decode forfeit-due battles: %w", err)
	}
	for i := range battles {
		battles[i].Normalize()
	}
	return battles, nil
}

func (s *MongoStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()

	filter := bson.M{
		"_id": name,
		"$or": []bson.M{
			{"lockedUntil": bson.M{"$exists": false}},
			{"lockedUntil": bson.M{"$lt": now}},
		},
	}

	update := bson.M{
		"$set": bson.M{
			"lockedUntil": now.Add(ttl),
			"lockedBy":    owner,
			"lockedAt":    now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := s.sweepLocks().FindOneAndUpdate(ctx, filter, update, opts).Err()
	if err != nil {
		// Duplicate key or no match: another owner holds the lock.
		// Anything else is a transport failure the caller must see.
		if mongo.IsDuplicateKeyError(err) || errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return true, nil
}

func (s *MongoStore) ReleaseLock(ctx context.Context, name, owner string) error {
	_, err := s.sweepLocks().UpdateOne(ctx,
		bson.M{"_id": name, "lockedBy": owner},
		bson.M{"$set": bson.M{"lockedUntil": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
