package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/repository"
)

const routineCollectionName = "routines"

// mongoRoutineRepository implements repository.RoutineRepository
type mongoRoutineRepository struct {
	collection *mongo.Collection
}

// NewMongoRoutineRepository creates a new Routine repository backed by MongoDB.
func NewMongoRoutineRepository(db *mongo.Database) repository.RoutineRepository {
	return &mongoRoutineRepository{
		collection: db.Collection(routineCollectionName),
	}
}

// Create inserts a new routine header.
func (r *mongoRoutineRepository) Create(ctx context.Context, routine *domain.Routine) (string, error) {
	if routine.Name == "" || routine.UserID == "" {
		return "", errors.New("routine name and user ID are required")
	}

	routine.ID = uuid.NewString()
	now := time.Now().UTC()
	routine.CreatedAt = now
	routine.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, routine); err != nil {
		return "", err
	}
	return routine.ID, nil
}

// GetByID retrieves a routine owned by userID.
func (r *mongoRoutineRepository) GetByID(ctx context.Context, id, userID string) (*domain.Routine, error) {
	var routine domain.Routine
	filter := bson.M{"_id": id, "userId": userID}

	err := r.collection.FindOne(ctx, filter).Decode(&routine)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &routine, nil
}

// ListByUser returns the user's complete routines, newest first. A limit of 0 means no limit.
func (r *mongoRoutineRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Routine, error) {
	filter := bson.M{"userId": userID, "complete": true}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	routines := []domain.Routine{}
	if err = cursor.All(ctx, &routines); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return routines, nil
}

// Update changes the name and description of an owned routine.
func (r *mongoRoutineRepository) Update(ctx context.Context, routine *domain.Routine) error {
	if routine.ID == "" || routine.UserID == "" {
		return errors.New("routine ID and user ID are required for update")
	}

	routine.UpdatedAt = time.Now().UTC()
	filter := bson.M{"_id": routine.ID, "userId": routine.UserID}
	update := bson.M{
		"$set": bson.M{
			"name":        routine.Name,
			"description": routine.Description,
			"updatedAt":   routine.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkComplete flags a routine as fully written.
func (r *mongoRoutineRepository) MarkComplete(ctx context.Context, id, userID string) error {
	filter := bson.M{"_id": id, "userId": userID}
	update := bson.M{"$set": bson.M{"complete": true, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a routine header, ensuring it belongs to userID.
func (r *mongoRoutineRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListIncompleteBefore returns headers still marked incomplete that were created before cutoff.
func (r *mongoRoutineRepository) ListIncompleteBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Routine, error) {
	filter := bson.M{"complete": false, "createdAt": bson.M{"$lt": cutoff}}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	routines := []domain.Routine{}
	if err = cursor.All(ctx, &routines); err != nil {
		return nil, err
	}
	return routines, cursor.Err()
}

// EnsureRoutineIndexes creates necessary indexes for the routines collection.
func EnsureRoutineIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "complete", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			// Sweep of incomplete headers
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{"complete": false}),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
