package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/repository"
)

const routineExerciseCollectionName = "routine_exercises"

// mongoRoutineExerciseRepository implements repository.RoutineExerciseRepository
type mongoRoutineExerciseRepository struct {
	collection *mongo.Collection
}

func NewMongoRoutineExerciseRepository(db *mongo.Database) repository.RoutineExerciseRepository {
	return &mongoRoutineExerciseRepository{
		collection: db.Collection(routineExerciseCollectionName),
	}
}

// InsertMany bulk inserts rows in order. Rows without an ID get one assigned.
func (r *mongoRoutineExerciseRepository) InsertMany(ctx context.Context, rows []domain.RoutineExercise) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(rows))
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		rows[i].CreatedAt = now
		docs[i] = rows[i]
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

// ListByRoutineID returns the rows of one routine ordered by orderIndex.
func (r *mongoRoutineExerciseRepository) ListByRoutineID(ctx context.Context, routineID, userID string) ([]domain.RoutineExercise, error) {
	filter := bson.M{"routineId": routineID, "userId": userID}
	findOptions := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rows := []domain.RoutineExercise{}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, cursor.Err()
}

// DeleteByRoutineID removes every row of a routine. Deleting nothing is not an error.
func (r *mongoRoutineExerciseRepository) DeleteByRoutineID(ctx context.Context, routineID, userID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"routineId": routineID, "userId": userID})
	return err
}

// DeleteByIDs removes the given rows of one owner.
func (r *mongoRoutineExerciseRepository) DeleteByIDs(ctx context.Context, ids []string, userID string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "userId": userID})
	return err
}

// EnsureRoutineExerciseIndexes creates necessary indexes for the routine_exercises collection.
func EnsureRoutineExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "routineId", Value: 1}, {Key: "orderIndex", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
