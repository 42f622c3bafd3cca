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

const exerciseSetCollectionName = "exercise_sets"

// mongoExerciseSetRepository implements repository.ExerciseSetRepository
type mongoExerciseSetRepository struct {
	collection *mongo.Collection
}

func NewMongoExerciseSetRepository(db *mongo.Database) repository.ExerciseSetRepository {
	return &mongoExerciseSetRepository{
		collection: db.Collection(exerciseSetCollectionName),
	}
}

func (r *mongoExerciseSetRepository) InsertMany(ctx context.Context, rows []domain.ExerciseSet) error {
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

// ListByRoutineExerciseIDs returns the sets of the given parents ordered by parent then setNumber.
func (r *mongoExerciseSetRepository) ListByRoutineExerciseIDs(ctx context.Context, routineExerciseIDs []string, userID string) ([]domain.ExerciseSet, error) {
	rows := []domain.ExerciseSet{}
	if len(routineExerciseIDs) == 0 {
		return rows, nil
	}

	filter := bson.M{"routineExerciseId": bson.M{"$in": routineExerciseIDs}, "userId": userID}
	findOptions := options.Find().SetSort(bson.D{{Key: "routineExerciseId", Value: 1}, {Key: "setNumber", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, cursor.Err()
}

func (r *mongoExerciseSetRepository) DeleteByRoutineExerciseIDs(ctx context.Context, routineExerciseIDs []string, userID string) error {
	if len(routineExerciseIDs) == 0 {
		return nil
	}
	filter := bson.M{"routineExerciseId": bson.M{"$in": routineExerciseIDs}, "userId": userID}
	_, err := r.collection.DeleteMany(ctx, filter)
	return err
}

// EnsureExerciseSetIndexes creates necessary indexes for the exercise_sets collection.
func EnsureExerciseSetIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "routineExerciseId", Value: 1}, {Key: "setNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
