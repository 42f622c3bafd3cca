package repository

import (
	"context"
	"time"

	"alcyxob/routine-coach/internal/domain"
)

var (
	ErrNotFound          = RepositoryError("not found")
	ErrDuplicate         = RepositoryError("duplicate key")
	ErrReferenceNotFound = RepositoryError("referenced record not found")
	ErrUpdateFailed      = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (string, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, profile domain.Profile) error
}

// ExerciseFilter narrows a catalog listing. Results are ordered by name.
type ExerciseFilter struct {
	Search      string
	MuscleGroup string
	Limit       int
	Offset      int
}

// ExerciseRepository defines the interface for the shared exercise catalog.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Exercise, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Exercise, error)
	List(ctx context.Context, filter ExerciseFilter) ([]domain.Exercise, error)
}

// RoutineRepository stores routine headers. Every method except the sweep
// helper is scoped to the owning user.
type RoutineRepository interface {
	Create(ctx context.Context, routine *domain.Routine) (string, error)
	GetByID(ctx context.Context, id, userID string) (*domain.Routine, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Routine, error)
	Update(ctx context.Context, routine *domain.Routine) error
	MarkComplete(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id, userID string) error
	ListIncompleteBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Routine, error)
}

// RoutineExerciseRepository stores the exercise rows of a routine.
type RoutineExerciseRepository interface {
	InsertMany(ctx context.Context, rows []domain.RoutineExercise) error
	ListByRoutineID(ctx context.Context, routineID, userID string) ([]domain.RoutineExercise, error)
	DeleteByRoutineID(ctx context.Context, routineID, userID string) error
	DeleteByIDs(ctx context.Context, ids []string, userID string) error
}

// ExerciseSetRepository stores the per-set rows of routine exercises.
type ExerciseSetRepository interface {
	InsertMany(ctx context.Context, rows []domain.ExerciseSet) error
	ListByRoutineExerciseIDs(ctx context.Context, routineExerciseIDs []string, userID string) ([]domain.ExerciseSet, error)
	DeleteByRoutineExerciseIDs(ctx context.Context, routineExerciseIDs []string, userID string) error
}
