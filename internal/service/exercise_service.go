package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/repository"
)

// --- Error Definitions ---
var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrExerciseExists   = errors.New("exercise with this ID already exists")
	ErrValidationFailed = errors.New("exercise validation failed")
)

const maxExercisePageSize = 100

// ExerciseService manages the shared exercise catalog.
type ExerciseService interface {
	CreateExercise(ctx context.Context, exercise *domain.Exercise) (*domain.Exercise, error)
	GetExerciseByID(ctx context.Context, exerciseID string) (*domain.Exercise, error)
	ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error)
}

// exerciseService implements the ExerciseService interface.
type exerciseService struct {
	exerciseRepo repository.ExerciseRepository
	catalogCache CatalogCache // optional
	logger       *zap.Logger
}

// NewExerciseService creates a new instance of exerciseService. catalogCache may be nil.
func NewExerciseService(exerciseRepo repository.ExerciseRepository, catalogCache CatalogCache, logger *zap.Logger) ExerciseService {
	return &exerciseService{
		exerciseRepo: exerciseRepo,
		catalogCache: catalogCache,
		logger:       logger.Named("exercises"),
	}
}

// CreateExercise adds a catalog entry and drops cached catalog snapshots.
func (s *exerciseService) CreateExercise(ctx context.Context, exercise *domain.Exercise) (*domain.Exercise, error) {
	exercise.Name = strings.TrimSpace(exercise.Name)
	if exercise.Name == "" {
		return nil, ErrValidationFailed
	}

	if _, err := s.exerciseRepo.Create(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrExerciseExists
		}
		return nil, err
	}

	if s.catalogCache != nil {
		if err := s.catalogCache.InvalidateCatalog(ctx); err != nil {
			s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
		}
	}
	s.logger.Info("Created exercise", zap.String("exerciseID", exercise.ID), zap.String("name", exercise.Name))
	return exercise, nil
}

func (s *exerciseService) GetExerciseByID(ctx context.Context, exerciseID string) (*domain.Exercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return exercise, nil
}

// ListExercises pages through the catalog ordered by name.
func (s *exerciseService) ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	if filter.Limit <= 0 || filter.Limit > maxExercisePageSize {
		filter.Limit = maxExercisePageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.MuscleGroup = strings.TrimSpace(filter.MuscleGroup)
	return s.exerciseRepo.List(ctx, filter)
}
