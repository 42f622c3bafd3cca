package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/metrics"
	"alcyxob/routine-coach/internal/repository"
)

// --- Error Definitions ---
var (
	ErrRoutineInvalid   = errors.New("name and at least one exercise are required")
	ErrNoValidExercises = errors.New("no valid exercises provided")
	ErrRoutineNotFound  = errors.New("routine not found")
)

// Stages of routine creation. A failure in any stage after the header insert
// rolls back everything written so far.
const (
	StageCreateRoutine   = "create_routine"
	StageBuildExercises  = "build_routine_exercises"
	StageCreateExercises = "create_routine_exercises"
	StageCreateSets      = "create_exercise_sets"
	StageFinalize        = "finalize_routine"

	// Stages that only occur when an update replaces the exercise tree.
	StageUpdateRoutine    = "update_routine"
	StageReplaceExercises = "replace_routine_exercises"
)

const rollbackTimeout = 10 * time.Second

// StageError reports the store failure of one creation stage.
type StageError struct {
	Stage string
	Err   error
	// RollbackErr is set when the compensating deletes failed as well.
	RollbackErr error
}

func (e *StageError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("%s: %v (rollback failed: %v)", e.Stage, e.Err, e.RollbackErr)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RoutineInput is a routine to be saved, as posted by the client.
type RoutineInput struct {
	Name        string
	Description string
	Exercises   []ExerciseDraft
}

// RoutineUpdate renames a routine. With ReplaceExercises set, Exercises
// replaces the whole exercise tree as well.
type RoutineUpdate struct {
	Name             string
	Description      string
	ReplaceExercises bool
	Exercises        []ExerciseDraft
}

// RoutineService defines routine persistence scoped to the calling user.
type RoutineService interface {
	CreateRoutine(ctx context.Context, userID string, input RoutineInput) (*domain.Routine, error)
	GetRoutine(ctx context.Context, userID, routineID string) (*domain.RoutineDetail, error)
	ListRoutines(ctx context.Context, userID string, limit int) ([]domain.Routine, error)
	UpdateRoutine(ctx context.Context, userID, routineID string, update RoutineUpdate) (*domain.Routine, error)
	DeleteRoutine(ctx context.Context, userID, routineID string) error
	// SweepIncomplete deletes routines left incomplete for longer than grace.
	SweepIncomplete(ctx context.Context, grace time.Duration) (int, error)
}

type routineService struct {
	routineRepo         repository.RoutineRepository
	routineExerciseRepo repository.RoutineExerciseRepository
	exerciseSetRepo     repository.ExerciseSetRepository
	exerciseRepo        repository.ExerciseRepository
	metrics             *metrics.Collector
	logger              *zap.Logger
	now                 func() time.Time
}

// NewRoutineService creates a new instance of routineService.
func NewRoutineService(
	routineRepo repository.RoutineRepository,
	routineExerciseRepo repository.RoutineExerciseRepository,
	exerciseSetRepo repository.ExerciseSetRepository,
	exerciseRepo repository.ExerciseRepository,
	collector *metrics.Collector,
	logger *zap.Logger,
) RoutineService {
	return &routineService{
		routineRepo:         routineRepo,
		routineExerciseRepo: routineExerciseRepo,
		exerciseSetRepo:     exerciseSetRepo,
		exerciseRepo:        exerciseRepo,
		metrics:             collector,
		logger:              logger.Named("routines"),
		now:                 time.Now,
	}
}

// compensation undoes one completed write.
type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga collects compensations and runs them in reverse order.
type saga struct {
	steps []compensation
}

func (s *saga) push(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// rollback stops at the first failing compensation so the header, which is
// undone last, survives as an incomplete marker for the sweeper.
func (s *saga) rollback(ctx context.Context) error {
	for i := len(s.steps) - 1; i >= 0; i-- {
		if err := s.steps[i].undo(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.steps[i].name, err)
		}
	}
	return nil
}

// CreateRoutine writes the header, the exercise rows and the set rows, then
// marks the routine complete. Each call creates a new routine.
func (s *routineService) CreateRoutine(ctx context.Context, userID string, input RoutineInput) (*domain.Routine, error) {
	name := strings.TrimSpace(input.Name)
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	if name == "" || len(input.Exercises) == 0 {
		return nil, ErrRoutineInvalid
	}

	logger := s.logger.With(zap.String("userID", userID))

	// 1. Header
	routine := &domain.Routine{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}
	if _, err := s.routineRepo.Create(ctx, routine); err != nil {
		s.metrics.RoutineSave("store_error")
		logger.Error("Failed to create routine header", zap.Error(err))
		return nil, &StageError{Stage: StageCreateRoutine, Err: err}
	}
	logger = logger.With(zap.String("routineID", routine.ID))

	var tx saga
	tx.push("delete routine", func(ctx context.Context) error {
		return ignoreNotFound(s.routineRepo.Delete(ctx, routine.ID, userID))
	})

	// 2. Build child rows
	exerciseRows, setRows := s.buildRows(routine, input.Exercises, logger)
	if len(exerciseRows) == 0 {
		s.abort(ctx, &tx, StageBuildExercises, logger)
		s.metrics.RoutineSave("no_valid_exercises")
		return nil, ErrNoValidExercises
	}

	// 3. Exercise rows. The compensation is registered before the write so a
	// partially applied bulk insert is cleaned up too.
	if err := s.checkCatalogReferences(ctx, exerciseRows); err != nil {
		return nil, s.fail(ctx, &tx, StageCreateExercises, err, logger)
	}
	tx.push("delete routine exercises", func(ctx context.Context) error {
		return s.routineExerciseRepo.DeleteByRoutineID(ctx, routine.ID, userID)
	})
	if err := s.routineExerciseRepo.InsertMany(ctx, exerciseRows); err != nil {
		return nil, s.fail(ctx, &tx, StageCreateExercises, err, logger)
	}

	// 4. Set rows
	parentIDs := routineExerciseIDs(exerciseRows)
	tx.push("delete exercise sets", func(ctx context.Context) error {
		return s.exerciseSetRepo.DeleteByRoutineExerciseIDs(ctx, parentIDs, userID)
	})
	if err := s.exerciseSetRepo.InsertMany(ctx, setRows); err != nil {
		return nil, s.fail(ctx, &tx, StageCreateSets, err, logger)
	}

	// 5. Commit
	if err := s.routineRepo.MarkComplete(ctx, routine.ID, userID); err != nil {
		return nil, s.fail(ctx, &tx, StageFinalize, err, logger)
	}
	routine.Complete = true

	s.metrics.RoutineSave("created")
	logger.Info("Created routine",
		zap.Int("exercises", len(exerciseRows)),
		zap.Int("sets", len(setRows)),
	)
	return routine, nil
}

// buildRows derives RoutineExercise and ExerciseSet rows from the drafts.
// Exercises without an ID or without sets are skipped.
func (s *routineService) buildRows(routine *domain.Routine, drafts []ExerciseDraft, logger *zap.Logger) ([]domain.RoutineExercise, []domain.ExerciseSet) {
	var exerciseRows []domain.RoutineExercise
	var setRows []domain.ExerciseSet

	for i, draft := range drafts {
		ex := SanitizeExercise(draft, i)
		if ex.ExerciseID == "" || len(ex.Sets) == 0 {
			logger.Warn("Skipping unusable exercise",
				zap.Int("position", i),
				zap.String("exerciseID", ex.ExerciseID),
				zap.Int("sets", len(ex.Sets)),
			)
			continue
		}

		first := ex.Sets[0]
		summaryReps := summaryRepsFallback
		if first.Reps != nil {
			summaryReps = *first.Reps
		}

		row := domain.RoutineExercise{
			ID:              uuid.NewString(),
			RoutineID:       routine.ID,
			UserID:          routine.UserID,
			ExerciseID:      ex.ExerciseID,
			Sets:            len(ex.Sets),
			Reps:            summaryReps,
			Weight:          first.Weight,
			DurationMinutes: first.DurationMinutes,
			OrderIndex:      ex.OrderIndex,
			RestSeconds:     ex.RestSeconds,
			Notes:           ex.Notes,
		}
		exerciseRows = append(exerciseRows, row)

		for n, set := range ex.Sets {
			setRows = append(setRows, domain.ExerciseSet{
				ID:                uuid.NewString(),
				RoutineExerciseID: row.ID,
				UserID:            routine.UserID,
				SetNumber:         n + 1,
				Reps:              set.Reps,
				Weight:            set.Weight,
				DurationMinutes:   set.DurationMinutes,
			})
		}
	}
	return exerciseRows, setRows
}

// checkCatalogReferences fails when a row points at an exercise missing from the catalog.
func (s *routineService) checkCatalogReferences(ctx context.Context, rows []domain.RoutineExercise) error {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ExerciseID]; ok {
			continue
		}
		seen[row.ExerciseID] = struct{}{}
		ids = append(ids, row.ExerciseID)
	}

	found, err := s.exerciseRepo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, ex := range found {
		delete(seen, ex.ID)
	}
	if len(seen) == 0 {
		return nil
	}

	missing := make([]string, 0, len(seen))
	for id := range seen {
		missing = append(missing, id)
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: exercise %s", repository.ErrReferenceNotFound, strings.Join(missing, ", "))
}

// fail rolls back and wraps err in a StageError.
func (s *routineService) fail(ctx context.Context, tx *saga, stage string, err error, logger *zap.Logger) error {
	logger.Error("Routine write stage failed", zap.String("stage", stage), zap.Error(err))
	rollbackErr := s.abort(ctx, tx, stage, logger)
	s.metrics.RoutineSave("rolled_back")
	return &StageError{Stage: stage, Err: err, RollbackErr: rollbackErr}
}

// abort runs the compensations even if the request context is already cancelled.
func (s *routineService) abort(ctx context.Context, tx *saga, stage string, logger *zap.Logger) error {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	err := tx.rollback(rbCtx)
	s.metrics.Rollback(stage, err == nil)
	if err != nil {
		// A new header stays incomplete and is removed by the sweeper.
		logger.Error("Rollback failed", zap.String("stage", stage), zap.Error(err))
		return err
	}
	logger.Info("Rolled back routine", zap.String("stage", stage))
	return nil
}

// GetRoutine returns a complete routine with its exercises, catalog entries and sets.
func (s *routineService) GetRoutine(ctx context.Context, userID, routineID string) (*domain.RoutineDetail, error) {
	routine, err := s.getOwnedRoutine(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}

	rows, err := s.routineExerciseRepo.ListByRoutineID(ctx, routine.ID, userID)
	if err != nil {
		return nil, err
	}
	sets, err := s.exerciseSetRepo.ListByRoutineExerciseIDs(ctx, routineExerciseIDs(rows), userID)
	if err != nil {
		return nil, err
	}

	catalogIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		catalogIDs = append(catalogIDs, row.ExerciseID)
	}
	catalog, err := s.exerciseRepo.GetByIDs(ctx, catalogIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Exercise, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}

	setsByParent := make(map[string][]domain.ExerciseSet, len(rows))
	for _, set := range sets {
		setsByParent[set.RoutineExerciseID] = append(setsByParent[set.RoutineExerciseID], set)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OrderIndex < rows[j].OrderIndex })

	detail := &domain.RoutineDetail{Routine: *routine, Exercises: make([]domain.RoutineExerciseDetail, 0, len(rows))}
	for _, row := range rows {
		rowSets := setsByParent[row.ID]
		sort.Slice(rowSets, func(i, j int) bool { return rowSets[i].SetNumber < rowSets[j].SetNumber })
		detail.Exercises = append(detail.Exercises, domain.RoutineExerciseDetail{
			RoutineExercise: row,
			Exercise:        byID[row.ExerciseID],
			SetRows:         rowSets,
		})
	}
	return detail, nil
}

func (s *routineService) ListRoutines(ctx context.Context, userID string, limit int) ([]domain.Routine, error) {
	if limit < 0 {
		limit = 0
	}
	return s.routineRepo.ListByUser(ctx, userID, limit)
}

func (s *routineService) UpdateRoutine(ctx context.Context, userID, routineID string, update RoutineUpdate) (*domain.Routine, error) {
	name := strings.TrimSpace(update.Name)
	if name == "" || (update.ReplaceExercises && len(update.Exercises) == 0) {
		return nil, ErrRoutineInvalid
	}

	routine, err := s.getOwnedRoutine(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}
	previous := *routine
	routine.Name = name
	routine.Description = strings.TrimSpace(update.Description)

	if update.ReplaceExercises {
		return s.replaceExercises(ctx, routine, previous, update.Exercises)
	}

	if err := s.routineRepo.Update(ctx, routine); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoutineNotFound
		}
		return nil, err
	}
	return routine, nil
}

// replaceExercises writes the new exercise and set rows before removing the
// previous ones, so a failed swap leaves the previous tree in place.
func (s *routineService) replaceExercises(ctx context.Context, routine *domain.Routine, previous domain.Routine, drafts []ExerciseDraft) (*domain.Routine, error) {
	userID := routine.UserID
	logger := s.logger.With(zap.String("userID", userID), zap.String("routineID", routine.ID))

	exerciseRows, setRows := s.buildRows(routine, drafts, logger)
	if len(exerciseRows) == 0 {
		s.metrics.RoutineSave("no_valid_exercises")
		return nil, ErrNoValidExercises
	}

	var tx saga
	if err := s.checkCatalogReferences(ctx, exerciseRows); err != nil {
		return nil, s.fail(ctx, &tx, StageCreateExercises, err, logger)
	}
	oldRows, err := s.routineExerciseRepo.ListByRoutineID(ctx, routine.ID, userID)
	if err != nil {
		return nil, err
	}

	// 1. Header
	if err := s.routineRepo.Update(ctx, routine); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoutineNotFound
		}
		return nil, s.fail(ctx, &tx, StageUpdateRoutine, err, logger)
	}
	tx.push("restore routine", func(ctx context.Context) error {
		return ignoreNotFound(s.routineRepo.Update(ctx, &previous))
	})

	// 2. New exercise rows
	newIDs := routineExerciseIDs(exerciseRows)
	tx.push("delete new routine exercises", func(ctx context.Context) error {
		return s.routineExerciseRepo.DeleteByIDs(ctx, newIDs, userID)
	})
	if err := s.routineExerciseRepo.InsertMany(ctx, exerciseRows); err != nil {
		return nil, s.fail(ctx, &tx, StageCreateExercises, err, logger)
	}

	// 3. New set rows
	tx.push("delete new exercise sets", func(ctx context.Context) error {
		return s.exerciseSetRepo.DeleteByRoutineExerciseIDs(ctx, newIDs, userID)
	})
	if err := s.exerciseSetRepo.InsertMany(ctx, setRows); err != nil {
		return nil, s.fail(ctx, &tx, StageCreateSets, err, logger)
	}

	// 4. Drop the previous rows. Once their parents are gone, leftover sets
	// are unreachable, so a failure there is only logged.
	oldIDs := routineExerciseIDs(oldRows)
	if err := s.routineExerciseRepo.DeleteByIDs(ctx, oldIDs, userID); err != nil {
		return nil, s.fail(ctx, &tx, StageReplaceExercises, err, logger)
	}
	if err := s.exerciseSetRepo.DeleteByRoutineExerciseIDs(ctx, oldIDs, userID); err != nil {
		logger.Warn("Could not delete replaced exercise sets", zap.Strings("routineExerciseIDs", oldIDs), zap.Error(err))
	}

	s.metrics.RoutineSave("updated")
	logger.Info("Replaced routine exercises",
		zap.Int("exercises", len(exerciseRows)),
		zap.Int("sets", len(setRows)),
		zap.Int("replaced", len(oldRows)),
	)
	return routine, nil
}

func (s *routineService) DeleteRoutine(ctx context.Context, userID, routineID string) error {
	routine, err := s.getOwnedRoutine(ctx, userID, routineID)
	if err != nil {
		return err
	}
	if err := s.deleteTree(ctx, routine); err != nil {
		return err
	}
	s.logger.Info("Deleted routine", zap.String("userID", userID), zap.String("routineID", routineID))
	return nil
}

// SweepIncomplete removes headers (and any children) that never reached the
// commit stage. grace keeps in-flight creations out of reach.
func (s *routineService) SweepIncomplete(ctx context.Context, grace time.Duration) (int, error) {
	const batchSize = 100

	cutoff := s.now().UTC().Add(-grace)
	stale, err := s.routineRepo.ListIncompleteBefore(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}

	deleted := 0
	var errs []error
	for i := range stale {
		if err := s.deleteTree(ctx, &stale[i]); err != nil {
			errs = append(errs, fmt.Errorf("routine %s: %w", stale[i].ID, err))
			continue
		}
		deleted++
	}
	s.metrics.RoutinesSwept(deleted)
	return deleted, errors.Join(errs...)
}

// getOwnedRoutine hides incomplete routines and routines of other users behind ErrRoutineNotFound.
func (s *routineService) getOwnedRoutine(ctx context.Context, userID, routineID string) (*domain.Routine, error) {
	routine, err := s.routineRepo.GetByID(ctx, routineID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoutineNotFound
		}
		return nil, err
	}
	if !routine.Complete {
		return nil, ErrRoutineNotFound
	}
	return routine, nil
}

// deleteTree deletes children before the header so a failure never leaves orphaned rows.
func (s *routineService) deleteTree(ctx context.Context, routine *domain.Routine) error {
	rows, err := s.routineExerciseRepo.ListByRoutineID(ctx, routine.ID, routine.UserID)
	if err != nil {
		return err
	}
	if err := s.exerciseSetRepo.DeleteByRoutineExerciseIDs(ctx, routineExerciseIDs(rows), routine.UserID); err != nil {
		return err
	}
	if err := s.routineExerciseRepo.DeleteByRoutineID(ctx, routine.ID, routine.UserID); err != nil {
		return err
	}
	return ignoreNotFound(s.routineRepo.Delete(ctx, routine.ID, routine.UserID))
}

func routineExerciseIDs(rows []domain.RoutineExercise) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func ignoreNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
