package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/metrics"
	"alcyxob/routine-coach/internal/repository"
)

var errInjected = errors.New("injected store failure")

// memStore is an in-memory implementation of every repository used by the
// services. fail maps an operation name to the error it should return.
type memStore struct {
	mu sync.Mutex

	users            map[string]domain.User
	exercises        map[string]domain.Exercise
	routines         map[string]domain.Routine
	routineExercises map[string]domain.RoutineExercise
	exerciseSets     map[string]domain.ExerciseSet

	fail  map[string]error
	calls map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		users:            map[string]domain.User{},
		exercises:        map[string]domain.Exercise{},
		routines:         map[string]domain.Routine{},
		routineExercises: map[string]domain.RoutineExercise{},
		exerciseSets:     map[string]domain.ExerciseSet{},
		fail:             map[string]error{},
		calls:            map[string]int{},
	}
}

func (m *memStore) failOn(op string, err error) { m.fail[op] = err }

func (m *memStore) call(op string) error {
	m.calls[op]++
	return m.fail[op]
}

func (m *memStore) seedExercise(id, name, group string) domain.Exercise {
	ex := domain.Exercise{ID: id, Name: name, Description: name + " description", MuscleGroup: group}
	m.exercises[id] = ex
	return ex
}

// --- users ---

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, user *domain.User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("users.Create"); err != nil {
		return "", err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return "", repository.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return user.ID, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) UpdateProfile(_ context.Context, id string, profile domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("users.UpdateProfile"); err != nil {
		return err
	}
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Profile = profile
	r.users[id] = u
	return nil
}

// --- exercises ---

type memExercises struct{ *memStore }

func (r memExercises) Create(_ context.Context, exercise *domain.Exercise) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("exercises.Create"); err != nil {
		return "", err
	}
	if exercise.ID == "" {
		exercise.ID = uuid.NewString()
	}
	if _, ok := r.exercises[exercise.ID]; ok {
		return "", repository.ErrDuplicate
	}
	r.exercises[exercise.ID] = *exercise
	return exercise.ID, nil
}

func (r memExercises) GetByID(_ context.Context, id string) (*domain.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("exercises.GetByID"); err != nil {
		return nil, err
	}
	ex, ok := r.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ex, nil
}

func (r memExercises) GetByIDs(_ context.Context, ids []string) ([]domain.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("exercises.GetByIDs"); err != nil {
		return nil, err
	}
	var out []domain.Exercise
	for _, id := range ids {
		if ex, ok := r.exercises[id]; ok {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (r memExercises) List(_ context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("exercises.List"); err != nil {
		return nil, err
	}
	out := []domain.Exercise{}
	for _, ex := range r.exercises {
		if filter.Search != "" && !strings.Contains(strings.ToLower(ex.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.MuscleGroup != "" && !strings.EqualFold(ex.MuscleGroup, filter.MuscleGroup) {
			continue
		}
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Exercise{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- routines ---

type memRoutines struct{ *memStore }

func (r memRoutines) Create(_ context.Context, routine *domain.Routine) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routines.Create"); err != nil {
		return "", err
	}
	routine.ID = uuid.NewString()
	routine.CreatedAt = time.Now().UTC()
	routine.UpdatedAt = routine.CreatedAt
	r.routines[routine.ID] = *routine
	return routine.ID, nil
}

func (r memRoutines) GetByID(_ context.Context, id, userID string) (*domain.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routines.GetByID"); err != nil {
		return nil, err
	}
	routine, ok := r.routines[id]
	if !ok || routine.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &routine, nil
}

func (r memRoutines) ListByUser(_ context.Context, userID string, limit int) ([]domain.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routines.ListByUser"); err != nil {
		return nil, err
	}
	out := []domain.Routine{}
	for _, routine := range r.routines {
		if routine.UserID == userID && routine.Complete {
			out = append(out, routine)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memRoutines) Update(_ context.Context, routine *domain.Routine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routines.Update"); err != nil {
		return err
	}
	stored, ok := r.routines[routine.ID]
	if !ok || stored.UserID != routine.UserID {
		return repository.ErrNotFound
	}
	stored.Name = routine.Name
	stored.Description = routine.Description
	stored.UpdatedAt = time.Now().UTC()
	r.routines[routine.ID] = stored
	return nil
}

func (r memRoutines) MarkComplete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routines.MarkComplete"); err != nil {
		return err
	}
	stored, ok := r.routines[id]
	if !ok || stored.UserID != userID {
		return repository.ErrNotFound
	}
	stored.Complete = true
	r.routines[id] = stored
	return nil
}

func (r memRoutines) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routines.Delete"); err != nil {
		return err
	}
	stored, ok := r.routines[id]
	if !ok || stored.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.routines, id)
	return nil
}

func (r memRoutines) ListIncompleteBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routines.ListIncompleteBefore"); err != nil {
		return nil, err
	}
	var out []domain.Routine
	for _, routine := range r.routines {
		if !routine.Complete && routine.CreatedAt.Before(cutoff) {
			out = append(out, routine)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- routine exercises ---

type memRoutineExercises struct{ *memStore }

func (r memRoutineExercises) InsertMany(_ context.Context, rows []domain.RoutineExercise) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routineExercises.InsertMany"); err != nil {
		return err
	}
	for _, row := range rows {
		r.routineExercises[row.ID] = row
	}
	return nil
}

func (r memRoutineExercises) ListByRoutineID(_ context.Context, routineID, userID string) ([]domain.RoutineExercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routineExercises.ListByRoutineID"); err != nil {
		return nil, err
	}
	out := []domain.RoutineExercise{}
	for _, row := range r.routineExercises {
		if row.RoutineID == routineID && row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r memRoutineExercises) DeleteByRoutineID(_ context.Context, routineID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routineExercises.DeleteByRoutineID"); err != nil {
		return err
	}
	for id, row := range r.routineExercises {
		if row.RoutineID == routineID && row.UserID == userID {
			delete(r.routineExercises, id)
		}
	}
	return nil
}

func (r memRoutineExercises) DeleteByIDs(_ context.Context, ids []string, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("routineExercises.DeleteByIDs"); err != nil {
		return err
	}
	for id := range toSet(ids) {
		if row, ok := r.routineExercises[id]; ok && row.UserID == userID {
			delete(r.routineExercises, id)
		}
	}
	return nil
}

// --- exercise sets ---

type memExerciseSets struct{ *memStore }

func (r memExerciseSets) InsertMany(_ context.Context, rows []domain.ExerciseSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("exerciseSets.InsertMany"); err != nil {
		return err
	}
	for _, row := range rows {
		r.exerciseSets[row.ID] = row
	}
	return nil
}

func (r memExerciseSets) ListByRoutineExerciseIDs(_ context.Context, ids []string, userID string) ([]domain.ExerciseSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("exerciseSets.ListByRoutineExerciseIDs"); err != nil {
		return nil, err
	}
	parents := toSet(ids)
	out := []domain.ExerciseSet{}
	for _, row := range r.exerciseSets {
		if _, ok := parents[row.RoutineExerciseID]; ok && row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r memExerciseSets) DeleteByRoutineExerciseIDs(_ context.Context, ids []string, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("exerciseSets.DeleteByRoutineExerciseIDs"); err != nil {
		return err
	}
	parents := toSet(ids)
	for id, row := range r.exerciseSets {
		if _, ok := parents[row.RoutineExerciseID]; ok && row.UserID == userID {
			delete(r.exerciseSets, id)
		}
	}
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// --- catalog cache ---

type memCatalogCache struct {
	mu          sync.Mutex
	entries     map[int][]domain.Exercise
	getErr      error
	invalidated int
}

func newMemCatalogCache() *memCatalogCache {
	return &memCatalogCache{entries: map[int][]domain.Exercise{}}
}

func (c *memCatalogCache) GetCatalog(_ context.Context, limit int) ([]domain.Exercise, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	ex, ok := c.entries[limit]
	return ex, ok, nil
}

func (c *memCatalogCache) SetCatalog(_ context.Context, limit int, exercises []domain.Exercise) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[limit] = exercises
	return nil
}

func (c *memCatalogCache) InvalidateCatalog(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[int][]domain.Exercise{}
	c.invalidated++
	return nil
}

// --- archive ---

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *memArchive) PutObject(_ context.Context, key, _ string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = body
	return nil
}

func newTestCollector(t *testing.T) *metrics.Collector {
	t.Helper()
	return metrics.New(prometheus.NewRegistry())
}

func float64Ptr(v float64) *float64 { return &v }
