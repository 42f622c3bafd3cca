package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"alcyxob/routine-coach/internal/ai"
	"alcyxob/routine-coach/internal/config"
	"alcyxob/routine-coach/internal/domain"
)

type fakeProvider struct {
	mu         sync.Mutex
	configured bool
	generate   func(ctx context.Context, req ai.Request) (string, error)
	requests   []ai.Request
}

func (p *fakeProvider) Generate(ctx context.Context, req ai.Request) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return p.generate(ctx, req)
}

func (p *fakeProvider) Configured() bool { return p.configured }
func (p *fakeProvider) Name() string     { return "fake" }

func (p *fakeProvider) lastRequest(t *testing.T) ai.Request {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.requests)
	return p.requests[len(p.requests)-1]
}

func replying(text string) func(context.Context, ai.Request) (string, error) {
	return func(context.Context, ai.Request) (string, error) { return text, nil }
}

type generationFixture struct {
	store    *memStore
	provider *fakeProvider
	cache    *memCatalogCache
	archive  *memArchive
	svc      *generationService
}

func newGenerationFixture(t *testing.T, cfg config.AIConfig) *generationFixture {
	t.Helper()
	store := newMemStore()
	provider := &fakeProvider{configured: true, generate: replying("ok")}
	cache := newMemCatalogCache()
	archive := &memArchive{}

	svc := NewGenerationService(provider, memUsers{store}, memExercises{store}, cache, archive, cfg, newTestCollector(t), zaptest.NewLogger(t)).(*generationService)
	svc.now = func() time.Time { return date(2024, time.March, 15) }

	return &generationFixture{store: store, provider: provider, cache: cache, archive: archive, svc: svc}
}

func TestGenerationService_ChatIncludesProfile(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{ChatModel: "chat-model"})
	user := &domain.User{Email: "a@b.c", Profile: domain.Profile{FullName: "Alex", HeightCm: float64Ptr(170), WeightKg: float64Ptr(70)}}
	_, err := memUsers{f.store}.Create(context.Background(), user)
	require.NoError(t, err)
	f.provider.generate = replying("Squeeze your glutes.")

	res, err := f.svc.Chat(context.Background(), user.ID, "How do I squat?")
	require.NoError(t, err)
	assert.Equal(t, "Squeeze your glutes.", res.Response)

	req := f.provider.lastRequest(t)
	assert.Equal(t, "chat-model", req.Model)
	assert.Contains(t, req.Prompt, "- Name: Alex")
	assert.Contains(t, req.Prompt, "- BMI: 24.2 (Normal weight)")
	assert.True(t, strings.HasSuffix(req.Prompt, "User question: How do I squat?"))
}

func TestGenerationService_ChatAnonymous(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{})

	_, err := f.svc.Chat(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.NotContains(t, f.provider.lastRequest(t).Prompt, "USER PROFILE CONTEXT")
}

func TestGenerationService_EmptyPrompt(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{})

	_, err := f.svc.Chat(context.Background(), "", "   ")
	assert.ErrorIs(t, err, ErrPromptRequired)
	_, err = f.svc.GenerateRoutines(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrPromptRequired)
	assert.Empty(t, f.provider.requests)
}

func TestGenerationService_ChatTimeout(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{ChatTimeout: 20 * time.Millisecond})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.provider.generate = func(ctx context.Context, _ ai.Request) (string, error) {
		<-release
		return "too late", nil
	}

	_, err := f.svc.Chat(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ai.ErrTimeout)
}

func TestGenerationService_GenerateStructured(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{RoutineModel: "routine-model", CatalogLimit: 30})
	f.store.seedExercise("ex-bench", "Bench Press", "Chest")
	f.store.seedExercise("ex-dip", "Dip", "Triceps")
	f.provider.generate = replying("```json\n" + `{
		"routines": [{
			"name": "Push Day",
			"description": "Upper body push",
			"exercises": [
				{"exercise_id": "ex-bench", "sets": [{"reps": "8-10"}, {"reps": 8}], "order_index": 0},
				{"exercise_id": "ex-dip", "sets": [{"reps": "to failure"}], "rest_seconds": 45, "notes": "Lean forward"}
			]
		}],
		"explanation": "Classic push split"
	}` + "\n```")

	res, err := f.svc.GenerateRoutines(context.Background(), "", "push day")
	require.NoError(t, err)
	require.True(t, res.Structured)
	assert.Equal(t, "Classic push split", res.Explanation)
	require.Len(t, res.Routines, 1)

	routine := res.Routines[0]
	assert.Equal(t, "Push Day", routine.Name)
	require.Len(t, routine.Exercises, 2)
	assert.Equal(t, 8, *routine.Exercises[0].Sets[0].Reps)
	assert.Equal(t, DefaultRestSeconds, routine.Exercises[0].RestSeconds)
	assert.Equal(t, DefaultExerciseNotes, routine.Exercises[0].Notes)
	assert.Equal(t, 15, *routine.Exercises[1].Sets[0].Reps)
	assert.Equal(t, 1, routine.Exercises[1].OrderIndex)
	assert.Equal(t, 45, routine.Exercises[1].RestSeconds)

	req := f.provider.lastRequest(t)
	assert.Equal(t, "routine-model", req.Model)
	assert.Contains(t, req.Prompt, "- Bench Press (ex-bench)")
	assert.Contains(t, req.Prompt, "USER REQUEST: push day")
	assert.Empty(t, f.archive.objects)
}

func TestGenerationService_GenerateFallbackArchives(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{})
	f.store.seedExercise("ex-1", "Squat", "Legs")
	f.provider.generate = replying("Try squats and lunges three times a week.")

	res, err := f.svc.GenerateRoutines(context.Background(), "user-1", "legs")
	require.NoError(t, err)
	assert.False(t, res.Structured)
	assert.Nil(t, res.Routines)
	assert.Equal(t, "Try squats and lunges three times a week.", res.Response)

	require.Len(t, f.archive.objects, 1)
	for key, body := range f.archive.objects {
		assert.True(t, strings.HasPrefix(key, "generations/2024/03/15/user-1/"), key)
		var record generationArchiveRecord
		require.NoError(t, json.Unmarshal(body, &record))
		assert.Equal(t, "legs", record.Prompt)
		assert.Equal(t, res.Response, record.Response)
	}
}

func TestGenerationService_NoCatalog(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{})

	_, err := f.svc.GenerateRoutines(context.Background(), "", "anything")
	assert.ErrorIs(t, err, ErrNoCatalog)
	assert.Empty(t, f.provider.requests)
}

func TestGenerationService_CatalogUnavailable(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{})
	f.store.failOn("exercises.List", errInjected)

	_, err := f.svc.GenerateRoutines(context.Background(), "", "anything")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Contains(t, err.Error(), errInjected.Error())
}

func TestGenerationService_CatalogCache(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{CatalogLimit: 2})
	f.store.seedExercise("c", "Curl", "Arms")
	f.store.seedExercise("a", "Air Squat", "Legs")
	f.store.seedExercise("b", "Burpee", "Full body")

	_, err := f.svc.GenerateRoutines(context.Background(), "", "one")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.calls["exercises.List"])

	cached, ok, err := f.cache.GetCatalog(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"Air Squat", "Burpee"}, []string{cached[0].Name, cached[1].Name})

	_, err = f.svc.GenerateRoutines(context.Background(), "", "two")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.calls["exercises.List"], "second call served from cache")
	assert.NotContains(t, f.provider.lastRequest(t).Prompt, "Curl")
}

func TestGenerationService_CacheErrorFallsThrough(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{})
	f.store.seedExercise("a", "Air Squat", "Legs")
	f.cache.getErr = errors.New("redis down")

	_, err := f.svc.GenerateRoutines(context.Background(), "", "legs")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.calls["exercises.List"])
}

func TestGenerationService_ProviderError(t *testing.T) {
	f := newGenerationFixture(t, config.AIConfig{})
	f.store.seedExercise("a", "Air Squat", "Legs")
	apiErr := &ai.APIError{Provider: "fake", StatusCode: 500, Message: "boom"}
	f.provider.generate = func(context.Context, ai.Request) (string, error) { return "", apiErr }

	_, err := f.svc.GenerateRoutines(context.Background(), "", "legs")
	var got *ai.APIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 500, got.StatusCode)
}
