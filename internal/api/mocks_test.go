package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"alcyxob/routine-coach/internal/config"
	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/repository"
	"alcyxob/routine-coach/internal/service"
)

const testSecret = "api-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// --- service mocks ---

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	args := m.Called(ctx, name, email, password)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(1).(*domain.User)
	return args.String(0), user, args.Error(2)
}

type mockProfileService struct{ mock.Mock }

func (m *mockProfileService) GetProfile(ctx context.Context, userID string) (*service.ProfileView, error) {
	args := m.Called(ctx, userID)
	view, _ := args.Get(0).(*service.ProfileView)
	return view, args.Error(1)
}

func (m *mockProfileService) UpdateProfile(ctx context.Context, userID string, profile domain.Profile) (*service.ProfileView, error) {
	args := m.Called(ctx, userID, profile)
	view, _ := args.Get(0).(*service.ProfileView)
	return view, args.Error(1)
}

type mockExerciseService struct{ mock.Mock }

func (m *mockExerciseService) CreateExercise(ctx context.Context, exercise *domain.Exercise) (*domain.Exercise, error) {
	args := m.Called(ctx, exercise)
	ex, _ := args.Get(0).(*domain.Exercise)
	return ex, args.Error(1)
}

func (m *mockExerciseService) GetExerciseByID(ctx context.Context, id string) (*domain.Exercise, error) {
	args := m.Called(ctx, id)
	ex, _ := args.Get(0).(*domain.Exercise)
	return ex, args.Error(1)
}

func (m *mockExerciseService) ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]domain.Exercise)
	return list, args.Error(1)
}

type mockGenerationService struct{ mock.Mock }

func (m *mockGenerationService) Configured() bool {
	return m.Called().Bool(0)
}

func (m *mockGenerationService) Chat(ctx context.Context, userID, prompt string) (*service.ChatResult, error) {
	args := m.Called(ctx, userID, prompt)
	res, _ := args.Get(0).(*service.ChatResult)
	return res, args.Error(1)
}

func (m *mockGenerationService) GenerateRoutines(ctx context.Context, userID, prompt string) (*service.RoutineGenerationResult, error) {
	args := m.Called(ctx, userID, prompt)
	res, _ := args.Get(0).(*service.RoutineGenerationResult)
	return res, args.Error(1)
}

type mockRoutineService struct{ mock.Mock }

func (m *mockRoutineService) CreateRoutine(ctx context.Context, userID string, input service.RoutineInput) (*domain.Routine, error) {
	args := m.Called(ctx, userID, input)
	r, _ := args.Get(0).(*domain.Routine)
	return r, args.Error(1)
}

func (m *mockRoutineService) GetRoutine(ctx context.Context, userID, routineID string) (*domain.RoutineDetail, error) {
	args := m.Called(ctx, userID, routineID)
	r, _ := args.Get(0).(*domain.RoutineDetail)
	return r, args.Error(1)
}

func (m *mockRoutineService) ListRoutines(ctx context.Context, userID string, limit int) ([]domain.Routine, error) {
	args := m.Called(ctx, userID, limit)
	list, _ := args.Get(0).([]domain.Routine)
	return list, args.Error(1)
}

func (m *mockRoutineService) UpdateRoutine(ctx context.Context, userID, routineID string, update service.RoutineUpdate) (*domain.Routine, error) {
	args := m.Called(ctx, userID, routineID, update)
	r, _ := args.Get(0).(*domain.Routine)
	return r, args.Error(1)
}

func (m *mockRoutineService) DeleteRoutine(ctx context.Context, userID, routineID string) error {
	return m.Called(ctx, userID, routineID).Error(0)
}

func (m *mockRoutineService) SweepIncomplete(ctx context.Context, grace time.Duration) (int, error) {
	args := m.Called(ctx, grace)
	return args.Int(0), args.Error(1)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

// --- harness ---

type testServer struct {
	router     *gin.Engine
	auth       *mockAuthService
	profile    *mockProfileService
	exercise   *mockExerciseService
	generation *mockGenerationService
	routine    *mockRoutineService
}

// newTestServer wires the router to fresh mocks. limiter may be nil.
func newTestServer(t *testing.T, limiter RateLimiter) *testServer {
	t.Helper()
	s := &testServer{
		router:     gin.New(),
		auth:       &mockAuthService{},
		profile:    &mockProfileService{},
		exercise:   &mockExerciseService{},
		generation: &mockGenerationService{},
		routine:    &mockRoutineService{},
	}
	SetupRoutes(s.router, Services{
		Auth:       s.auth,
		Profile:    s.profile,
		Exercise:   s.exercise,
		Generation: s.generation,
		Routine:    s.routine,
	}, RouterOptions{
		JWTSecret: testSecret,
		RateLimit: config.RateLimitConfig{GenerateRequests: 2, GenerateWindow: time.Minute},
		Limiter:   limiter,
		Logger:    zaptest.NewLogger(t),
	})
	t.Cleanup(func() {
		s.auth.AssertExpectations(t)
		s.profile.AssertExpectations(t)
		s.exercise.AssertExpectations(t)
		s.generation.AssertExpectations(t)
		s.routine.AssertExpectations(t)
	})
	return s
}

func signToken(t *testing.T, userID string, role domain.Role, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwtClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

var anyCtx = mock.Anything
