package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/ai"
	"alcyxob/routine-coach/internal/config"
	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/metrics"
	"alcyxob/routine-coach/internal/repository"
	"alcyxob/routine-coach/internal/storage"
)

// --- Error Definitions ---
var (
	ErrPromptRequired     = errors.New("prompt is required")
	ErrNoCatalog          = errors.New("no exercises available")
	ErrCatalogUnavailable = errors.New("error fetching exercises")
)

const (
	generationKindChat    = "chat"
	generationKindRoutine = "routine"

	archiveTimeout = 5 * time.Second
)

// CatalogCache keeps catalog snapshots between requests. Implementations must
// treat a miss as ok=false with a nil error.
type CatalogCache interface {
	GetCatalog(ctx context.Context, limit int) ([]domain.Exercise, bool, error)
	SetCatalog(ctx context.Context, limit int, exercises []domain.Exercise) error
	InvalidateCatalog(ctx context.Context) error
}

type ChatResult struct {
	Response string
}

// RoutineGenerationResult is either structured (Routines set) or a fallback
// carrying only the raw model text.
type RoutineGenerationResult struct {
	Response    string
	Routines    []domain.GeneratedRoutine
	Explanation string
	Structured  bool
}

// GenerationService runs the prompt → model → parse → sanitize pipeline.
type GenerationService interface {
	// Configured reports whether the model backend has credentials.
	Configured() bool
	// Chat answers a free-form question. userID may be empty for anonymous callers.
	Chat(ctx context.Context, userID, prompt string) (*ChatResult, error)
	// GenerateRoutines proposes routines built from the exercise catalog.
	GenerateRoutines(ctx context.Context, userID, prompt string) (*RoutineGenerationResult, error)
}

type generationService struct {
	provider     ai.Provider
	userRepo     repository.UserRepository
	exerciseRepo repository.ExerciseRepository
	catalogCache CatalogCache        // optional
	archive      storage.FileStorage // optional
	cfg          config.AIConfig
	metrics      *metrics.Collector
	logger       *zap.Logger
	now          func() time.Time
}

// NewGenerationService creates a new instance of generationService.
// catalogCache and archive may be nil.
func NewGenerationService(
	provider ai.Provider,
	userRepo repository.UserRepository,
	exerciseRepo repository.ExerciseRepository,
	catalogCache CatalogCache,
	archive storage.FileStorage,
	cfg config.AIConfig,
	collector *metrics.Collector,
	logger *zap.Logger,
) GenerationService {
	if cfg.CatalogLimit <= 0 {
		cfg.CatalogLimit = 30
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 10 * time.Second
	}
	if cfg.RoutineTimeout <= 0 {
		cfg.RoutineTimeout = 60 * time.Second
	}
	return &generationService{
		provider:     provider,
		userRepo:     userRepo,
		exerciseRepo: exerciseRepo,
		catalogCache: catalogCache,
		archive:      archive,
		cfg:          cfg,
		metrics:      collector,
		logger:       logger.Named("generation"),
		now:          time.Now,
	}
}

func (s *generationService) Configured() bool {
	return s.provider.Configured()
}

func (s *generationService) Chat(ctx context.Context, userID, prompt string) (*ChatResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrPromptRequired
	}

	fullPrompt := ComposeChatPrompt(s.profileContext(ctx, userID), prompt)
	text, err := s.invoke(ctx, generationKindChat, s.cfg.ChatModel, s.cfg.ChatTimeout, fullPrompt)
	if err != nil {
		return nil, err
	}
	return &ChatResult{Response: text}, nil
}

func (s *generationService) GenerateRoutines(ctx context.Context, userID, prompt string) (*RoutineGenerationResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrPromptRequired
	}

	catalog, err := s.catalogSnapshot(ctx)
	if err != nil {
		s.logger.Error("Failed to load exercise catalog", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if len(catalog) == 0 {
		return nil, ErrNoCatalog
	}

	fullPrompt := ComposeRoutinePrompt(s.profileContext(ctx, userID), catalog, prompt)
	start := time.Now()
	text, err := s.callModel(ctx, s.cfg.RoutineModel, s.cfg.RoutineTimeout, fullPrompt)
	elapsed := time.Since(start)
	if err != nil {
		s.recordFailure(generationKindRoutine, err, elapsed)
		return nil, err
	}

	parsed, ok := ParseRoutineResponse(text)
	if !ok {
		s.metrics.Generation(generationKindRoutine, metrics.OutcomeFallback, elapsed)
		s.logger.Warn("Model response had no usable routines, returning raw text",
			zap.String("userID", userID),
			zap.Int("responseLength", len(text)),
		)
		s.archiveFallback(ctx, userID, prompt, text)
		return &RoutineGenerationResult{Response: text}, nil
	}

	s.metrics.Generation(generationKindRoutine, metrics.OutcomeStructured, elapsed)
	explanation := string(parsed.Payload.Explanation)
	routines := SanitizeRoutines(parsed.Payload.Routines, explanation)
	s.logger.Info("Generated routines",
		zap.String("userID", userID),
		zap.String("strategy", parsed.Strategy),
		zap.Int("routines", len(routines)),
		zap.Duration("elapsed", elapsed),
	)

	return &RoutineGenerationResult{
		Response:    text,
		Routines:    routines,
		Explanation: explanation,
		Structured:  true,
	}, nil
}

// invoke calls the model under timeout and records the outcome.
func (s *generationService) invoke(ctx context.Context, kind, model string, timeout time.Duration, prompt string) (string, error) {
	start := time.Now()
	text, err := s.callModel(ctx, model, timeout, prompt)
	elapsed := time.Since(start)
	if err != nil {
		s.recordFailure(kind, err, elapsed)
		return "", err
	}
	s.metrics.Generation(kind, metrics.OutcomeOK, elapsed)
	return text, nil
}

func (s *generationService) callModel(ctx context.Context, model string, timeout time.Duration, prompt string) (string, error) {
	return ai.WithDeadline(ctx, timeout, func(ctx context.Context) (string, error) {
		return s.provider.Generate(ctx, ai.Request{
			Model:       model,
			Prompt:      prompt,
			Temperature: s.cfg.Temperature,
		})
	})
}

func (s *generationService) recordFailure(kind string, err error, elapsed time.Duration) {
	if errors.Is(err, ai.ErrTimeout) {
		s.metrics.Generation(kind, metrics.OutcomeTimeout, elapsed)
		s.logger.Warn("Model call timed out", zap.String("kind", kind), zap.Duration("elapsed", elapsed))
		return
	}
	s.metrics.Generation(kind, metrics.OutcomeError, elapsed)
	s.logger.Error("Model call failed", zap.String("kind", kind), zap.String("provider", s.provider.Name()), zap.Error(err))
}

// profileContext never fails: a missing user or profile yields an empty block.
func (s *generationService) profileContext(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Could not load profile for prompt context", zap.String("userID", userID), zap.Error(err))
		}
		return ""
	}
	return BuildProfileContext(user.Profile, s.now())
}

// catalogSnapshot returns the first CatalogLimit exercises by name, from the
// cache when possible. Cache failures fall through to the repository.
func (s *generationService) catalogSnapshot(ctx context.Context) ([]domain.Exercise, error) {
	limit := s.cfg.CatalogLimit

	if s.catalogCache != nil {
		exercises, ok, err := s.catalogCache.GetCatalog(ctx, limit)
		switch {
		case err != nil:
			s.metrics.CacheOperation("get_catalog", "error")
			s.logger.Warn("Catalog cache lookup failed", zap.Error(err))
		case ok:
			s.metrics.CacheOperation("get_catalog", "hit")
			return exercises, nil
		default:
			s.metrics.CacheOperation("get_catalog", "miss")
		}
	}

	exercises, err := s.exerciseRepo.List(ctx, repository.ExerciseFilter{Limit: limit})
	if err != nil {
		return nil, err
	}

	if s.catalogCache != nil && len(exercises) > 0 {
		if err := s.catalogCache.SetCatalog(ctx, limit, exercises); err != nil {
			s.logger.Warn("Catalog cache store failed", zap.Error(err))
		}
	}
	return exercises, nil
}

type generationArchiveRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

// archiveFallback stores an unparseable answer for later prompt tuning.
// It is best effort and bounded so it cannot hold the request for long.
func (s *generationService) archiveFallback(ctx context.Context, userID, prompt, response string) {
	if s.archive == nil {
		return
	}

	now := s.now().UTC()
	record := generationArchiveRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      generationKindRoutine,
		Model:     s.cfg.RoutineModel,
		Prompt:    prompt,
		Response:  response,
		CreatedAt: now,
	}
	body, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("Could not encode generation archive record", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	key := fmt.Sprintf("generations/%s/%s/%s.json", now.Format("2006/01/02"), userID, record.ID)
	if err := s.archive.PutObject(ctx, key, "application/json", body); err != nil {
		s.logger.Warn("Could not archive unparsed generation", zap.String("key", key), zap.Error(err))
	}
}
