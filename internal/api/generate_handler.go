package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/ai"
	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/service"
)

const (
	msgAuthRequiredForRoutines = "Authentication required for routine generation. Please sign in to create personalized workout routines."
	msgGenerationTimeout       = "Request timed out. Please try again with a simpler request."
)

// GenerateHandler serves chat answers and routine proposals.
type GenerateHandler struct {
	generationService service.GenerationService
	logger            *zap.Logger
}

func NewGenerateHandler(generationService service.GenerationService, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{generationService: generationService, logger: logger.Named("generate")}
}

// --- DTOs ---

type GenerateRequest struct {
	Prompt           string `json:"prompt"`
	GenerateRoutines bool   `json:"generateRoutines"`
}

type ChatResponse struct {
	Response        string `json:"response"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// RoutineGenerationResponse omits Routines and Explanation on a parse fallback.
type RoutineGenerationResponse struct {
	Response            string                    `json:"response"`
	Routines            []domain.GeneratedRoutine `json:"routines,omitempty"`
	Explanation         *string                   `json:"explanation,omitempty"`
	IsRoutineGeneration bool                      `json:"isRoutineGeneration"`
}

// Generate godoc
// @Summary Ask the fitness coach or generate routines
// @Description Answers a free-form question. With generateRoutines=true, proposes routines from the exercise catalog (requires authentication).
// @Tags Generate
// @Accept json
// @Produce json
// @Param request body GenerateRequest true "Prompt"
// @Success 200 {object} RoutineGenerationResponse "Routine proposals or raw answer"
// @Failure 400 {object} gin.H "Prompt missing or no exercises available"
// @Failure 401 {object} gin.H "Authentication required for routine generation"
// @Failure 429 {object} gin.H "Too many requests"
// @Failure 500 {object} gin.H "Configuration or generation error"
// @Failure 504 {object} gin.H "Model call timed out"
// @Router /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		abortWithError(c, http.StatusBadRequest, "Prompt is required")
		return
	}

	if !h.generationService.Configured() {
		h.logger.Error("Model API key is not configured")
		abortWithError(c, http.StatusInternalServerError, "API configuration error")
		return
	}

	userID, err := getUserIDFromContext(c)
	authenticated := err == nil

	if !req.GenerateRoutines {
		result, err := h.generationService.Chat(c.Request.Context(), userID, req.Prompt)
		if err != nil {
			h.handleGenerationError(c, err)
			return
		}
		c.JSON(http.StatusOK, ChatResponse{Response: result.Response, IsAuthenticated: authenticated})
		return
	}

	if !authenticated {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":        msgAuthRequiredForRoutines,
			"code":         codeAuthRequired,
			"requiresAuth": true,
		})
		return
	}

	result, err := h.generationService.GenerateRoutines(c.Request.Context(), userID, req.Prompt)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}

	resp := RoutineGenerationResponse{Response: result.Response, IsRoutineGeneration: true}
	if result.Structured {
		resp.Routines = result.Routines
		resp.Explanation = &result.Explanation
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GenerateHandler) handleGenerationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPromptRequired):
		abortWithError(c, http.StatusBadRequest, "Prompt is required")
	case errors.Is(err, ai.ErrNotConfigured):
		abortWithError(c, http.StatusInternalServerError, "API configuration error")
	case errors.Is(err, ai.ErrTimeout):
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": msgGenerationTimeout, "code": "timeout"})
	case errors.Is(err, service.ErrNoCatalog):
		abortWithError(c, http.StatusBadRequest, "No exercises available. Please contact support.")
	case errors.Is(err, service.ErrCatalogUnavailable):
		abortWithDetails(c, http.StatusInternalServerError, "Error fetching exercises", err)
	default:
		abortWithDetails(c, http.StatusInternalServerError, "Failed to generate response", err)
	}
}
