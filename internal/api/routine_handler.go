package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/service"
)

// stageMessages are the client-facing messages of creation stage failures.
var stageMessages = map[string]string{
	service.StageCreateRoutine:   "Error creating routine",
	service.StageCreateExercises: "Error creating routine exercises",
	service.StageCreateSets:      "Error creating exercise sets",
	service.StageFinalize:        "Error finalizing routine",

	service.StageUpdateRoutine:    "Error updating routine",
	service.StageReplaceExercises: "Error replacing routine exercises",
}

// RoutineHandler serves the caller's saved routines.
type RoutineHandler struct {
	routineService service.RoutineService
	logger         *zap.Logger
}

func NewRoutineHandler(routineService service.RoutineService, logger *zap.Logger) *RoutineHandler {
	return &RoutineHandler{routineService: routineService, logger: logger.Named("routines")}
}

// --- DTOs ---

// CreateRoutineRequest uses the same exercise shape as generated routines so
// a proposal can be posted back unchanged.
type CreateRoutineRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Exercises   []service.ExerciseDraft `json:"exercises"`
}

// UpdateRoutineRequest replaces the exercise tree only when exercises is present.
type UpdateRoutineRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	Exercises   *[]service.ExerciseDraft `json:"exercises"`
}

// CreateRoutine godoc
// @Summary Save a routine
// @Description Creates a routine with its exercises and sets. Each call creates a new routine.
// @Tags Routines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param routine body CreateRoutineRequest true "Routine"
// @Success 200 {object} gin.H "success and the created routine"
// @Failure 400 {object} gin.H "Missing name/exercises or no valid exercises"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Store failure, with stage message and details"
// @Router /routines [post]
func (h *RoutineHandler) CreateRoutine(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": codeAuthRequired})
		return
	}

	var req CreateRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	routine, err := h.routineService.CreateRoutine(c.Request.Context(), userID, service.RoutineInput{
		Name:        req.Name,
		Description: req.Description,
		Exercises:   req.Exercises,
	})
	if err != nil {
		if errors.Is(err, service.ErrRoutineInvalid) {
			abortWithError(c, http.StatusBadRequest, "Name and at least one exercise are required")
			return
		}
		if !abortWithSaveError(c, err) {
			abortWithDetails(c, http.StatusInternalServerError, "Internal server error", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "routine": routine})
}

// GetRoutines godoc
// @Summary List my routines
// @Tags Routines
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of routines"
// @Success 200 {object} gin.H "routines, newest first"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /routines [get]
func (h *RoutineHandler) GetRoutines(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	routines, err := h.routineService.ListRoutines(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list routines", zap.String("userID", userID), zap.Error(err))
		abortWithDetails(c, http.StatusInternalServerError, "Error fetching routines", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routines": routines})
}

// GetRoutine godoc
// @Summary Get one of my routines with exercises and sets
// @Tags Routines
// @Produce json
// @Security BearerAuth
// @Param id path string true "Routine ID"
// @Success 200 {object} gin.H "routine"
// @Failure 404 {object} gin.H "Routine not found"
// @Router /routines/{id} [get]
func (h *RoutineHandler) GetRoutine(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	detail, err := h.routineService.GetRoutine(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routine": detail})
}

// UpdateRoutine godoc
// @Summary Rename a routine, optionally replacing its exercises
// @Tags Routines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Routine ID"
// @Param routine body UpdateRoutineRequest true "New name and description, and optionally the exercises"
// @Success 200 {object} gin.H "success and the updated routine"
// @Failure 400 {object} gin.H "Name is required or no valid exercises"
// @Failure 404 {object} gin.H "Routine not found"
// @Failure 500 {object} gin.H "Store failure, with stage message and details"
// @Router /routines/{id} [put]
func (h *RoutineHandler) UpdateRoutine(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdateRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Name is required")
		return
	}

	update := service.RoutineUpdate{Name: req.Name, Description: req.Description}
	if req.Exercises != nil {
		update.ReplaceExercises = true
		update.Exercises = *req.Exercises
	}

	routine, err := h.routineService.UpdateRoutine(c.Request.Context(), userID, c.Param("id"), update)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoutineInvalid) && update.ReplaceExercises:
			abortWithError(c, http.StatusBadRequest, "Name and at least one exercise are required")
		case errors.Is(err, service.ErrRoutineInvalid):
			abortWithError(c, http.StatusBadRequest, "Name is required")
		case abortWithSaveError(c, err):
		default:
			h.handleLookupError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "routine": routine})
}

// DeleteRoutine godoc
// @Summary Delete a routine with its exercises and sets
// @Tags Routines
// @Produce json
// @Security BearerAuth
// @Param id path string true "Routine ID"
// @Success 200 {object} gin.H "success"
// @Failure 404 {object} gin.H "Routine not found"
// @Router /routines/{id} [delete]
func (h *RoutineHandler) DeleteRoutine(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.routineService.DeleteRoutine(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// abortWithSaveError answers the failures shared by routine create and update.
// It reports whether err was one of them.
func abortWithSaveError(c *gin.Context, err error) bool {
	var stageErr *service.StageError
	switch {
	case errors.Is(err, service.ErrNoValidExercises):
		abortWithError(c, http.StatusBadRequest, "No valid exercises provided")
	case errors.As(err, &stageErr):
		message, ok := stageMessages[stageErr.Stage]
		if !ok {
			message = "Error creating routine"
		}
		abortWithDetails(c, http.StatusInternalServerError, message, stageErr.Err)
	default:
		return false
	}
	return true
}

func (h *RoutineHandler) handleLookupError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrRoutineNotFound) {
		abortWithError(c, http.StatusNotFound, "Routine not found")
		return
	}
	h.logger.Error("Routine request failed", zap.String("routineID", c.Param("id")), zap.Error(err))
	abortWithDetails(c, http.StatusInternalServerError, "Internal server error", err)
}
