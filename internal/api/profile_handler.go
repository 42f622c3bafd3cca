package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/routine-coach/internal/domain"
	"alcyxob/routine-coach/internal/service"
)

const birthdayLayout = "2006-01-02"

// ProfileHandler serves the caller's profile.
type ProfileHandler struct {
	profileService service.ProfileService
}

func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// UpdateProfileRequest replaces the whole profile. Birthday is YYYY-MM-DD;
// omitted fields are cleared.
type UpdateProfileRequest struct {
	FullName string   `json:"fullName"`
	Birthday string   `json:"birthday"`
	HeightCm *float64 `json:"heightCm"`
	WeightKg *float64 `json:"weightKg"`
}

type ProfileResponse struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	FullName string       `json:"fullName,omitempty"`
	Birthday string       `json:"birthday,omitempty"`
	HeightCm *float64     `json:"heightCm,omitempty"`
	WeightKg *float64     `json:"weightKg,omitempty"`
	Age      *int         `json:"age,omitempty"`
	BMI      *service.BMI `json:"bmi,omitempty"`
}

func mapProfileToResponse(view *service.ProfileView) ProfileResponse {
	p := view.User.Profile
	resp := ProfileResponse{
		ID:       view.User.ID,
		Email:    view.User.Email,
		FullName: p.FullName,
		HeightCm: p.HeightCm,
		WeightKg: p.WeightKg,
		Age:      view.Age,
		BMI:      view.BMI,
	}
	if p.Birthday != nil {
		resp.Birthday = p.Birthday.Format(birthdayLayout)
	}
	return resp
}

// GetProfile godoc
// @Summary Get my profile
// @Description Returns the stored profile with derived age and BMI.
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Profile not found"
// @Router /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	view, err := h.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapProfileToResponse(view))
}

// UpdateProfile godoc
// @Summary Update my profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body UpdateProfileRequest true "Profile"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} gin.H "Invalid profile"
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /profile [put]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile := domain.Profile{FullName: req.FullName, HeightCm: req.HeightCm, WeightKg: req.WeightKg}
	if b := strings.TrimSpace(req.Birthday); b != "" {
		birthday, err := time.Parse(birthdayLayout, b)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Birthday must be formatted as YYYY-MM-DD")
			return
		}
		profile.Birthday = &birthday
	}

	view, err := h.profileService.UpdateProfile(c.Request.Context(), userID, profile)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapProfileToResponse(view))
}

func (h *ProfileHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidProfile):
		abortWithDetails(c, http.StatusBadRequest, "Invalid profile", err)
	case errors.Is(err, service.ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, "Profile not found")
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Error fetching profile")
	}
}
