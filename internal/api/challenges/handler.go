// Package challenges provides REST API handlers for the challenge
// progression engine: listing, joining, and completing challenge tasks.
package challenges

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecostride/ecostride-api/internal/models"
	challengesvc "github.com/ecostride/ecostride-api/internal/service/challenges"
	"github.com/ecostride/ecostride-api/internal/service/rewards"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

// userIDHeader carries the authenticated user, set by the upstream proxy.
const userIDHeader = "X-User-ID"

// EngineService interface for challenge mutations.
type EngineService interface {
	Join(ctx context.Context, userID, challengeID uint) (*models.Enrollment, error)
	CompleteTask(ctx context.Context, userID, challengeID, taskID uint) (*models.TaskCompletion, error)
}

// ListService interface for the composed challenge read model.
type ListService interface {
	ListForUser(ctx context.Context, userID uint) ([]challengesvc.ChallengeView, error)
}

// RewardsService interface for the user's reward summary.
type RewardsService interface {
	Balance(ctx context.Context, userID uint) (int64, error)
	Total(ctx context.Context, userID uint) (float64, error)
	GetUserStats(ctx context.Context, userID uint) (*models.UserStats, error)
	GetStreak(ctx context.Context, userID uint) (*models.Streak, error)
}

// rewardsFacade bundles the four reward services behind RewardsService.
type rewardsFacade struct {
	points  *rewards.PointsService
	co2     *rewards.CO2Service
	stats   *rewards.StatsService
	streaks *rewards.StreakService
}

func (f *rewardsFacade) Balance(ctx context.Context, userID uint) (int64, error) {
	return f.points.Balance(ctx, userID)
}

func (f *rewardsFacade) Total(ctx context.Context, userID uint) (float64, error) {
	return f.co2.Total(ctx, userID)
}

func (f *rewardsFacade) GetUserStats(ctx context.Context, userID uint) (*models.UserStats, error) {
	return f.stats.GetUserStats(ctx, userID)
}

func (f *rewardsFacade) GetStreak(ctx context.Context, userID uint) (*models.Streak, error) {
	return f.streaks.GetStreak(ctx, userID)
}

// Handler handles challenge API requests.
type Handler struct {
	engine  EngineService
	query   ListService
	rewards RewardsService
	log     *logger.Logger
}

// NewHandler creates a new challenge handler.
func NewHandler(
	engine *challengesvc.Engine,
	query *challengesvc.QueryService,
	points *rewards.PointsService,
	co2 *rewards.CO2Service,
	stats *rewards.StatsService,
	streaks *rewards.StreakService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		engine:  engine,
		query:   query,
		rewards: &rewardsFacade{points: points, co2: co2, stats: stats, streaks: streaks},
		log:     log,
	}
}

// NewHandlerWithInterfaces creates a new challenge handler with interface
// dependencies (useful for testing).
func NewHandlerWithInterfaces(engine EngineService, query ListService, rewardsSvc RewardsService, log *logger.Logger) *Handler {
	return &Handler{
		engine:  engine,
		query:   query,
		rewards: rewardsSvc,
		log:     log,
	}
}

// RegisterRoutes mounts the challenge endpoints on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/challenges", h.ListChallenges)
	rg.POST("/challenges/:id/join", h.JoinChallenge)
	rg.POST("/challenges/:id/tasks/:taskId/complete", h.CompleteTask)
	rg.GET("/users/me/summary", h.GetRewardSummary)
}

// ListChallenges returns the active catalog merged with the caller's
// enrollment state.
// GET /api/v1/challenges.
func (h *Handler) ListChallenges(c *gin.Context) {
	userID, err := h.parseUserHeader(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	views, err := h.query.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list challenges")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve challenges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenges":   views,
		"total":        len(views),
		"generated_at": time.Now().UTC(),
	})
}

// JoinChallenge enrolls the caller in a challenge.
// POST /api/v1/challenges/:id/join.
func (h *Handler) JoinChallenge(c *gin.Context) {
	userID, err := h.parseUserHeader(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}
	challengeID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	enrollment, err := h.engine.Join(c.Request.Context(), userID, challengeID)
	if err != nil {
		h.domainError(c, err, userID, challengeID)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"enrollment": enrollment,
	})
}

// CompleteTask marks a challenge task completed for the caller.
// POST /api/v1/challenges/:id/tasks/:taskId/complete.
func (h *Handler) CompleteTask(c *gin.Context) {
	userID, err := h.parseUserHeader(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}
	challengeID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	taskID, err := h.parseIDParam(c, "taskId")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	completion, err := h.engine.CompleteTask(c.Request.Context(), userID, challengeID, taskID)
	if err != nil {
		h.domainError(c, err, userID, challengeID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"completion": completion,
	})
}

// GetRewardSummary returns the caller's points balance, CO2 total, stats
// rollup, and streak.
// GET /api/v1/users/me/summary.
func (h *Handler) GetRewardSummary(c *gin.Context) {
	userID, err := h.parseUserHeader(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	ctx := c.Request.Context()
	balance, err := h.rewards.Balance(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get points balance")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve reward summary")
		return
	}
	co2Total, err := h.rewards.Total(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get co2 total")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve reward summary")
		return
	}
	stats, err := h.rewards.GetUserStats(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve reward summary")
		return
	}
	streak, err := h.rewards.GetStreak(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get streak")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve reward summary")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"points_balance": balance,
		"co2_grams":      co2Total,
		"stats":          stats,
		"streak":         streak,
		"generated_at":   time.Now().UTC(),
	})
}

// domainError maps engine error codes onto HTTP statuses.
func (h *Handler) domainError(c *gin.Context, err error, userID, challengeID uint) {
	code := challengesvc.ErrorCode(err)
	status := http.StatusInternalServerError

	switch code {
	case challengesvc.CodeChallengeNotFound,
		challengesvc.CodeTaskNotFound,
		challengesvc.CodeNotEnrolled:
		status = http.StatusNotFound
	case challengesvc.CodeAlreadyEnrolled:
		status = http.StatusConflict
	case challengesvc.CodeChallengeNotStarted,
		challengesvc.CodeChallengeExpired:
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Uint("user_id", userID).
			Uint("challenge_id", challengeID).
			Msg("Challenge operation failed")
		h.errorResponse(c, status, "Internal server error")
		return
	}

	c.JSON(status, gin.H{
		"error":     err.Error(),
		"code":      code,
		"timestamp": time.Now().UTC(),
	})
}

// parseUserHeader extracts the authenticated user from the X-User-ID header.
func (h *Handler) parseUserHeader(c *gin.Context) (uint, error) {
	raw := c.GetHeader(userIDHeader)
	if raw == "" {
		return 0, fmt.Errorf("missing %s header", userIDHeader)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s header: %s", userIDHeader, raw)
	}
	return uint(id), nil
}

// parseIDParam extracts and validates a numeric URL parameter.
func (h *Handler) parseIDParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s parameter: %s", name, raw)
	}
	return uint(id), nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
