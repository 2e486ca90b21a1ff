package challenges

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ecostride/ecostride-api/internal/cache"
	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

const catalogCacheKey = "challenges:catalog:active"

// TaskView is a challenge task annotated with the caller's completion state.
type TaskView struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	CO2Grams    float64    `json:"co2_grams"`
	DayOrder    int        `json:"day_order"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ChallengeView is the composed read model for one challenge: catalog fields
// merged with the caller's enrollment and per-task progress.
type ChallengeView struct {
	ID             uint       `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	Points         int        `json:"points"`
	CO2Grams       float64    `json:"co2_grams"`
	Joined         bool       `json:"joined"`
	Status         string     `json:"status,omitempty"`
	Progress       int        `json:"progress"` // 0-100
	TotalTasks     int        `json:"total_tasks"`
	CompletedTasks int        `json:"completed_tasks"`
	JoinedAt       *time.Time `json:"joined_at,omitempty"`
	Tasks          []TaskView `json:"tasks"`
}

// Reconciler is the slice of the engine the query service needs: the
// read-time status recheck.
type Reconciler interface {
	Reconcile(ctx context.Context, challenge *models.Challenge, enrollment *models.Enrollment, tasks []models.ChallengeTask, completions []models.TaskCompletion) *models.Enrollment
}

// QueryService composes the challenge list view for a user. Every listing
// runs the engine's lazy reconciliation over the user's enrollments first,
// so statuses are correct even if nobody wrote since the window closed.
type QueryService struct {
	store      Store
	reconciler Reconciler
	cache      cache.Cache
	cacheTTL   time.Duration
	log        *logger.Logger
}

// NewQueryService creates a new query service. cache may be nil to disable
// catalog caching.
func NewQueryService(store Store, reconciler Reconciler, c cache.Cache, cacheTTL time.Duration, log *logger.Logger) *QueryService {
	return &QueryService{
		store:      store,
		reconciler: reconciler,
		cache:      c,
		cacheTTL:   cacheTTL,
		log:        log,
	}
}

// ListForUser returns the active catalog merged with every challenge the
// user is enrolled in (even ones retired from the catalog), sorted by start
// date descending.
func (s *QueryService) ListForUser(ctx context.Context, userID uint) ([]ChallengeView, error) {
	challenges, err := s.activeCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge catalog: %w", err)
	}

	enrollments, err := s.store.GetEnrollmentsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	enrolled := make(map[uint]*models.Enrollment, len(enrollments))
	for i := range enrollments {
		enrolled[enrollments[i].ChallengeID] = &enrollments[i]
	}

	// Union in enrolled challenges that fell out of the active set.
	seen := make(map[uint]bool, len(challenges))
	for _, c := range challenges {
		seen[c.ID] = true
	}
	var missing []uint
	for id := range enrolled {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		extra, err := s.store.FindChallengesByIDs(missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load enrolled challenges: %w", err)
		}
		challenges = append(challenges, extra...)
	}

	views := make([]ChallengeView, 0, len(challenges))
	for i := range challenges {
		view, err := s.composeView(ctx, &challenges[i], enrolled[challenges[i].ID])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].StartDate.After(views[j].StartDate)
	})

	return views, nil
}

func (s *QueryService) composeView(ctx context.Context, challenge *models.Challenge, enrollment *models.Enrollment) (ChallengeView, error) {
	view := ChallengeView{
		ID:          challenge.ID,
		Title:       challenge.Title,
		Description: challenge.Description,
		Category:    challenge.Category,
		StartDate:   challenge.StartDate,
		EndDate:     challenge.EndDate,
		Points:      challenge.Points,
		CO2Grams:    challenge.CO2Grams,
	}

	tasks := challenge.Tasks
	if len(tasks) == 0 {
		var err error
		tasks, err = s.store.GetTasksByChallenge(challenge.ID)
		if err != nil {
			return ChallengeView{}, fmt.Errorf("failed to load tasks for challenge %d: %w", challenge.ID, err)
		}
	}
	view.TotalTasks = len(tasks)

	var completionByTask map[uint]*models.TaskCompletion
	if enrollment != nil {
		completions, err := s.store.GetTaskCompletionsByEnrollment(enrollment.ID)
		if err != nil {
			return ChallengeView{}, fmt.Errorf("failed to load completions: %w", err)
		}

		enrollment = s.reconciler.Reconcile(ctx, challenge, enrollment, tasks, completions)

		completionByTask = make(map[uint]*models.TaskCompletion, len(completions))
		completed := 0
		for i := range completions {
			if completions[i].Completed {
				completionByTask[completions[i].TaskID] = &completions[i]
				completed++
			}
		}

		view.Joined = true
		view.Status = string(enrollment.Status)
		view.CompletedTasks = completed
		view.JoinedAt = &enrollment.JoinedAt
		if len(tasks) > 0 {
			view.Progress = completed * 100 / len(tasks)
		}
	}

	view.Tasks = make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		tv := TaskView{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			Points:      task.Points,
			CO2Grams:    task.CO2Grams,
			DayOrder:    task.DayOrder,
		}
		if c, ok := completionByTask[task.ID]; ok {
			tv.Completed = true
			tv.CompletedAt = c.CompletedAt
		}
		view.Tasks = append(view.Tasks, tv)
	}

	return view, nil
}

// activeCatalog returns the active challenges, served from the Redis cache
// when fresh. Cache failures fall through to the store.
func (s *QueryService) activeCatalog(ctx context.Context) ([]models.Challenge, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, catalogCacheKey)
		if err != nil {
			s.log.Warn().Err(err).Msg("Catalog cache read failed")
		} else if cached != "" {
			var challenges []models.Challenge
			unmarshalErr := json.Unmarshal([]byte(cached), &challenges)
			if unmarshalErr == nil {
				return challenges, nil
			}
			s.log.Warn().Err(unmarshalErr).Msg("Discarding undecodable catalog cache entry")
		}
	}

	challenges, err := s.store.FindActiveChallenges()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(challenges); err == nil {
			if err := s.cache.Set(ctx, catalogCacheKey, string(payload), s.cacheTTL); err != nil {
				s.log.Warn().Err(err).Msg("Catalog cache write failed")
			}
		}
	}

	return challenges, nil
}
