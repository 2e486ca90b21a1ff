// Package mocks provides in-memory test doubles shared across service tests.
package mocks

import (
	"sort"
	"sync"
	"time"

	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/internal/repository"
)

// MockStore is an in-memory implementation of the challenge store with the
// same not-found and conflict semantics as the GORM repository.
type MockStore struct {
	mu sync.Mutex

	Challenges  map[uint]*models.Challenge
	Tasks       map[uint][]models.ChallengeTask // challengeID -> tasks
	Enrollments map[uint]*models.Enrollment
	Completions map[uint]*models.TaskCompletion

	nextEnrollmentID uint
	nextCompletionID uint

	// Error hooks for failure-path tests.
	UpdateProgressErr error

	// UpdateProgressCalls counts progress/status writes.
	UpdateProgressCalls int
	// FindActiveCalls counts catalog reads, for cache tests.
	FindActiveCalls int
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		Challenges:       make(map[uint]*models.Challenge),
		Tasks:            make(map[uint][]models.ChallengeTask),
		Enrollments:      make(map[uint]*models.Enrollment),
		Completions:      make(map[uint]*models.TaskCompletion),
		nextEnrollmentID: 1,
		nextCompletionID: 1,
	}
}

// AddChallenge seeds a challenge and its tasks.
func (m *MockStore) AddChallenge(challenge *models.Challenge, tasks []models.ChallengeTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Challenges[challenge.ID] = challenge
	m.Tasks[challenge.ID] = tasks
}

func (m *MockStore) FindActiveChallenges() ([]models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindActiveCalls++
	var out []models.Challenge
	for _, c := range m.Challenges {
		if c.IsActive {
			copied := *c
			copied.Tasks = append([]models.ChallengeTask(nil), m.Tasks[c.ID]...)
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (m *MockStore) FindChallengesByIDs(ids []uint) ([]models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Challenge
	for _, id := range ids {
		if c, ok := m.Challenges[id]; ok {
			copied := *c
			copied.Tasks = append([]models.ChallengeTask(nil), m.Tasks[c.ID]...)
			out = append(out, copied)
		}
	}
	return out, nil
}

func (m *MockStore) GetChallengeByID(id uint) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Challenges[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (m *MockStore) GetTasksByChallenge(challengeID uint) ([]models.ChallengeTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChallengeTask(nil), m.Tasks[challengeID]...), nil
}

func (m *MockStore) GetEnrollment(userID, challengeID uint) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Enrollments {
		if e.UserID == userID && e.ChallengeID == challengeID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockStore) GetEnrollmentsByUser(userID uint) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.Enrollments {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *MockStore) CreateEnrollment(enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Enrollments {
		if e.UserID == enrollment.UserID && e.ChallengeID == enrollment.ChallengeID {
			return repository.ErrConflict
		}
	}
	enrollment.ID = m.nextEnrollmentID
	m.nextEnrollmentID++
	copied := *enrollment
	m.Enrollments[enrollment.ID] = &copied
	return nil
}

func (m *MockStore) UpdateEnrollmentProgress(userID, challengeID uint, progress int, status models.EnrollmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateProgressCalls++
	if m.UpdateProgressErr != nil {
		return m.UpdateProgressErr
	}
	for _, e := range m.Enrollments {
		if e.UserID == userID && e.ChallengeID == challengeID {
			e.Progress = progress
			e.Status = status
			if status == models.StatusCompleted && e.CompletedAt == nil {
				now := time.Now()
				e.CompletedAt = &now
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockStore) GetTaskCompletion(enrollmentID, taskID uint) (*models.TaskCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Completions {
		if c.EnrollmentID == enrollmentID && c.TaskID == taskID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockStore) GetTaskCompletionsByEnrollment(enrollmentID uint) ([]models.TaskCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskCompletion
	for _, c := range m.Completions {
		if c.EnrollmentID == enrollmentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MockStore) CreateTaskCompletion(completion *models.TaskCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Completions {
		if c.EnrollmentID == completion.EnrollmentID && c.TaskID == completion.TaskID {
			return repository.ErrConflict
		}
	}
	completion.ID = m.nextCompletionID
	m.nextCompletionID++
	copied := *completion
	m.Completions[completion.ID] = &copied
	return nil
}

func (m *MockStore) UpdateTaskCompletion(completion *models.TaskCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *completion
	m.Completions[completion.ID] = &copied
	return nil
}

func (m *MockStore) ListJoinedEnrollmentsEndedBefore(cutoff time.Time) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.Enrollments {
		c, ok := m.Challenges[e.ChallengeID]
		if ok && e.Status == models.StatusJoined && c.EndDate.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out, nil
}
