package challenges

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/pkg/logger"
	"github.com/ecostride/ecostride-api/test/mocks"
)

type queryFixture struct {
	query *QueryService
	*engineFixture
	cache *mocks.MockCache
}

func newQueryFixture(t *testing.T, at time.Time) *queryFixture {
	t.Helper()

	ef := newEngineFixture(t, at)
	c := mocks.NewMockCache()
	return &queryFixture{
		query:         NewQueryService(ef.store, ef.engine, c, 5*time.Minute, logger.Get()),
		engineFixture: ef,
		cache:         c,
	}
}

func TestQueryService_ListForUser(t *testing.T) {
	f := newQueryFixture(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	fiveDayChallenge(f.store)
	f.store.AddChallenge(&models.Challenge{
		ID:        2,
		Title:     "Bike Week",
		Category:  "transport",
		StartDate: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		Points:    300,
		IsActive:  true,
	}, []models.ChallengeTask{{ID: 30, ChallengeID: 2, Points: 30, DayOrder: 1}})
	ctx := context.Background()

	if _, err := f.engine.Join(ctx, 1, 1); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}
	if _, err := f.engine.CompleteTask(ctx, 1, 1, 11); err != nil {
		t.Fatalf("CompleteTask() failed: %v", err)
	}
	if _, err := f.engine.CompleteTask(ctx, 1, 1, 12); err != nil {
		t.Fatalf("CompleteTask() failed: %v", err)
	}

	views, err := f.query.ListForUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Expected 2 challenges, got %d", len(views))
	}

	// Sorted by start date descending: Bike Week first.
	if views[0].ID != 2 || views[1].ID != 1 {
		t.Errorf("Expected order [2 1], got [%d %d]", views[0].ID, views[1].ID)
	}
	if views[0].Joined {
		t.Error("Expected challenge 2 to be unjoined")
	}

	joined := views[1]
	if !joined.Joined {
		t.Fatal("Expected challenge 1 to be joined")
	}
	if joined.Status != string(models.StatusJoined) {
		t.Errorf("Expected status joined, got %s", joined.Status)
	}
	if joined.CompletedTasks != 2 || joined.TotalTasks != 5 {
		t.Errorf("Expected 2/5 tasks, got %d/%d", joined.CompletedTasks, joined.TotalTasks)
	}
	if joined.Progress != 40 {
		t.Errorf("Expected progress 40, got %d", joined.Progress)
	}

	completedCount := 0
	for _, task := range joined.Tasks {
		if task.Completed {
			completedCount++
			if task.CompletedAt == nil {
				t.Errorf("Task %d completed without a timestamp", task.ID)
			}
		}
	}
	if completedCount != 2 {
		t.Errorf("Expected 2 completed task views, got %d", completedCount)
	}
}

func TestQueryService_ListIncludesRetiredEnrolledChallenge(t *testing.T) {
	f := newQueryFixture(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	fiveDayChallenge(f.store)
	ctx := context.Background()

	if _, err := f.engine.Join(ctx, 1, 1); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}

	// The challenge is retired from the catalog after the user joined.
	f.store.Challenges[1].IsActive = false

	views, err := f.query.ListForUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("Expected the enrolled retired challenge, got %d views", len(views))
	}
	if views[0].ID != 1 || !views[0].Joined {
		t.Errorf("Expected joined view of challenge 1, got %+v", views[0])
	}
}

func TestQueryService_ListReconcilesExpiredEnrollment(t *testing.T) {
	f := newQueryFixture(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	fiveDayChallenge(f.store)
	ctx := context.Background()

	if _, err := f.engine.Join(ctx, 1, 1); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}

	// Nobody touched the enrollment since the window closed.
	f.setClock(time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC))

	views, err := f.query.ListForUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if views[0].Status != string(models.StatusExpired) {
		t.Errorf("Expected reconciled status expired, got %s", views[0].Status)
	}

	persisted, _ := f.store.GetEnrollment(1, 1)
	if persisted.Status != models.StatusExpired {
		t.Errorf("Expected persisted status expired, got %s", persisted.Status)
	}
}

func TestQueryService_CatalogCacheAvoidsRepeatReads(t *testing.T) {
	f := newQueryFixture(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	fiveDayChallenge(f.store)
	ctx := context.Background()

	if _, err := f.query.ListForUser(ctx, 1); err != nil {
		t.Fatalf("first ListForUser() failed: %v", err)
	}
	if _, err := f.query.ListForUser(ctx, 1); err != nil {
		t.Fatalf("second ListForUser() failed: %v", err)
	}

	if f.store.FindActiveCalls != 1 {
		t.Errorf("Expected 1 catalog read with a warm cache, got %d", f.store.FindActiveCalls)
	}
}

func TestQueryService_CacheFailureFallsThrough(t *testing.T) {
	f := newQueryFixture(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	fiveDayChallenge(f.store)
	f.cache.GetErr = errors.New("redis down")
	f.cache.SetErr = errors.New("redis down")

	views, err := f.query.ListForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListForUser() failed despite cache outage: %v", err)
	}
	if len(views) != 1 {
		t.Errorf("Expected 1 challenge from the store, got %d", len(views))
	}
}

func TestQueryService_NilCache(t *testing.T) {
	f := newQueryFixture(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	fiveDayChallenge(f.store)
	f.query = NewQueryService(f.store, f.engine, nil, 0, logger.Get())

	views, err := f.query.ListForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListForUser() with nil cache failed: %v", err)
	}
	if len(views) != 1 {
		t.Errorf("Expected 1 challenge, got %d", len(views))
	}
	if f.store.FindActiveCalls != 1 {
		t.Errorf("Expected 1 catalog read, got %d", f.store.FindActiveCalls)
	}
}

func TestQueryService_ChallengeWithoutTasks(t *testing.T) {
	f := newQueryFixture(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	f.store.AddChallenge(&models.Challenge{
		ID:        7,
		Title:     "Announcement Only",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}, nil)
	ctx := context.Background()

	if _, err := f.engine.Join(ctx, 1, 7); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}

	views, err := f.query.ListForUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListForUser() failed: %v", err)
	}
	if views[0].Progress != 0 {
		t.Errorf("Expected progress 0 for a task-less challenge, got %d", views[0].Progress)
	}
	if views[0].TotalTasks != 0 {
		t.Errorf("Expected 0 tasks, got %d", views[0].TotalTasks)
	}
}
