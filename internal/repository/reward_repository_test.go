package repository

import (
	"testing"
	"time"

	"github.com/ecostride/ecostride-api/internal/models"
)

func TestRewardRepository_PointsLedger(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	entries := []models.PointEntry{
		{UserID: 1, Amount: 50, Origin: models.OriginChallengeTask, ReferenceID: 10},
		{UserID: 1, Amount: 200, Origin: models.OriginChallengeBonus, ReferenceID: 3},
		{UserID: 2, Amount: 75, Origin: models.OriginMission, ReferenceID: 8},
	}
	for i := range entries {
		if err := repo.CreatePointEntry(&entries[i]); err != nil {
			t.Fatalf("CreatePointEntry() failed: %v", err)
		}
	}

	balance, err := repo.GetPointsBalance(1)
	if err != nil {
		t.Fatalf("GetPointsBalance() failed: %v", err)
	}
	if balance != 250 {
		t.Errorf("Expected balance 250, got %d", balance)
	}

	balance, _ = repo.GetPointsBalance(99)
	if balance != 0 {
		t.Errorf("Expected 0 for unknown user, got %d", balance)
	}
}

func TestRewardRepository_CO2Ledger(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	if err := repo.CreateCO2Entry(&models.CO2Entry{UserID: 1, Grams: 120.5, Origin: models.OriginChallengeTask, ReferenceID: 10}); err != nil {
		t.Fatalf("CreateCO2Entry() failed: %v", err)
	}
	if err := repo.CreateCO2Entry(&models.CO2Entry{UserID: 1, Grams: 79.5, Origin: models.OriginChallengeBonus, ReferenceID: 3}); err != nil {
		t.Fatalf("CreateCO2Entry() failed: %v", err)
	}

	total, err := repo.GetCO2Total(1)
	if err != nil {
		t.Fatalf("GetCO2Total() failed: %v", err)
	}
	if total != 200 {
		t.Errorf("Expected 200 grams, got %f", total)
	}
}

func TestRewardRepository_IncrementUserStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	stats, err := repo.GetUserStats(1)
	if err != nil {
		t.Fatalf("GetUserStats() failed: %v", err)
	}
	if stats != nil {
		t.Fatalf("Expected nil stats for new user, got %+v", stats)
	}

	// First increment inserts the row.
	if err := repo.IncrementUserStats(1, 400, 900, 1, 0); err != nil {
		t.Fatalf("IncrementUserStats() failed: %v", err)
	}

	stats, err = repo.GetUserStats(1)
	if err != nil {
		t.Fatalf("GetUserStats() failed: %v", err)
	}
	if stats.TotalPoints != 400 || stats.TotalCO2Grams != 900 {
		t.Errorf("Unexpected rollup after insert: %+v", stats)
	}
	if stats.TasksCompleted != 1 || stats.ChallengesCompleted != 0 {
		t.Errorf("Unexpected counters after insert: %+v", stats)
	}
	if stats.Level != 1 {
		t.Errorf("Expected level 1 at 400 points, got %d", stats.Level)
	}

	// Subsequent increments accumulate in place and recompute the level.
	if err := repo.IncrementUserStats(1, 800, 100, 1, 1); err != nil {
		t.Fatalf("IncrementUserStats() failed: %v", err)
	}

	stats, err = repo.GetUserStats(1)
	if err != nil {
		t.Fatalf("GetUserStats() failed: %v", err)
	}
	if stats.TotalPoints != 1200 || stats.TotalCO2Grams != 1000 {
		t.Errorf("Unexpected rollup after accumulate: %+v", stats)
	}
	if stats.TasksCompleted != 2 || stats.ChallengesCompleted != 1 {
		t.Errorf("Unexpected counters after accumulate: %+v", stats)
	}
	if stats.Level != 2 {
		t.Errorf("Expected level 2 at 1200 points, got %d", stats.Level)
	}
}

func TestRewardRepository_StreakRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	streak, err := repo.GetStreak(1)
	if err != nil {
		t.Fatalf("GetStreak() failed: %v", err)
	}
	if streak != nil {
		t.Fatalf("Expected nil streak for new user, got %+v", streak)
	}

	today := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if err := repo.SaveStreak(&models.Streak{UserID: 1, CurrentStreak: 3, LongestStreak: 7, LastActivityDate: &today}); err != nil {
		t.Fatalf("SaveStreak() failed: %v", err)
	}

	streak, err = repo.GetStreak(1)
	if err != nil {
		t.Fatalf("GetStreak() failed: %v", err)
	}
	if streak.CurrentStreak != 3 || streak.LongestStreak != 7 {
		t.Errorf("Unexpected streak row: %+v", streak)
	}
}

func TestRewardRepository_ClaimDispatch_AtMostOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	claimed, err := repo.ClaimDispatch(5, 10, models.RewardKindTaskPoints)
	if err != nil {
		t.Fatalf("ClaimDispatch() failed: %v", err)
	}
	if !claimed {
		t.Fatal("Expected first claim to succeed")
	}

	claimed, err = repo.ClaimDispatch(5, 10, models.RewardKindTaskPoints)
	if err != nil {
		t.Fatalf("ClaimDispatch() failed: %v", err)
	}
	if claimed {
		t.Error("Expected second claim to be rejected")
	}

	// Same reference, different kind is a distinct claim.
	claimed, err = repo.ClaimDispatch(5, 10, models.RewardKindTaskCO2)
	if err != nil {
		t.Fatalf("ClaimDispatch() failed: %v", err)
	}
	if !claimed {
		t.Error("Expected claim under a different kind to succeed")
	}
}

func TestRewardRepository_ReleaseDispatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)

	if _, err := repo.ClaimDispatch(5, 10, models.RewardKindTaskStats); err != nil {
		t.Fatalf("ClaimDispatch() failed: %v", err)
	}
	if err := repo.ReleaseDispatch(5, 10, models.RewardKindTaskStats); err != nil {
		t.Fatalf("ReleaseDispatch() failed: %v", err)
	}

	claimed, err := repo.ClaimDispatch(5, 10, models.RewardKindTaskStats)
	if err != nil {
		t.Fatalf("ClaimDispatch() failed: %v", err)
	}
	if !claimed {
		t.Error("Expected claim to succeed again after release")
	}
}
