package rewards

import (
	"context"
	"testing"

	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

type mockPointsRepository struct {
	entries []models.PointEntry
}

func (m *mockPointsRepository) CreatePointEntry(entry *models.PointEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockPointsRepository) GetPointsBalance(userID uint) (int64, error) {
	var sum int64
	for _, e := range m.entries {
		if e.UserID == userID {
			sum += int64(e.Amount)
		}
	}
	return sum, nil
}

type mockCO2Repository struct {
	entries []models.CO2Entry
}

func (m *mockCO2Repository) CreateCO2Entry(entry *models.CO2Entry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockCO2Repository) GetCO2Total(userID uint) (float64, error) {
	var sum float64
	for _, e := range m.entries {
		if e.UserID == userID {
			sum += e.Grams
		}
	}
	return sum, nil
}

func TestPointsService_RecordAndBalance(t *testing.T) {
	repo := &mockPointsRepository{}
	s := NewPointsServiceWithInterfaces(repo, logger.Get())
	ctx := context.Background()

	if err := s.Record(ctx, 1, 50, models.OriginChallengeTask, 11); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := s.Record(ctx, 1, 200, models.OriginChallengeBonus, 1); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := s.Record(ctx, 2, 30, models.OriginMission, 4); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	balance, err := s.Balance(ctx, 1)
	if err != nil {
		t.Fatalf("Balance() failed: %v", err)
	}
	if balance != 250 {
		t.Errorf("Expected balance 250, got %d", balance)
	}

	if repo.entries[0].Origin != models.OriginChallengeTask {
		t.Errorf("Expected origin %s, got %s", models.OriginChallengeTask, repo.entries[0].Origin)
	}
}

func TestPointsService_RejectsNonPositiveAmount(t *testing.T) {
	repo := &mockPointsRepository{}
	s := NewPointsServiceWithInterfaces(repo, logger.Get())

	if err := s.Record(context.Background(), 1, 0, models.OriginPost, 1); err == nil {
		t.Error("Expected error for zero amount")
	}
	if err := s.Record(context.Background(), 1, -10, models.OriginPost, 1); err == nil {
		t.Error("Expected error for negative amount")
	}
	if len(repo.entries) != 0 {
		t.Errorf("Expected no entries written, got %d", len(repo.entries))
	}
}

func TestCO2Service_RecordAndTotal(t *testing.T) {
	repo := &mockCO2Repository{}
	s := NewCO2ServiceWithInterfaces(repo, logger.Get())
	ctx := context.Background()

	if err := s.Record(ctx, 1, 100.5, models.OriginChallengeTask, 11); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := s.Record(ctx, 1, 500, models.OriginChallengeBonus, 1); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	total, err := s.Total(ctx, 1)
	if err != nil {
		t.Fatalf("Total() failed: %v", err)
	}
	if total != 600.5 {
		t.Errorf("Expected total 600.5, got %f", total)
	}
}

func TestCO2Service_RejectsNonPositiveGrams(t *testing.T) {
	repo := &mockCO2Repository{}
	s := NewCO2ServiceWithInterfaces(repo, logger.Get())

	if err := s.Record(context.Background(), 1, 0, models.OriginComment, 1); err == nil {
		t.Error("Expected error for zero grams")
	}
	if len(repo.entries) != 0 {
		t.Errorf("Expected no entries written, got %d", len(repo.entries))
	}
}
