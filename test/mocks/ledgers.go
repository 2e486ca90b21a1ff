package mocks

import (
	"context"
	"sync"

	"github.com/ecostride/ecostride-api/internal/models"
)

// LedgerCall records one reward ledger invocation.
type LedgerCall struct {
	UserID      uint
	Amount      int
	Grams       float64
	Origin      models.PointOrigin
	ReferenceID uint
}

// MockLedgers is a recording implementation of the four reward collaborator
// interfaces plus the dispatch ledger, with injectable failures.
type MockLedgers struct {
	mu sync.Mutex

	PointCalls      []LedgerCall
	CO2Calls        []LedgerCall
	StatsPoints     int
	StatsCO2        float64
	StatsCalls      int
	StatsTaskCalls  int
	StatsBonusCalls int
	StreakCalls     int

	claims map[dispatchKey]bool

	PointsErr error
	CO2Err    error
	StatsErr  error
	StreakErr error
	ClaimErr  error
}

type dispatchKey struct {
	enrollmentID uint
	referenceID  uint
	kind         models.RewardKind
}

// NewMockLedgers creates an empty recording ledger set.
func NewMockLedgers() *MockLedgers {
	return &MockLedgers{claims: make(map[dispatchKey]bool)}
}

// Record implements the points ledger.
func (m *MockLedgers) Record(ctx context.Context, userID uint, amount int, origin models.PointOrigin, referenceID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PointsErr != nil {
		return m.PointsErr
	}
	m.PointCalls = append(m.PointCalls, LedgerCall{UserID: userID, Amount: amount, Origin: origin, ReferenceID: referenceID})
	return nil
}

// CO2 returns a view of the same mock satisfying the CO2 ledger interface.
func (m *MockLedgers) CO2() *MockCO2Ledger {
	return &MockCO2Ledger{parent: m}
}

// MockCO2Ledger records CO2 ledger calls on the parent mock.
type MockCO2Ledger struct {
	parent *MockLedgers
}

// Record implements the CO2 ledger.
func (c *MockCO2Ledger) Record(ctx context.Context, userID uint, grams float64, origin models.PointOrigin, referenceID uint) error {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	if c.parent.CO2Err != nil {
		return c.parent.CO2Err
	}
	c.parent.CO2Calls = append(c.parent.CO2Calls, LedgerCall{UserID: userID, Grams: grams, Origin: origin, ReferenceID: referenceID})
	return nil
}

// ApplyTaskCompletion implements the stats aggregate.
func (m *MockLedgers) ApplyTaskCompletion(ctx context.Context, userID uint, pointsDelta int, co2Delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return m.StatsErr
	}
	m.StatsCalls++
	m.StatsTaskCalls++
	m.StatsPoints += pointsDelta
	m.StatsCO2 += co2Delta
	return nil
}

// ApplyChallengeCompletion implements the stats aggregate.
func (m *MockLedgers) ApplyChallengeCompletion(ctx context.Context, userID uint, pointsDelta int, co2Delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return m.StatsErr
	}
	m.StatsCalls++
	m.StatsBonusCalls++
	m.StatsPoints += pointsDelta
	m.StatsCO2 += co2Delta
	return nil
}

// RecordActivity implements the streak tracker.
func (m *MockLedgers) RecordActivity(ctx context.Context, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StreakErr != nil {
		return m.StreakErr
	}
	m.StreakCalls++
	return nil
}

// ClaimDispatch implements the dispatch ledger.
func (m *MockLedgers) ClaimDispatch(enrollmentID, referenceID uint, kind models.RewardKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	key := dispatchKey{enrollmentID: enrollmentID, referenceID: referenceID, kind: kind}
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

// ReleaseDispatch implements the dispatch ledger.
func (m *MockLedgers) ReleaseDispatch(enrollmentID, referenceID uint, kind models.RewardKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, dispatchKey{enrollmentID: enrollmentID, referenceID: referenceID, kind: kind})
	return nil
}

// TotalPoints sums the recorded point amounts.
func (m *MockLedgers) TotalPoints() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.PointCalls {
		total += c.Amount
	}
	return total
}
