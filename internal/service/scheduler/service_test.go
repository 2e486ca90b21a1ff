package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecostride/ecostride-api/internal/config"
	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

type fakeSweepStore struct {
	enrollments []models.Enrollment
	cutoff      time.Time
	err         error
}

func (f *fakeSweepStore) ListJoinedEnrollmentsEndedBefore(cutoff time.Time) ([]models.Enrollment, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return nil, f.err
	}
	return f.enrollments, nil
}

type fakeReconciler struct {
	calls   []uint
	failFor map[uint]bool
}

func (f *fakeReconciler) ReconcileEnrollment(ctx context.Context, enrollment *models.Enrollment) (*models.Enrollment, error) {
	f.calls = append(f.calls, enrollment.ID)
	if f.failFor[enrollment.ID] {
		return nil, errors.New("reconcile failed")
	}
	return enrollment, nil
}

func newTestService(store *fakeSweepStore, reconciler *fakeReconciler) *Service {
	s := NewService(
		&config.Config{Challenges: config.ChallengesConfig{
			Sweep: config.SweepConfig{Enabled: true, Schedule: "15 0 * * *"},
		}},
		store,
		reconciler,
		time.UTC,
		logger.Get(),
	)
	s.now = func() time.Time { return time.Date(2024, 1, 10, 0, 15, 0, 0, time.UTC) }
	return s
}

func TestRunSweep(t *testing.T) {
	store := &fakeSweepStore{enrollments: []models.Enrollment{
		{ID: 1, UserID: 10, ChallengeID: 1, Status: models.StatusJoined},
		{ID: 2, UserID: 11, ChallengeID: 1, Status: models.StatusJoined},
		{ID: 3, UserID: 12, ChallengeID: 2, Status: models.StatusJoined},
	}}
	reconciler := &fakeReconciler{}
	s := newTestService(store, reconciler)

	swept, failed := s.RunSweep(context.Background())

	if swept != 3 || failed != 0 {
		t.Errorf("RunSweep() = (%d, %d), want (3, 0)", swept, failed)
	}
	if len(reconciler.calls) != 3 {
		t.Errorf("Expected 3 reconcile calls, got %d", len(reconciler.calls))
	}

	wantCutoff := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	if !store.cutoff.Equal(wantCutoff) {
		t.Errorf("Expected cutoff %v, got %v", wantCutoff, store.cutoff)
	}
}

func TestRunSweep_ContinuesPastFailures(t *testing.T) {
	store := &fakeSweepStore{enrollments: []models.Enrollment{
		{ID: 1, Status: models.StatusJoined},
		{ID: 2, Status: models.StatusJoined},
		{ID: 3, Status: models.StatusJoined},
	}}
	reconciler := &fakeReconciler{failFor: map[uint]bool{2: true}}
	s := newTestService(store, reconciler)

	swept, failed := s.RunSweep(context.Background())

	if swept != 2 || failed != 1 {
		t.Errorf("RunSweep() = (%d, %d), want (2, 1)", swept, failed)
	}
	if len(reconciler.calls) != 3 {
		t.Errorf("Expected all 3 enrollments attempted, got %d", len(reconciler.calls))
	}
}

func TestRunSweep_ListFailure(t *testing.T) {
	store := &fakeSweepStore{err: errors.New("db down")}
	reconciler := &fakeReconciler{}
	s := newTestService(store, reconciler)

	swept, failed := s.RunSweep(context.Background())

	if swept != 0 || failed != 0 {
		t.Errorf("RunSweep() = (%d, %d), want (0, 0)", swept, failed)
	}
	if len(reconciler.calls) != 0 {
		t.Errorf("Expected no reconcile calls, got %d", len(reconciler.calls))
	}
}

func TestStart_Disabled(t *testing.T) {
	s := NewService(
		&config.Config{Challenges: config.ChallengesConfig{
			Sweep: config.SweepConfig{Enabled: false},
		}},
		&fakeSweepStore{},
		&fakeReconciler{},
		time.UTC,
		logger.Get(),
	)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() with disabled sweep failed: %v", err)
	}
	if s.cron != nil {
		t.Error("Expected no cron instance when disabled")
	}
	s.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewService(
		&config.Config{Challenges: config.ChallengesConfig{
			Sweep: config.SweepConfig{Enabled: true, Schedule: "not a cron expr"},
		}},
		&fakeSweepStore{},
		&fakeReconciler{},
		time.UTC,
		logger.Get(),
	)

	if err := s.Start(); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}

func TestStartStop(t *testing.T) {
	store := &fakeSweepStore{}
	s := newTestService(store, &fakeReconciler{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("Expected 1 scheduled job, got %d", len(s.cron.Entries()))
	}
	s.Stop()
}
