package challenges

import (
	"time"

	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/pkg/dateutil"
)

// The functions in this file derive enrollment status purely from
// (now, challenge window, tasks, completions). Both the write path and the
// read-time recheck go through them so the two stay consistent, and they
// are unit-testable without a datastore.

// completedTaskSet returns the set of task IDs with a completed row.
func completedTaskSet(completions []models.TaskCompletion) map[uint]bool {
	done := make(map[uint]bool, len(completions))
	for _, c := range completions {
		if c.Completed {
			done[c.TaskID] = true
		}
	}
	return done
}

// maxDayOrder returns the highest day-order across tasks, 0 when empty.
func maxDayOrder(tasks []models.ChallengeTask) int {
	max := 0
	for _, t := range tasks {
		if t.DayOrder > max {
			max = t.DayOrder
		}
	}
	return max
}

// lastDayTasksDone reports whether every task on the final day is completed.
// Several tasks may share the maximum day-order; the challenge only counts
// as "acted out on the final day" once all of them are done.
func lastDayTasksDone(tasks []models.ChallengeTask, done map[uint]bool) bool {
	max := maxDayOrder(tasks)
	if max == 0 {
		return false
	}
	for _, t := range tasks {
		if t.DayOrder == max && !done[t.ID] {
			return false
		}
	}
	return true
}

// taskByID finds a task within the challenge's task list.
func taskByID(tasks []models.ChallengeTask, taskID uint) *models.ChallengeTask {
	for i := range tasks {
		if tasks[i].ID == taskID {
			return &tasks[i]
		}
	}
	return nil
}

// deriveStatus applies the read-time rules: a joined enrollment expires once
// the window is past or the final day's tasks are done with work remaining,
// and an expired enrollment recovers to joined when neither condition holds
// (self-correcting spurious expiries from client/server clock skew).
// Completed is terminal.
func deriveStatus(
	now time.Time,
	loc *time.Location,
	challenge *models.Challenge,
	tasks []models.ChallengeTask,
	completions []models.TaskCompletion,
	current models.EnrollmentStatus,
) models.EnrollmentStatus {
	if current == models.StatusCompleted {
		return models.StatusCompleted
	}

	done := completedTaskSet(completions)
	isPastEnd := now.After(dateutil.EndOfDay(challenge.EndDate, loc))
	isLastDone := lastDayTasksDone(tasks, done)

	switch {
	case current == models.StatusJoined && (isPastEnd || isLastDone) && len(done) < len(tasks):
		return models.StatusExpired
	case current == models.StatusExpired && !isPastEnd && !isLastDone:
		return models.StatusJoined
	default:
		return current
	}
}

// deriveStatusAfterCompletion applies the write-path rules after a task was
// just completed: full completion wins and triggers the bonus; otherwise
// finishing the final day's tasks with work remaining expires the
// enrollment, because there is no day left to catch up on.
func deriveStatusAfterCompletion(
	tasks []models.ChallengeTask,
	completions []models.TaskCompletion,
	justCompleted *models.ChallengeTask,
	current models.EnrollmentStatus,
) (status models.EnrollmentStatus, completedNow bool) {
	done := completedTaskSet(completions)
	total := len(tasks)

	if total > 0 && len(done) == total {
		return models.StatusCompleted, current != models.StatusCompleted
	}

	if justCompleted != nil &&
		justCompleted.DayOrder == maxDayOrder(tasks) &&
		lastDayTasksDone(tasks, done) &&
		current != models.StatusCompleted &&
		current != models.StatusExpired {
		return models.StatusExpired, false
	}

	return current, false
}
