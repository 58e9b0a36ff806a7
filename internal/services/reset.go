package services

import (
	"time"

	"github.com/rahulsv/taskchain-api/internal/models"
)

// IST is the fixed reference zone for all day-boundary math (UTC+05:30).
var IST = time.FixedZone("IST", 330*60)

// Today returns the current day stamp in IST.
func Today(now time.Time) string {
	return now.In(IST).Format(models.DateLayout)
}

func startOfDay(now time.Time) time.Time {
	t := now.In(IST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
}

// StartOfWeek returns the most recent Sunday at day start, IST.
func StartOfWeek(now time.Time) time.Time {
	day := startOfDay(now)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfMonth returns the first of the current month at day start, IST.
func StartOfMonth(now time.Time) time.Time {
	t := now.In(IST)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, IST)
}

// resetBoundary is the period anchor a recurring task is measured against.
func resetBoundary(taskType string, now time.Time) time.Time {
	switch taskType {
	case models.TaskTypeWeekly:
		return StartOfWeek(now)
	case models.TaskTypeMonthly:
		return StartOfMonth(now)
	default:
		return startOfDay(now)
	}
}

// resetDue reports whether the task's recurring period has rolled over since
// it was last reset.
func resetDue(t *models.Task, now time.Time) bool {
	switch t.TaskType {
	case models.TaskTypeDaily:
		return t.LastReset != Today(now)
	case models.TaskTypeWeekly, models.TaskTypeMonthly:
		if t.LastReset == "" {
			return true
		}
		last, err := time.ParseInLocation(models.DateLayout, t.LastReset, IST)
		if err != nil {
			return true
		}
		return last.Before(resetBoundary(t.TaskType, now))
	default:
		return false
	}
}

// ResetDue starts a fresh recurring cycle on the task when its period has
// rolled over: status back to pending, notes dropped, audit fields cleared,
// and a due date older than the period boundary nulled out. Returns true
// when the task was mutated; calling it again in the same period is a no-op.
func ResetDue(t *models.Task, now time.Time) bool {
	if !resetDue(t, now) {
		return false
	}

	t.Status = models.StatusPending
	t.LastReset = Today(now)
	t.Notes = nil
	t.StatusChangedBy = nil
	t.StatusChangedDate = nil
	t.CompletedBy = nil
	t.CompletedDate = nil

	if t.EndDate != nil && t.EndDate.Before(resetBoundary(t.TaskType, now)) {
		t.EndDate = nil
	}
	return true
}
