package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending        = "pending"
	StatusWorkInProgress = "work in progress"
	StatusCompleted      = "completed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	TaskTypeDaily   = "daily"
	TaskTypeWeekly  = "weekly"
	TaskTypeMonthly = "monthly"
)

// DateLayout is the day-granularity stamp used for lastReset and due dates.
const DateLayout = "2006-01-02"

// NormalizeStatus folds user input to the stored lower-case form.
func NormalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ValidStatus(s string) bool {
	switch NormalizeStatus(s) {
	case StatusPending, StatusWorkInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

func ValidPriority(p string) bool {
	switch strings.ToLower(p) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func ValidTaskType(t string) bool {
	switch strings.ToLower(t) {
	case TaskTypeDaily, TaskTypeWeekly, TaskTypeMonthly:
		return true
	default:
		return false
	}
}

// Task is the single canonical record for a logical task. Every assignee
// shares this row through TaskAssignment, so a status change is visible to
// all of them at once.
type Task struct {
	ID                uuid.UUID      `json:"taskId" gorm:"type:uuid;primaryKey"`
	Project           string         `json:"project" gorm:"not null"`
	Title             string         `json:"task" gorm:"column:title;not null"`
	Subtask           string         `json:"subtask"`
	Status            string         `json:"status" gorm:"not null;default:pending"`
	Priority          string         `json:"priority" gorm:"not null"`
	TaskType          string         `json:"taskType" gorm:"not null"`
	EndDate           *time.Time     `json:"endDate"`
	LastReset         string         `json:"lastReset"` // day stamp, DateLayout
	StatusChangedBy   *string        `json:"statusChangedBy"`
	StatusChangedDate *time.Time     `json:"statusChangedDate"`
	CompletedBy       *string        `json:"completedBy"`
	CompletedDate     *time.Time     `json:"completedDate"`
	CreatedBy         uuid.UUID      `json:"createdBy" gorm:"type:uuid;not null"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`

	Notes       []TaskNote       `json:"workInProgressNotes,omitempty" gorm:"foreignKey:TaskID"`
	Assignments []TaskAssignment `json:"assignments,omitempty" gorm:"foreignKey:TaskID"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TaskAssignment links an assignee to a task. One row per (task, person);
// the unique index keeps double fan-out to the same person out.
type TaskAssignment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID    uuid.UUID `json:"taskId" gorm:"type:uuid;uniqueIndex:idx_task_user;not null"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;uniqueIndex:idx_task_user;index;not null"`
	CreatedAt time.Time `json:"createdAt"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (a *TaskAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ApplyStatus rewrites the status and its audit trail on the task.
// Completion audit fields are present exactly while the task is completed.
func (t *Task) ApplyStatus(newStatus, actor string, now time.Time) error {
	newStatus = NormalizeStatus(newStatus)
	if !ValidStatus(newStatus) {
		return fmt.Errorf("invalid status: %q", newStatus)
	}

	previous := NormalizeStatus(t.Status)
	t.Status = newStatus
	t.StatusChangedBy = &actor
	t.StatusChangedDate = &now

	if newStatus == StatusCompleted {
		t.CompletedBy = &actor
		t.CompletedDate = &now
	} else if previous == StatusCompleted {
		// Leaving completed erases the completion audit
		t.CompletedBy = nil
		t.CompletedDate = nil
	}
	return nil
}

var priorityOrder = map[string]int{PriorityHigh: 1, PriorityMedium: 2, PriorityLow: 3}
var statusOrder = map[string]int{StatusPending: 1, StatusWorkInProgress: 2}
var taskTypeOrder = map[string]int{TaskTypeDaily: 1, TaskTypeWeekly: 2, TaskTypeMonthly: 3}

// SortTasks orders tasks the way the dashboards render them: completed tasks
// sink to the bottom (latest completion first); the rest go pending before
// work in progress, then by priority, due date and task type.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		aDone := NormalizeStatus(a.Status) == StatusCompleted
		bDone := NormalizeStatus(b.Status) == StatusCompleted

		if aDone != bDone {
			return !aDone
		}
		if aDone && bDone {
			return completionTime(a).After(completionTime(b))
		}

		as, bs := statusRank(a.Status), statusRank(b.Status)
		if as != bs {
			return as < bs
		}

		ap, bp := priorityRank(a.Priority), priorityRank(b.Priority)
		if ap != bp {
			return ap < bp
		}

		at, bt := dueTime(a), dueTime(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}

		return taskTypeRank(a.TaskType) < taskTypeRank(b.TaskType)
	})
}

func statusRank(s string) int {
	if r, ok := statusOrder[NormalizeStatus(s)]; ok {
		return r
	}
	return 3
}

func priorityRank(p string) int {
	if r, ok := priorityOrder[strings.ToLower(p)]; ok {
		return r
	}
	return 3
}

func taskTypeRank(t string) int {
	if r, ok := taskTypeOrder[strings.ToLower(t)]; ok {
		return r
	}
	return 4
}

func completionTime(t Task) time.Time {
	if t.CompletedDate != nil {
		return *t.CompletedDate
	}
	if t.EndDate != nil {
		return *t.EndDate
	}
	return time.Time{}
}

func dueTime(t Task) time.Time {
	if t.EndDate != nil {
		return *t.EndDate
	}
	// Undated tasks sort after dated ones
	return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
}

// Task DTOs
type CreateTaskRequest struct {
	Project     string      `json:"project" validate:"required"`
	Task        string      `json:"task" validate:"required"`
	Subtask     string      `json:"subtask" validate:"required"`
	EndDate     string      `json:"endDate" validate:"required"` // DateLayout
	Priority    string      `json:"priority" validate:"required"`
	TaskType    string      `json:"taskType" validate:"required"`
	AssigneeIDs []uuid.UUID `json:"assigneeIds" validate:"required"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TaskListResponse carries the dashboard counters alongside the tasks.
type TaskListResponse struct {
	Tasks          []Task `json:"tasks"`
	Assigned       int    `json:"assigned"`
	Pending        int    `json:"pending"`
	WorkInProgress int    `json:"workInProgress"`
	Completed      int    `json:"completed"`
}
