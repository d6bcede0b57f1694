package tasksvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ichigozero/taskdesk/usersvc"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), nil
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidArgument, s)
}

type Task struct {
	ID               uint64    `gorm:"primaryKey"`
	Title            string    `gorm:"not null"`
	Description      string    `gorm:"not null"`
	Status           Status    `gorm:"size:16;not null;index"`
	Priority         Priority  `gorm:"size:16;not null"`
	DueDate          time.Time `gorm:"not null"`
	Category         string    `gorm:"not null"`
	CreatedByUserID  string    `gorm:"size:36;not null;index"`
	AssignedToUserID string    `gorm:"size:36;not null;index"`
	Version          uint64    `gorm:"not null;default:1"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OwnedBy reports whether the caller may read or change the task.
func (t Task) OwnedBy(a Auth) bool {
	return a.IsAdmin() || t.CreatedByUserID == a.UserID
}

type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	// FindAll returns every task, or only those created by createdBy when it
	// is not empty.
	FindAll(ctx context.Context, createdBy string) ([]Task, error)
	Find(ctx context.Context, id uint64) (Task, error)
	// Update writes the editable fields of task and bumps the version. A
	// non-zero task.Version must still equal the stored one.
	Update(ctx context.Context, task Task) (Task, error)
	Delete(ctx context.Context, id uint64) error
	CountByStatus(ctx context.Context, createdBy string) (map[Status]int64, error)
}

// UserDirectory is the view of the identity store tasks need.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
	SelectList(ctx context.Context) ([]usersvc.SelectItem, error)
}

// Auth is the authenticated caller.
type Auth struct {
	TokenID string
	UserID  string
	Role    usersvc.RoleName
}

func (a Auth) IsAdmin() bool { return a.Role == usersvc.RoleAdmin }

// Input is a create or update request as the client sent it.
type Input struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	Priority         string `json:"priority"`
	DueDate          string `json:"dueDate"`
	Category         string `json:"category"`
	AssignedToUserID string `json:"assignedToUserId,omitempty"`
	Version          uint64 `json:"version,omitempty"`
}

var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func ParseDueDate(s string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable due date %q", ErrInvalidArgument, s)
}

// Task validates the input and returns the task fields it describes.
func (in Input) Task() (Task, error) {
	var (
		msgs []string
		task Task
	)

	required := func(name, v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			msgs = append(msgs, name+" is required.")
		}
		return v
	}

	task.Title = required("Title", in.Title)
	task.Description = required("Description", in.Description)
	task.Category = required("Category", in.Category)

	if s := required("Status", in.Status); s != "" {
		status, err := ParseStatus(s)
		if err != nil {
			msgs = append(msgs, "Status must be one of Pending, InProgress, Completed.")
		}
		task.Status = status
	}
	if s := required("Priority", in.Priority); s != "" {
		priority, err := ParsePriority(s)
		if err != nil {
			msgs = append(msgs, "Priority must be one of Low, Medium, High.")
		}
		task.Priority = priority
	}
	if s := required("DueDate", in.DueDate); s != "" {
		due, err := ParseDueDate(s)
		if err != nil {
			msgs = append(msgs, "DueDate is not a valid date.")
		}
		task.DueDate = due
	}

	if len(msgs) > 0 {
		return Task{}, &ValidationError{Errors: msgs}
	}
	return task, nil
}

// View is the task as clients see it.
type View struct {
	ID               uint64    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Status           Status    `json:"status"`
	Priority         Priority  `json:"priority"`
	DueDate          time.Time `json:"dueDate"`
	Category         string    `json:"category"`
	UserName         string    `json:"userName"`
	CreatedByUserID  string    `json:"createdByUserId"`
	AssignedToUserID string    `json:"assignedToUserId"`
	Version          uint64    `json:"version"`
}

const UnknownUserName = "Unknown"

// NewView renders t; userName is the creator's name or empty when unknown.
func NewView(t Task, userName string) View {
	if userName == "" {
		userName = UnknownUserName
	}
	return View{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           t.Status,
		Priority:         t.Priority,
		DueDate:          t.DueDate,
		Category:         t.Category,
		UserName:         userName,
		CreatedByUserID:  t.CreatedByUserID,
		AssignedToUserID: t.AssignedToUserID,
		Version:          t.Version,
	}
}

type TaskCounts struct {
	Completed  int64 `json:"completed"`
	InProgress int64 `json:"inProgress"`
	Pending    int64 `json:"pending"`
}

type Dashboard struct {
	Role       usersvc.RoleName `json:"role"`
	TaskCounts TaskCounts       `json:"taskCounts"`
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Messages() []string { return e.Errors }

type NotFoundError struct {
	ID uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task with ID %d was not found", e.ID)
}

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAuthMissing      = errors.New("caller identity is missing")
	ErrForbidden        = errors.New("you are not allowed to access this task")
	ErrVersionConflict  = errors.New("task was modified by someone else, reload and try again")
	ErrAssigneeNotFound = errors.New("assigned user does not exist")
)
