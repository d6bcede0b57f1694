package taskservice

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/tasksvc"
	"github.com/ichigozero/taskdesk/usersvc"
)

type Service interface {
	Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.View, error)
	Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.View, error)
	CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.Input) (tasksvc.View, error)
	UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.Input) (tasksvc.View, error)
	DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) error
	Dashboard(ctx context.Context, a tasksvc.Auth) (tasksvc.Dashboard, error)
	UserSelectList(ctx context.Context, a tasksvc.Auth) ([]usersvc.SelectItem, error)
}

func New(t tasksvc.TaskRepository, u tasksvc.UserDirectory, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t, u)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
	users tasksvc.UserDirectory
}

func NewBasicService(t tasksvc.TaskRepository, u tasksvc.UserDirectory) Service {
	return basicService{tasks: t, users: u}
}

func (s basicService) Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.View, error) {
	if a.UserID == "" {
		return nil, tasksvc.ErrAuthMissing
	}

	var createdBy string
	if !a.IsAdmin() {
		createdBy = a.UserID
	}

	tasks, err := s.tasks.FindAll(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, tasks...)
}

func (s basicService) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.View, error) {
	task, err := s.owned(ctx, a, taskID)
	if err != nil {
		return tasksvc.View{}, err
	}
	return s.view(ctx, task)
}

func (s basicService) CreateTask(ctx context.Context, a tasksvc.Auth, in tasksvc.Input) (tasksvc.View, error) {
	if a.UserID == "" {
		return tasksvc.View{}, tasksvc.ErrAuthMissing
	}

	task, err := in.Task()
	if err != nil {
		return tasksvc.View{}, err
	}

	task.CreatedByUserID = a.UserID
	task.AssignedToUserID = a.UserID
	if a.IsAdmin() && in.AssignedToUserID != "" {
		ok, err := s.users.Exists(ctx, in.AssignedToUserID)
		if err != nil {
			return tasksvc.View{}, err
		}
		if !ok {
			return tasksvc.View{}, tasksvc.ErrAssigneeNotFound
		}
		task.AssignedToUserID = in.AssignedToUserID
	}

	if err := s.tasks.Create(ctx, &task); err != nil {
		return tasksvc.View{}, err
	}
	return s.view(ctx, task)
}

func (s basicService) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, in tasksvc.Input) (tasksvc.View, error) {
	if taskID == 0 {
		return tasksvc.View{}, tasksvc.ErrInvalidArgument
	}

	task, err := s.owned(ctx, a, taskID)
	if err != nil {
		return tasksvc.View{}, err
	}

	fields, err := in.Task()
	if err != nil {
		return tasksvc.View{}, err
	}

	task.Title = fields.Title
	task.Description = fields.Description
	task.Status = fields.Status
	task.Priority = fields.Priority
	task.DueDate = fields.DueDate
	task.Category = fields.Category
	task.Version = in.Version

	updated, err := s.tasks.Update(ctx, task)
	if err != nil {
		return tasksvc.View{}, err
	}
	return s.view(ctx, updated)
}

func (s basicService) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) error {
	if _, err := s.owned(ctx, a, taskID); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, taskID)
}

func (s basicService) Dashboard(ctx context.Context, a tasksvc.Auth) (tasksvc.Dashboard, error) {
	if a.UserID == "" || a.Role == "" {
		return tasksvc.Dashboard{}, tasksvc.ErrAuthMissing
	}

	var createdBy string
	if !a.IsAdmin() {
		createdBy = a.UserID
	}

	counts, err := s.tasks.CountByStatus(ctx, createdBy)
	if err != nil {
		return tasksvc.Dashboard{}, err
	}

	return tasksvc.Dashboard{
		Role: a.Role,
		TaskCounts: tasksvc.TaskCounts{
			Completed:  counts[tasksvc.StatusCompleted],
			InProgress: counts[tasksvc.StatusInProgress],
			Pending:    counts[tasksvc.StatusPending],
		},
	}, nil
}

func (s basicService) UserSelectList(ctx context.Context, a tasksvc.Auth) ([]usersvc.SelectItem, error) {
	if a.UserID == "" {
		return nil, tasksvc.ErrAuthMissing
	}
	return s.users.SelectList(ctx)
}

// owned loads the task and checks the caller may act on it.
func (s basicService) owned(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.Task, error) {
	if a.UserID == "" {
		return tasksvc.Task{}, tasksvc.ErrAuthMissing
	}
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}

	task, err := s.tasks.Find(ctx, taskID)
	if err != nil {
		return tasksvc.Task{}, err
	}
	if !task.OwnedBy(a) {
		return tasksvc.Task{}, tasksvc.ErrForbidden
	}
	return task, nil
}

func (s basicService) view(ctx context.Context, task tasksvc.Task) (tasksvc.View, error) {
	views, err := s.views(ctx, task)
	if err != nil {
		return tasksvc.View{}, err
	}
	return views[0], nil
}

func (s basicService) views(ctx context.Context, tasks ...tasksvc.Task) ([]tasksvc.View, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range tasks {
		if !seen[t.CreatedByUserID] {
			seen[t.CreatedByUserID] = true
			ids = append(ids, t.CreatedByUserID)
		}
	}

	names, err := s.users.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]tasksvc.View, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, tasksvc.NewView(t, names[t.CreatedByUserID]))
	}
	return views, nil
}
