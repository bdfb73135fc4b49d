package service

import (
	"context"
	"errors"
	"strings"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/session"
	"github.com/AnTengye/contractdesk/store"
)

// TaskInput creates a task
type TaskInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Due         string `json:"due" validate:"required"`
	Priority    string `json:"priority" validate:"required"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Link        string `json:"link" validate:"omitempty,max=500"`
	Assignee    string `json:"assignee"`
	Description string `json:"description" validate:"max=2000"`
}

// TaskFilter narrows List. Empty fields match everything.
type TaskFilter struct {
	Status   model.TaskStatus
	Assignee string
}

type TaskService struct {
	store *store.Store
}

func NewTaskService(s *store.Store) *TaskService {
	return &TaskService{store: s}
}

func (s *TaskService) Create(ctx context.Context, actor *session.Context, in TaskInput) (model.TaskItem, error) {
	identity, err := signedIn(actor, "create tasks")
	if err != nil {
		return model.TaskItem{}, err
	}
	task, err := in.toTask()
	if err != nil {
		return model.TaskItem{}, err
	}
	if task.Assignee == "" {
		task.Assignee = identity.Email
	}

	created, err := s.store.Tasks().Create(ctx, task)
	if err != nil {
		return model.TaskItem{}, err
	}
	logger.Info(ctx, "task created", "task_id", created.ID, "type", created.Type)
	return created, nil
}

func (in TaskInput) toTask() (model.TaskItem, error) {
	verr := &model.ValidationError{}
	if err := validateStruct(in); err != nil {
		var fields *model.ValidationError
		if !asValidation(err, &fields) {
			return model.TaskItem{}, err
		}
		for f, msg := range fields.Fields {
			verr.Add(f, msg)
		}
	}

	priority, err := model.ParsePriority(in.Priority)
	if err != nil && in.Priority != "" {
		mergeValidation(verr, err)
	}
	typ := model.TaskGeneric
	if in.Type != "" {
		if typ, err = model.ParseTaskType(in.Type); err != nil {
			mergeValidation(verr, err)
		}
	}
	status := model.TaskPending
	if in.Status != "" {
		if status, err = model.ParseTaskStatus(in.Status); err != nil {
			mergeValidation(verr, err)
		}
	}
	if err := verr.OrNil(); err != nil {
		return model.TaskItem{}, err
	}

	return model.TaskItem{
		Title:       strings.TrimSpace(in.Title),
		Due:         model.ParseDue(strings.TrimSpace(in.Due)),
		Priority:    priority,
		Link:        in.Link,
		Type:        typ,
		Status:      status,
		Assignee:    in.Assignee,
		Description: sanitize(in.Description),
	}, nil
}

// List returns tasks matching f
func (s *TaskService) List(ctx context.Context, f TaskFilter) ([]model.TaskItem, error) {
	return s.store.Tasks().List(ctx, func(t model.TaskItem) bool {
		if f.Status != "" && t.Status != f.Status {
			return false
		}
		if f.Assignee != "" && !strings.EqualFold(t.Assignee, f.Assignee) {
			return false
		}
		return true
	})
}

// UpdateStatus moves a task to status
func (s *TaskService) UpdateStatus(ctx context.Context, actor *session.Context, id string, status string) (model.TaskItem, error) {
	if _, err := signedIn(actor, "update tasks"); err != nil {
		return model.TaskItem{}, err
	}
	st, err := model.ParseTaskStatus(status)
	if err != nil {
		return model.TaskItem{}, err
	}
	if st == "" {
		return model.TaskItem{}, model.NewValidationError("status", "is required")
	}

	task, err := s.store.Tasks().Update(ctx, id, func(t *model.TaskItem) error {
		t.Status = st
		return nil
	})
	if err != nil {
		return model.TaskItem{}, err
	}
	logger.Info(ctx, "task updated", "task_id", id, "status", st)
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, actor *session.Context, id string) error {
	if _, err := signedIn(actor, "delete tasks"); err != nil {
		return err
	}
	if err := s.store.Tasks().Delete(ctx, id); err != nil {
		return err
	}
	logger.Info(ctx, "task deleted", "task_id", id)
	return nil
}

func asValidation(err error, target **model.ValidationError) bool {
	return errors.As(err, target)
}

func mergeValidation(dst *model.ValidationError, err error) {
	var v *model.ValidationError
	if asValidation(err, &v) {
		for f, msg := range v.Fields {
			dst.Add(f, msg)
		}
	}
}
