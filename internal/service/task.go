package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/mykafka"
	"github.com/Skotchmaster/taskpilot/internal/repo"
	"github.com/Skotchmaster/taskpilot/internal/storage"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

type TaskStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateTask(ctx context.Context, t *models.Task) (*models.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetTasksByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error)
	ListTasks(ctx context.Context, f repo.TaskFilter) (int64, []models.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	TaskStats(ctx context.Context, assignedTo *uuid.UUID) (*repo.TaskStats, error)
}

type TaskIndexer interface {
	IndexTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, assignedTo *uuid.UUID, from, size int) (int64, []uuid.UUID, error)
}

type TaskService struct {
	Store   TaskStore
	Index   TaskIndexer
	Events  mykafka.Publisher
	Objects storage.ObjectStore
}

type TaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     time.Time
	AssignedTo  uuid.UUID
}

type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	AssignedTo  *uuid.UUID
}

type TaskQuery struct {
	PageQuery
	Status     string
	Priority   string
	AssignedTo *uuid.UUID
}

type TaskList struct {
	Tasks      []models.Task `json:"tasks"`
	Pagination Pagination    `json:"pagination"`
}

func validStatus(s string) bool {
	return s == models.StatusPending || s == models.StatusInProgress || s == models.StatusCompleted
}

func validPriority(p string) bool {
	return p == models.PriorityLow || p == models.PriorityMedium || p == models.PriorityHigh
}

// loadAuthorized fetches a task and applies the owner-or-admin rule before
// the caller can read or touch it.
func loadAuthorized(ctx context.Context, get func(context.Context, uuid.UUID) (*models.Task, error), id uuid.UUID) (*models.Task, error) {
	t, err := get(ctx, id)
	if err != nil {
		return nil, storeErr("get task", err)
	}
	if err := authz.Check(ctx, t.AssignedTo); err != nil {
		logging.FromContext(ctx).Warn("access_denied", "status", 403, "task_id", id.String())
		return nil, err
	}
	return t, nil
}

// ownerScope returns the assignee filter a caller is held to: non-admins only
// ever see their own tasks, admins see what they asked for.
func ownerScope(ctx context.Context, requested *uuid.UUID) (*uuid.UUID, error) {
	id, ok := authz.FromContext(ctx)
	if !ok {
		return nil, authz.ErrForbidden
	}
	if id.IsAdmin() {
		return requested, nil
	}
	own := id.ID
	return &own, nil
}

func (s *TaskService) Create(ctx context.Context, in TaskInput) (*models.Task, error) {
	l := logging.FromContext(ctx).With("svc", "task.create")

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || in.Description == "" || in.AssignedTo == uuid.Nil {
		return nil, validation("title, description and assignedTo are required")
	}
	if in.DueDate.IsZero() {
		return nil, validation("dueDate is required")
	}
	if in.Status == "" {
		in.Status = models.StatusPending
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !validStatus(in.Status) || !validPriority(in.Priority) {
		return nil, validation("invalid status or priority")
	}

	if err := authz.Check(ctx, in.AssignedTo); err != nil {
		l.Warn("create_denied", "status", 403, "reason", "can only assign tasks to yourself")
		return nil, err
	}
	if _, err := s.Store.GetUserByID(ctx, in.AssignedTo); err != nil {
		return nil, storeErr("assigned user", err)
	}

	t, err := s.Store.CreateTask(ctx, &models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate.UTC(),
		AssignedTo:  in.AssignedTo,
	})
	if err != nil {
		return nil, storeErr("create task", err)
	}

	s.indexTask(ctx, t)
	s.emit(ctx, mykafka.TaskCreated, t)
	l.Info("task_created", "task_id", t.ID.String())
	return t, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return loadAuthorized(ctx, s.Store.GetTask, id)
}

func (s *TaskService) List(ctx context.Context, q TaskQuery) (*TaskList, error) {
	scope, err := ownerScope(ctx, q.AssignedTo)
	if err != nil {
		return nil, err
	}
	page, offset, limit := q.bounds()
	total, items, err := s.Store.ListTasks(ctx, repo.TaskFilter{
		Search:     q.Search,
		Status:     q.Status,
		Priority:   q.Priority,
		AssignedTo: scope,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return &TaskList{Tasks: items, Pagination: newPagination(page, limit, total)}, nil
}

func (s *TaskService) Stats(ctx context.Context, assignedTo *uuid.UUID) (*repo.TaskStats, error) {
	scope, err := ownerScope(ctx, assignedTo)
	if err != nil {
		return nil, err
	}
	st, err := s.Store.TaskStats(ctx, scope)
	if err != nil {
		return nil, storeErr("task stats", err)
	}
	return st, nil
}

// Search runs a full-text query against the task index and reloads the hits
// from the database, so results are always current and access-checked.
func (s *TaskService) Search(ctx context.Context, q PageQuery) (*TaskList, error) {
	if strings.TrimSpace(q.Search) == "" {
		return nil, validation("query is required")
	}
	if s.Index == nil {
		return nil, ErrUnavailable
	}
	scope, err := ownerScope(ctx, nil)
	if err != nil {
		return nil, err
	}

	page, offset, limit := q.bounds()
	total, ids, err := s.Index.Search(ctx, q.Search, scope, offset, limit)
	if err != nil {
		logging.FromContext(ctx).Error("search_failed", "error", err)
		return nil, errors.Join(ErrUnavailable, err)
	}

	found, err := s.Store.GetTasksByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("search tasks", err)
	}
	byID := make(map[uuid.UUID]models.Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	tasks := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok || authz.Check(ctx, t.AssignedTo) != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return &TaskList{Tasks: tasks, Pagination: newPagination(page, limit, total)}, nil
}

func (s *TaskService) Update(ctx context.Context, id uuid.UUID, in TaskUpdate) (*models.Task, error) {
	l := logging.FromContext(ctx).With("svc", "task.update", "task_id", id.String())

	if _, err := loadAuthorized(ctx, s.Store.GetTask, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) != "" {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil && *in.Status != "" {
		if !validStatus(*in.Status) {
			return nil, validation("invalid status %q", *in.Status)
		}
		updates["status"] = *in.Status
	}
	if in.Priority != nil && *in.Priority != "" {
		if !validPriority(*in.Priority) {
			return nil, validation("invalid priority %q", *in.Priority)
		}
		updates["priority"] = *in.Priority
	}
	if in.DueDate != nil && !in.DueDate.IsZero() {
		updates["due_date"] = in.DueDate.UTC()
	}
	if in.AssignedTo != nil && *in.AssignedTo != uuid.Nil {
		if err := authz.CheckAdmin(ctx); err != nil {
			l.Warn("update_denied", "status", 403, "reason", "only admins can reassign tasks")
			return nil, err
		}
		if _, err := s.Store.GetUserByID(ctx, *in.AssignedTo); err != nil {
			return nil, storeErr("assigned user", err)
		}
		updates["assigned_to"] = *in.AssignedTo
	}

	t, err := s.Store.UpdateTask(ctx, id, updates)
	if err != nil {
		return nil, storeErr("update task", err)
	}
	s.indexTask(ctx, t)
	s.emit(ctx, mykafka.TaskUpdated, t)
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "task.delete", "task_id", id.String())

	t, err := loadAuthorized(ctx, s.Store.GetTask, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteTask(ctx, id); err != nil {
		return storeErr("delete task", err)
	}

	bg := context.WithoutCancel(ctx)
	if s.Objects != nil {
		for _, d := range t.Documents {
			if err := s.Objects.Delete(bg, d.Key); err != nil {
				l.Warn("object_delete_failed", "key", d.Key, "error", err)
			}
		}
	}
	if s.Index != nil {
		if err := s.Index.DeleteTask(bg, id); err != nil {
			l.Warn("unindex_failed", "error", err)
		}
	}
	s.emit(ctx, mykafka.TaskDeleted, t)
	l.Info("task_deleted")
	return nil
}

func (s *TaskService) indexTask(ctx context.Context, t *models.Task) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexTask(context.WithoutCancel(ctx), t); err != nil {
		logging.FromContext(ctx).Warn("index_failed", "task_id", t.ID.String(), "error", err)
	}
}

func (s *TaskService) emit(ctx context.Context, typ string, t *models.Task) {
	emitTask(ctx, s.Events, typ, t)
}

func emitTask(ctx context.Context, p mykafka.Publisher, typ string, t *models.Task) {
	ev := mykafka.TaskEvent{
		Type:       typ,
		TaskID:     t.ID,
		AssignedTo: t.AssignedTo,
		Task:       t,
		At:         time.Now().UTC(),
	}
	if id, ok := authz.FromContext(ctx); ok {
		ev.ActorID = id.ID
	}
	publish(ctx, p, mykafka.TopicTaskEvents, t.ID.String(), ev)
}
