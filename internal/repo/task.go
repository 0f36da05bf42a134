package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

type TaskFilter struct {
	Search     string
	Status     string
	Priority   string
	AssignedTo *uuid.UUID
	SortBy     string
	SortOrder  string
	Offset     int
	Limit      int
}

type TaskStats struct {
	Total          int64 `json:"total"`
	Pending        int64 `json:"pending"`
	InProgress     int64 `json:"inProgress"`
	Completed      int64 `json:"completed"`
	HighPriority   int64 `json:"highPriority"`
	MediumPriority int64 `json:"mediumPriority"`
	LowPriority    int64 `json:"lowPriority"`
}

var taskSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "title",
	"status":    "status",
	"priority":  "priority",
}

func withTaskRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Assignee", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "username", "full_name", "email", "role")
		}).
		Preload("Documents", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		})
}

func (r *GormRepo) CreateTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	if err := db.Omit(clause.Associations).Create(t).Error; err != nil {
		return nil, mapErr("create task", err)
	}

	var created models.Task
	if err := withTaskRelations(db).Where("id = ?", t.ID).First(&created).Error; err != nil {
		return nil, mapErr("reload task", err)
	}
	return &created, nil
}

func (r *GormRepo) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var task models.Task
	if err := withTaskRelations(db).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, mapErr("get task", err)
	}
	return &task, nil
}

func (r *GormRepo) GetTasksByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	items := make([]models.Task, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	if err := withTaskRelations(db).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, mapErr("get tasks", err)
	}
	return items, nil
}

func applyTaskFilter(q *gorm.DB, f TaskFilter) *gorm.DB {
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *f.AssignedTo)
	}
	return q
}

func (r *GormRepo) ListTasks(ctx context.Context, f TaskFilter) (int64, []models.Task, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var total int64
	if err := applyTaskFilter(db.Model(&models.Task{}), f).Count(&total).Error; err != nil {
		return 0, nil, mapErr("count tasks", err)
	}

	items := make([]models.Task, 0, f.Limit)
	if err := applyTaskFilter(withTaskRelations(db), f).
		Order(orderClause(taskSortColumns, f.SortBy, f.SortOrder, "created_at")).
		Offset(f.Offset).Limit(f.Limit).
		Find(&items).Error; err != nil {
		return 0, nil, mapErr("list tasks", err)
	}
	return total, items, nil
}

func (r *GormRepo) UpdateTask(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Task, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	if len(updates) > 0 {
		res := db.Model(&models.Task{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, mapErr("update task", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	var task models.Task
	if err := withTaskRelations(db).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, mapErr("reload task", err)
	}
	return &task, nil
}

func (r *GormRepo) DeleteTask(ctx context.Context, id uuid.UUID) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	return mapErr("delete task", db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

func (r *GormRepo) TaskStats(ctx context.Context, assignedTo *uuid.UUID) (*TaskStats, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	q := db.Model(&models.Task{}).Select(`
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN priority = ? THEN 1 ELSE 0 END), 0) AS high_priority,
		COALESCE(SUM(CASE WHEN priority = ? THEN 1 ELSE 0 END), 0) AS medium_priority,
		COALESCE(SUM(CASE WHEN priority = ? THEN 1 ELSE 0 END), 0) AS low_priority`,
		models.StatusPending, models.StatusInProgress, models.StatusCompleted,
		models.PriorityHigh, models.PriorityMedium, models.PriorityLow,
	)
	if assignedTo != nil {
		q = q.Where("assigned_to = ?", *assignedTo)
	}

	var stats TaskStats
	if err := q.Scan(&stats).Error; err != nil {
		return nil, mapErr("task stats", err)
	}
	return &stats, nil
}
