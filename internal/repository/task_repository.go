package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// newestFirst orders rows by insertion, latest first.
const newestFirst = "rowid DESC"

// TaskRepository handles CRUD for tasks in SQLite.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order(newestFirst).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// Create assigns an id and creation time when the caller left them empty.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = NewID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", translate(err))
	}
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	res := r.db.WithContext(ctx).Model(task).Select("*").Omit("created_at").Updates(task)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) ListByCategory(ctx context.Context, categoryID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).Order(newestFirst).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks by category: %w", err)
	}
	return tasks, nil
}

// ListByParent returns generated instances ordered by due date.
func (r *TaskRepository) ListByParent(ctx context.Context, parentID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("due_date ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return tasks, nil
}

// Search matches the query against title and description, ignoring case.
// SQLite's LOWER only folds ASCII, so matching happens in Go to agree with the
// memory store on non-ASCII text.
func (r *TaskRepository) Search(ctx context.Context, query string) ([]model.Task, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order(newestFirst).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	out := tasks[:0]
	for _, task := range tasks {
		if matchesQuery(task, needle) {
			out = append(out, task)
		}
	}
	return out, nil
}
