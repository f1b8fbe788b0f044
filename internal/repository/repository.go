package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"taskflow/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// TaskStore is the storage capability the services depend on.
// List-style methods return tasks newest first.
type TaskStore interface {
	List(ctx context.Context) ([]model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	Create(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id string) error
	ListByCategory(ctx context.Context, categoryID string) ([]model.Task, error)
	ListByParent(ctx context.Context, parentID string) ([]model.Task, error)
	Search(ctx context.Context, query string) ([]model.Task, error)
}

type CategoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
	GetByID(ctx context.Context, id string) (*model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Update(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id string) error
}

type SubscriberStore interface {
	Upsert(ctx context.Context, sub *model.Subscriber) error
	ListAll(ctx context.Context) ([]model.Subscriber, error)
}

// NewID returns a collision-resistant identifier for new records.
func NewID() string {
	return uuid.NewString()
}

func matchesQuery(task model.Task, needle string) bool {
	return strings.Contains(strings.ToLower(task.Title), needle) ||
		strings.Contains(strings.ToLower(task.Description), needle)
}

var (
	_ TaskStore       = (*TaskRepository)(nil)
	_ TaskStore       = (*MemoryTaskStore)(nil)
	_ CategoryStore   = (*CategoryRepository)(nil)
	_ CategoryStore   = (*MemoryCategoryStore)(nil)
	_ SubscriberStore = (*SubscriberRepository)(nil)
	_ SubscriberStore = (*MemorySubscriberStore)(nil)
)
