package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskflow/internal/model"
)

// Memory is a process-wide in-memory store with optional simulated latency.
// Nothing survives a restart.
type Memory struct {
	Tasks       *MemoryTaskStore
	Categories  *MemoryCategoryStore
	Subscribers *MemorySubscriberStore
}

// NewMemory returns empty stores that pause for latency before every call.
func NewMemory(latency time.Duration) *Memory {
	d := delay(latency)
	return &Memory{
		Tasks:       &MemoryTaskStore{delay: d},
		Categories:  &MemoryCategoryStore{delay: d},
		Subscribers: &MemorySubscriberStore{subs: make(map[int64]model.Subscriber)},
	}
}

type delay time.Duration

func (d delay) wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MemoryTaskStore keeps tasks newest first.
type MemoryTaskStore struct {
	delay delay
	mu    sync.RWMutex
	tasks []model.Task
}

func (s *MemoryTaskStore) List(ctx context.Context) ([]model.Task, error) {
	return s.filter(ctx, func(model.Task) bool { return true })
}

func (s *MemoryTaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	if err := s.delay.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	task := s.tasks[i].Clone()
	return &task, nil
}

// Create assigns an id and creation time when the caller left them empty and
// puts the task in front of the list.
func (s *MemoryTaskStore) Create(ctx context.Context, task *model.Task) error {
	if err := s.delay.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = NewID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if s.indexOf(task.ID) >= 0 {
		return fmt.Errorf("create task %s: %w", task.ID, ErrConflict)
	}
	s.tasks = append([]model.Task{task.Clone()}, s.tasks...)
	return nil
}

func (s *MemoryTaskStore) Update(ctx context.Context, task *model.Task) error {
	if err := s.delay.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(task.ID)
	if i < 0 {
		return fmt.Errorf("update task %s: %w", task.ID, ErrNotFound)
	}
	updated := task.Clone()
	updated.CreatedAt = s.tasks[i].CreatedAt
	s.tasks[i] = updated
	return nil
}

func (s *MemoryTaskStore) Delete(ctx context.Context, id string) error {
	if err := s.delay.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return nil
}

func (s *MemoryTaskStore) ListByCategory(ctx context.Context, categoryID string) ([]model.Task, error) {
	return s.filter(ctx, func(t model.Task) bool { return t.CategoryID == categoryID })
}

// ListByParent returns generated instances ordered by due date.
func (s *MemoryTaskStore) ListByParent(ctx context.Context, parentID string) ([]model.Task, error) {
	tasks, err := s.filter(ctx, func(t model.Task) bool { return t.ParentID == parentID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return tasks, nil
}

// Search matches the query against title and description, ignoring case.
func (s *MemoryTaskStore) Search(ctx context.Context, query string) ([]model.Task, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	return s.filter(ctx, func(t model.Task) bool { return matchesQuery(t, needle) })
}

func (s *MemoryTaskStore) filter(ctx context.Context, keep func(model.Task) bool) ([]model.Task, error) {
	if err := s.delay.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if keep(task) {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

func (s *MemoryTaskStore) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// MemoryCategoryStore keeps categories in insertion order.
type MemoryCategoryStore struct {
	delay      delay
	mu         sync.RWMutex
	categories []model.Category
}

func (s *MemoryCategoryStore) List(ctx context.Context) ([]model.Category, error) {
	if err := s.delay.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *MemoryCategoryStore) GetByID(ctx context.Context, id string) (*model.Category, error) {
	if err := s.delay.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	category := s.categories[i]
	return &category, nil
}

func (s *MemoryCategoryStore) Create(ctx context.Context, category *model.Category) error {
	if err := s.delay.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == "" {
		category.ID = NewID()
	}
	for _, existing := range s.categories {
		if existing.ID == category.ID || strings.EqualFold(existing.Name, category.Name) {
			return fmt.Errorf("create category %q: %w", category.Name, ErrConflict)
		}
	}
	stored := *category
	stored.TaskCount, stored.CompletedCount = 0, 0
	s.categories = append(s.categories, stored)
	return nil
}

func (s *MemoryCategoryStore) Update(ctx context.Context, category *model.Category) error {
	if err := s.delay.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(category.ID)
	if i < 0 {
		return fmt.Errorf("update category %s: %w", category.ID, ErrNotFound)
	}
	for j, existing := range s.categories {
		if j != i && strings.EqualFold(existing.Name, category.Name) {
			return fmt.Errorf("update category %q: %w", category.Name, ErrConflict)
		}
	}
	s.categories[i].Name = category.Name
	s.categories[i].Color = category.Color
	return nil
}

func (s *MemoryCategoryStore) Delete(ctx context.Context, id string) error {
	if err := s.delay.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete category %s: %w", id, ErrNotFound)
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	return nil
}

func (s *MemoryCategoryStore) indexOf(id string) int {
	for i := range s.categories {
		if s.categories[i].ID == id {
			return i
		}
	}
	return -1
}

// MemorySubscriberStore keeps digest subscribers keyed by chat id.
type MemorySubscriberStore struct {
	mu   sync.Mutex
	subs map[int64]model.Subscriber
}

func (s *MemorySubscriberStore) Upsert(ctx context.Context, sub *model.Subscriber) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	existing, ok := s.subs[sub.ChatID]
	if !ok {
		existing = model.Subscriber{ChatID: sub.ChatID, CreatedAt: now}
	}
	existing.FirstName = sub.FirstName
	existing.Username = sub.Username
	existing.UpdatedAt = now
	s.subs[sub.ChatID] = existing
	return nil
}

func (s *MemorySubscriberStore) ListAll(ctx context.Context) ([]model.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}
