package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/recurrence"
	"taskflow/internal/repository"
)

// CategoryAll selects tasks of every category.
const CategoryAll = "all"

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string         `validate:"required,max=200"`
	Description string         `validate:"max=10000"`
	Notes       string         `validate:"max=10000"`
	Priority    model.Priority `validate:"omitempty,oneof=low medium high"`
	CategoryID  string         `validate:"required"`
	DueDate     *time.Time
	Recurrence  *RecurrenceInput `validate:"omitempty"`
}

// RecurrenceInput is the recurrence part of the task form.
type RecurrenceInput struct {
	Pattern  model.Pattern `validate:"required,oneof=daily weekly monthly"`
	Interval int           `validate:"min=1"`
	EndDate  *time.Time
}

// TaskUpdate carries a partial edit. Nil fields are left untouched.
type TaskUpdate struct {
	Title           *string
	Description     *string
	Notes           *string
	Priority        *model.Priority
	CategoryID      *string
	DueDate         *time.Time
	ClearDueDate    bool
	Recurrence      *RecurrenceInput
	ClearRecurrence bool
	Completed       *bool
}

// Filter narrows a task listing. Query is matched against title and
// description; an empty CategoryID or CategoryAll means every category.
type Filter struct {
	CategoryID string
	Query      string
	Status     Status
}

type Status int

const (
	StatusAll Status = iota
	StatusPending
	StatusCompleted
)

// CreateResult is the anchor task plus the instances generated from it, in
// ascending due date order.
type CreateResult struct {
	Task      model.Task
	Instances []model.Task
}

// Total counts every task persisted by the create call.
func (r *CreateResult) Total() int {
	return len(r.Instances) + 1
}

// TaskService wraps task-related business logic.
type TaskService struct {
	tasks        repository.TaskStore
	categories   repository.CategoryStore
	expander     *recurrence.Expander
	maxInstances int
	now          func() time.Time
	log          *logrus.Entry
}

type TaskOption func(*TaskService)

// WithMaxInstances caps how many instances a recurring task generates.
func WithMaxInstances(n int) TaskOption {
	return func(s *TaskService) { s.maxInstances = n }
}

// WithNow overrides the clock used for completion timestamps.
func WithNow(now func() time.Time) TaskOption {
	return func(s *TaskService) { s.now = now }
}

func WithLogger(log logrus.FieldLogger) TaskOption {
	return func(s *TaskService) { s.log = logger.Component(log, "task_service") }
}

func NewTaskService(tasks repository.TaskStore, categories repository.CategoryStore, expander *recurrence.Expander, opts ...TaskOption) *TaskService {
	s := &TaskService{
		tasks:        tasks,
		categories:   categories,
		expander:     expander,
		maxInstances: recurrence.DefaultMaxInstances,
		now:          time.Now,
		log:          logger.Component(nil, "task_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.expander == nil {
		s.expander = recurrence.NewExpander(recurrence.WithClock(s.now))
	}
	return s
}

// CreateTask stores the task and, for a recurring task, every generated
// instance in order. If persisting an instance fails the returned result
// holds what was stored before the failure.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*CreateResult, error) {
	input.normalize()
	if err := check(input); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	anchor := model.Task{
		Title:       input.Title,
		Description: input.Description,
		Notes:       input.Notes,
		Priority:    input.Priority,
		CategoryID:  input.CategoryID,
		DueDate:     input.DueDate,
		CreatedAt:   s.now(),
		Recurrence:  input.Recurrence.rule(),
	}
	if err := s.tasks.Create(ctx, &anchor); err != nil {
		return nil, err
	}

	result := &CreateResult{Task: anchor}
	for _, inst := range s.expander.Expand(anchor, s.maxInstances) {
		if err := s.tasks.Create(ctx, &inst); err != nil {
			return result, fmt.Errorf("persist instance %s: %w", inst.ID, err)
		}
		result.Instances = append(result.Instances, inst)
	}

	s.log.WithFields(logrus.Fields{
		"task_id":   anchor.ID,
		"category":  anchor.CategoryID,
		"recurring": anchor.IsRecurring(),
		"instances": len(result.Instances),
	}).Info("task created")
	return result, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// UpdateTask applies a partial edit. CompletedAt is stamped when the task
// becomes completed and cleared when it is reopened. Changing the recurrence
// of an anchor does not regenerate its existing instances.
func (s *TaskService) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	categoryChanged := update.CategoryID != nil && *update.CategoryID != task.CategoryID
	update.apply(task)

	input := inputFromTask(*task)
	input.normalize()
	if err := check(input); err != nil {
		return nil, err
	}
	task.Title, task.Priority = input.Title, input.Priority
	if categoryChanged {
		if err := s.requireCategory(ctx, task.CategoryID); err != nil {
			return nil, err
		}
	}

	if update.Completed != nil && *update.Completed != task.Completed {
		task.Completed = *update.Completed
		if task.Completed {
			now := s.now()
			task.CompletedAt = &now
		} else {
			task.CompletedAt = nil
		}
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	s.log.WithField("task_id", task.ID).Debug("task updated")
	return task, nil
}

// ToggleComplete flips the completion state of a task.
func (s *TaskService) ToggleComplete(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	completed := !task.Completed
	return s.UpdateTask(ctx, id, TaskUpdate{Completed: &completed})
}

// DeleteTask removes one task. Instances of a deleted anchor are kept; the
// parent id is only a grouping key.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("task_id", id).Info("task deleted")
	return nil
}

// ListTasks returns tasks newest first. The search query is applied first and
// the category and status filters narrow its result.
func (s *TaskService) ListTasks(ctx context.Context, filter Filter) ([]model.Task, error) {
	query := strings.TrimSpace(filter.Query)
	category := strings.TrimSpace(filter.CategoryID)
	if category == CategoryAll {
		category = ""
	}

	var (
		tasks []model.Task
		err   error
	)
	switch {
	case query != "":
		tasks, err = s.tasks.Search(ctx, query)
	case category != "":
		tasks, err = s.tasks.ListByCategory(ctx, category)
	default:
		tasks, err = s.tasks.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := tasks[:0]
	for _, task := range tasks {
		if category != "" && task.CategoryID != category {
			continue
		}
		if !filter.Status.matches(task) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

// ListInstances returns the generated instances of a recurring task.
func (s *TaskService) ListInstances(ctx context.Context, parentID string) ([]model.Task, error) {
	return s.tasks.ListByParent(ctx, parentID)
}

func (s *TaskService) requireCategory(ctx context.Context, id string) error {
	if _, err := s.categories.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrCategoryNotFound, id)
		}
		return fmt.Errorf("resolve category: %w", err)
	}
	return nil
}

func (st Status) matches(task model.Task) bool {
	switch st {
	case StatusPending:
		return !task.Completed
	case StatusCompleted:
		return task.Completed
	default:
		return true
	}
}

func (in *TaskInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
}

func (r *RecurrenceInput) rule() *model.RecurrenceRule {
	if r == nil {
		return nil
	}
	rule := &model.RecurrenceRule{Pattern: r.Pattern, Interval: r.Interval}
	if r.EndDate != nil {
		end := *r.EndDate
		rule.EndDate = &end
	}
	return rule
}

func (u TaskUpdate) apply(task *model.Task) {
	if u.Title != nil {
		task.Title = *u.Title
	}
	if u.Description != nil {
		task.Description = *u.Description
	}
	if u.Notes != nil {
		task.Notes = *u.Notes
	}
	if u.Priority != nil {
		task.Priority = *u.Priority
	}
	if u.CategoryID != nil {
		task.CategoryID = strings.TrimSpace(*u.CategoryID)
	}
	switch {
	case u.ClearDueDate:
		task.DueDate = nil
	case u.DueDate != nil:
		due := *u.DueDate
		task.DueDate = &due
	}
	switch {
	case u.ClearRecurrence:
		task.Recurrence = nil
	case u.Recurrence != nil:
		task.Recurrence = u.Recurrence.rule()
	}
}

func inputFromTask(task model.Task) TaskInput {
	input := TaskInput{
		Title:       task.Title,
		Description: task.Description,
		Notes:       task.Notes,
		Priority:    task.Priority,
		CategoryID:  task.CategoryID,
		DueDate:     task.DueDate,
	}
	if task.Recurrence != nil {
		input.Recurrence = &RecurrenceInput{
			Pattern:  task.Recurrence.Pattern,
			Interval: task.Recurrence.Interval,
			EndDate:  task.Recurrence.EndDate,
		}
	}
	return input
}
