package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#6B7280"

type CategoryInput struct {
	Name  string `validate:"required,max=60"`
	Color string `validate:"omitempty,hexcolor"`
}

// Summary is the "all tasks" entry of the category sidebar.
type Summary struct {
	Total     int
	Completed int
}

// CategoryService provides helpers around categories. Task counts are
// recomputed from the task store on every call.
type CategoryService struct {
	categories repository.CategoryStore
	tasks      repository.TaskStore
	log        *logrus.Entry
}

func NewCategoryService(categories repository.CategoryStore, tasks repository.TaskStore, log logrus.FieldLogger) *CategoryService {
	return &CategoryService{
		categories: categories,
		tasks:      tasks,
		log:        logger.Component(log, "category_service"),
	}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(categories))
	for i := range categories {
		categories[i].TaskCount, categories[i].CompletedCount = 0, 0
		index[categories[i].ID] = i
	}
	for _, task := range tasks {
		i, ok := index[task.CategoryID]
		if !ok {
			continue
		}
		categories[i].TaskCount++
		if task.Completed {
			categories[i].CompletedCount++
		}
	}
	return categories, nil
}

func (s *CategoryService) Summary(ctx context.Context) (Summary, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Total: len(tasks)}
	for _, task := range tasks {
		if task.Completed {
			sum.Completed++
		}
	}
	return sum, nil
}

// Resolve finds a category by id or, failing that, by case-insensitive name.
func (s *CategoryService) Resolve(ctx context.Context, ref string) (*model.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrCategoryNotFound)
	}
	category, err := s.categories.GetByID(ctx, ref)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if strings.EqualFold(categories[i].Name, ref) {
			return &categories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, ref)
}

func (s *CategoryService) Create(ctx context.Context, input CategoryInput) (*model.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := check(input); err != nil {
		return nil, err
	}
	if input.Color == "" {
		input.Color = DefaultCategoryColor
	}
	category := &model.Category{Name: input.Name, Color: input.Color}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	s.log.WithField("category_id", category.ID).Info("category created")
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, input CategoryInput) (*model.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := check(input); err != nil {
		return nil, err
	}
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = input.Name
	if input.Color != "" {
		category.Color = input.Color
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes a category that no task references any more.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	tasks, err := s.tasks.ListByCategory(ctx, id)
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		return fmt.Errorf("%w: %d task(s) in %q", ErrCategoryInUse, len(tasks), id)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("category_id", id).Info("category deleted")
	return nil
}
