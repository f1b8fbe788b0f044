package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// CategoryRepository manages task categories in SQLite.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Order("rowid ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category *model.Category) error {
	if category.ID == "" {
		category.ID = NewID()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("create category: %w", translate(err))
	}
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, category *model.Category) error {
	res := r.db.WithContext(ctx).Model(category).Select("name", "color").Updates(category)
	if res.Error != nil {
		return fmt.Errorf("update category: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update category %s: %w", category.ID, ErrNotFound)
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Category{})
	if res.Error != nil {
		return fmt.Errorf("delete category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete category %s: %w", id, ErrNotFound)
	}
	return nil
}
