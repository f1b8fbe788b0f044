package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
)

func TestCategoryService_ListRecomputesCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []TaskInput{
		{Title: "a", CategoryID: "work"},
		{Title: "b", CategoryID: "work"},
		{Title: "c", CategoryID: "home"},
	} {
		_, err := f.tasks.CreateTask(ctx, in)
		require.NoError(t, err)
	}
	tasks, err := f.tasks.ListTasks(ctx, Filter{CategoryID: "work"})
	require.NoError(t, err)
	_, err = f.tasks.ToggleComplete(ctx, tasks[0].ID)
	require.NoError(t, err)

	// A stale count written into the store must not leak out.
	require.NoError(t, f.mem.Categories.Update(ctx, &model.Category{ID: "home", Name: "Home", Color: "#222222", TaskCount: 99}))

	categories, err := f.categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "work", categories[0].ID)
	assert.Equal(t, 2, categories[0].TaskCount)
	assert.Equal(t, 1, categories[0].CompletedCount)
	assert.Equal(t, 1, categories[1].TaskCount)
	assert.Equal(t, 0, categories[1].CompletedCount)

	sum, err := f.categories.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Completed: 1}, sum)
}

func TestCategoryService_CreateUpdateResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	garden, err := f.categories.Create(ctx, CategoryInput{Name: "  Garden "})
	require.NoError(t, err)
	assert.Equal(t, "Garden", garden.Name)
	assert.Equal(t, DefaultCategoryColor, garden.Color)

	_, err = f.categories.Create(ctx, CategoryInput{Name: "Errands", Color: "purple"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.categories.Create(ctx, CategoryInput{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := f.categories.Update(ctx, garden.ID, CategoryInput{Name: "Yard", Color: "#00ff00"})
	require.NoError(t, err)
	assert.Equal(t, "Yard", updated.Name)
	assert.Equal(t, "#00ff00", updated.Color)

	byName, err := f.categories.Resolve(ctx, "yard")
	require.NoError(t, err)
	assert.Equal(t, garden.ID, byName.ID)

	byID, err := f.categories.Resolve(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, "Work", byID.Name)

	_, err = f.categories.Resolve(ctx, "moon")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	_, err = f.categories.Resolve(ctx, " ")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCategoryService_DeleteRefusesWhenInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tasks.CreateTask(ctx, TaskInput{Title: "Fix sink", CategoryID: "home"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.categories.Delete(ctx, "home"), ErrCategoryInUse)

	require.NoError(t, f.tasks.DeleteTask(ctx, res.Task.ID))
	require.NoError(t, f.categories.Delete(ctx, "home"))

	categories, err := f.categories.List(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}
