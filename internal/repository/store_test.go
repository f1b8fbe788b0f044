package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
)

type stores struct {
	tasks       TaskStore
	categories  CategoryStore
	subscribers SubscriberStore
}

func memoryStores(t *testing.T) stores {
	t.Helper()
	mem := NewMemory(0)
	return stores{tasks: mem.Tasks, categories: mem.Categories, subscribers: mem.Subscribers}
}

func sqliteStores(t *testing.T) stores {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return stores{
		tasks:       NewTaskRepository(db),
		categories:  NewCategoryRepository(db),
		subscribers: NewSubscriberRepository(db),
	}
}

func at(year int, month time.Month, d, hour int) time.Time {
	return time.Date(year, month, d, hour, 0, 0, 0, time.UTC)
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func forEachStore(t *testing.T, run func(t *testing.T, s stores)) {
	t.Run("memory", func(t *testing.T) { run(t, memoryStores(t)) })
	t.Run("sqlite", func(t *testing.T) { run(t, sqliteStores(t)) })
}

func TestTaskStore_CRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		due := at(2024, 6, 1, 9)
		end := at(2024, 9, 1, 0)
		task := model.Task{
			Title:      "Pay rent",
			Priority:   model.PriorityHigh,
			CategoryID: "home",
			DueDate:    &due,
			CreatedAt:  at(2024, 5, 1, 8),
			Recurrence: &model.RecurrenceRule{Pattern: model.PatternMonthly, Interval: 1, EndDate: &end},
		}
		require.NoError(t, s.tasks.Create(ctx, &task))
		require.NotEmpty(t, task.ID)

		got, err := s.tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pay rent", got.Title)
		assert.Equal(t, model.PriorityHigh, got.Priority)
		require.NotNil(t, got.DueDate)
		assert.True(t, due.Equal(*got.DueDate))
		require.NotNil(t, got.Recurrence)
		assert.Equal(t, model.PatternMonthly, got.Recurrence.Pattern)
		assert.Equal(t, 1, got.Recurrence.Interval)
		require.NotNil(t, got.Recurrence.EndDate)
		assert.True(t, end.Equal(*got.Recurrence.EndDate))

		completedAt := at(2024, 6, 1, 10)
		got.Completed = true
		got.CompletedAt = &completedAt
		got.CreatedAt = at(2030, 1, 1, 0)
		require.NoError(t, s.tasks.Update(ctx, got))

		again, err := s.tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.True(t, again.Completed)
		require.NotNil(t, again.CompletedAt)
		assert.True(t, completedAt.Equal(*again.CompletedAt))
		assert.True(t, at(2024, 5, 1, 8).Equal(again.CreatedAt), "created_at is immutable")

		require.NoError(t, s.tasks.Delete(ctx, task.ID))
		_, err = s.tasks.GetByID(ctx, task.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTaskStore_Errors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()

		_, err := s.tasks.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.tasks.Update(ctx, &model.Task{ID: "missing", Title: "x"}), ErrNotFound)
		assert.ErrorIs(t, s.tasks.Delete(ctx, "missing"), ErrNotFound)

		task := model.Task{ID: "fixed", Title: "first"}
		require.NoError(t, s.tasks.Create(ctx, &task))
		dup := model.Task{ID: "fixed", Title: "second"}
		assert.ErrorIs(t, s.tasks.Create(ctx, &dup), ErrConflict)
	})
}

func TestTaskStore_Queries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		mk := func(id, title, desc, category, parent string, due *time.Time) {
			task := model.Task{ID: id, Title: title, Description: desc, CategoryID: category, ParentID: parent, DueDate: due, CreatedAt: at(2024, 1, 1, 0)}
			require.NoError(t, s.tasks.Create(ctx, &task))
		}
		d1, d2, d3 := at(2024, 2, 1, 0), at(2024, 3, 1, 0), at(2024, 4, 1, 0)
		mk("a", "Write Report", "quarterly numbers", "work", "", nil)
		mk("b", "Groceries", "buy a REPORT folder", "shopping", "", nil)
		mk("c", "Discount 50% off", "", "shopping", "", nil)
		mk("p-2", "Standup", "", "work", "p", &d3)
		mk("p-1", "Standup", "", "work", "p", &d2)
		mk("p-0", "Standup", "", "work", "p", &d1)

		all, err := s.tasks.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"p-0", "p-1", "p-2", "c", "b", "a"}, taskIDs(all))

		found, err := s.tasks.Search(ctx, "  report ")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, taskIDs(found))

		found, err = s.tasks.Search(ctx, "50%")
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, taskIDs(found))

		found, err = s.tasks.Search(ctx, "5_")
		require.NoError(t, err)
		assert.Empty(t, found)

		mk("d", "Купить молоко", "", "home", "", nil)
		found, err = s.tasks.Search(ctx, "КУПИТЬ")
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, taskIDs(found))

		byCategory, err := s.tasks.ListByCategory(ctx, "shopping")
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, taskIDs(byCategory))

		children, err := s.tasks.ListByParent(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, []string{"p-0", "p-1", "p-2"}, taskIDs(children))
	})
}

func TestCategoryStore(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()

		work := model.Category{Name: "Work", Color: "#000"}
		home := model.Category{ID: "home", Name: "Home", Color: "#fff"}
		require.NoError(t, s.categories.Create(ctx, &work))
		require.NoError(t, s.categories.Create(ctx, &home))
		assert.NotEmpty(t, work.ID)

		dup := model.Category{Name: "Work"}
		assert.ErrorIs(t, s.categories.Create(ctx, &dup), ErrConflict)
		lower := model.Category{Name: "work"}
		assert.ErrorIs(t, s.categories.Create(ctx, &lower), ErrConflict)
		clash := model.Category{ID: "home", Name: "WORK", Color: "#fff"}
		assert.ErrorIs(t, s.categories.Update(ctx, &clash), ErrConflict)

		list, err := s.categories.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Work", list[0].Name)
		assert.Equal(t, "Home", list[1].Name)

		home.Name = "House"
		home.Color = "#eee"
		require.NoError(t, s.categories.Update(ctx, &home))
		got, err := s.categories.GetByID(ctx, "home")
		require.NoError(t, err)
		assert.Equal(t, "House", got.Name)
		assert.Equal(t, "#eee", got.Color)

		require.NoError(t, s.categories.Delete(ctx, "home"))
		_, err = s.categories.GetByID(ctx, "home")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.categories.Delete(ctx, "home"), ErrNotFound)
		assert.ErrorIs(t, s.categories.Update(ctx, &model.Category{ID: "nope", Name: "x"}), ErrNotFound)
	})
}

func TestSubscriberStore_Upsert(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		require.NoError(t, s.subscribers.Upsert(ctx, &model.Subscriber{ChatID: 42, FirstName: "Ann"}))
		require.NoError(t, s.subscribers.Upsert(ctx, &model.Subscriber{ChatID: 7, Username: "bob"}))
		require.NoError(t, s.subscribers.Upsert(ctx, &model.Subscriber{ChatID: 42, FirstName: "Anna", Username: "anna"}))

		subs, err := s.subscribers.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, int64(7), subs[0].ChatID)
		assert.Equal(t, int64(42), subs[1].ChatID)
		assert.Equal(t, "Anna", subs[1].FirstName)
		assert.Equal(t, "anna", subs[1].Username)
	})
}

func TestSeed(t *testing.T) {
	data, err := LoadSeed()
	require.NoError(t, err)
	require.NotEmpty(t, data.Categories)
	require.NotEmpty(t, data.Tasks)

	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()

		seeded, err := Seed(ctx, s.tasks, s.categories, data)
		require.NoError(t, err)
		assert.True(t, seeded)

		seeded, err = Seed(ctx, s.tasks, s.categories, data)
		require.NoError(t, err)
		assert.False(t, seeded, "second seed is a no-op")

		tasks, err := s.tasks.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, taskIDs(data.Tasks), taskIDs(tasks))

		categories, err := s.categories.List(ctx)
		require.NoError(t, err)
		assert.Len(t, categories, len(data.Categories))
	})
}

func TestMemoryTaskStore_ReturnsCopies(t *testing.T) {
	mem := NewMemory(0)
	ctx := context.Background()
	due := at(2024, 1, 1, 0)
	task := model.Task{ID: "x", Title: "original", DueDate: &due}
	require.NoError(t, mem.Tasks.Create(ctx, &task))

	*task.DueDate = at(2030, 1, 1, 0)
	got, err := mem.Tasks.GetByID(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, at(2024, 1, 1, 0), *got.DueDate)

	got.Title = "changed"
	again, err := mem.Tasks.GetByID(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestMemory_SimulatedLatencyHonoursContext(t *testing.T) {
	mem := NewMemory(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mem.Tasks.List(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = mem.Categories.GetByID(ctx, "any")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemory_SimulatedLatencyDelays(t *testing.T) {
	mem := NewMemory(15 * time.Millisecond)
	start := time.Now()
	_, err := mem.Tasks.List(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}
