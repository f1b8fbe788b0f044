package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("MAX_INSTANCES", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SIMULATED_LATENCY", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExpandCommand(t *testing.T) {
	setTestEnv(t)

	out, err := run(t, "expand", "--due", "2024-06-15", "--pattern", "weekly", "--interval", "2", "--end", "2024-10-19")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-06-29")
	assert.Contains(t, out, "2024-10-19")
	assert.NotContains(t, out, "2024-11-02")
	assert.Contains(t, out, "preview-9")
	assert.Contains(t, out, "9 occurrence(s)")

	out, err = run(t, "expand", "--due", "2024-01-31", "--pattern", "monthly", "--max", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-02-29")
	assert.Contains(t, out, "2024-03-29")
	assert.Contains(t, out, "2024-04-29")
	assert.Contains(t, out, "3 occurrence(s)")

	_, err = run(t, "expand", "--due", "2024-01-31", "--pattern", "yearly")
	assert.Error(t, err)

	_, err = run(t, "expand", "--pattern", "daily")
	assert.Error(t, err)
}

func TestTasksLifecycleOnSQLite(t *testing.T) {
	setTestEnv(t)
	db := filepath.Join(t.TempDir(), "tasks.db")
	storage := []string{"--storage", "sqlite", "--db", db}
	with := func(args ...string) []string { return append(args, storage...) }

	out, err := run(t, with("tasks", "add", "Water", "plants", "-c", "Personal", "--due", "2024-06-01", "--pattern", "weekly", "--notes", "Use *rain* water")...)
	require.NoError(t, err)
	require.Contains(t, out, "created 11 task(s)")
	fields := strings.Fields(out)
	id := fields[len(fields)-1]

	out, err = run(t, with("tasks", "list", "--query", "WATER")...)
	require.NoError(t, err)
	assert.Contains(t, out, "11 task(s)")
	assert.Contains(t, out, id+"-10")

	out, err = run(t, with("tasks", "done", id)...)
	require.NoError(t, err)
	assert.Contains(t, out, "completed: Water plants")

	out, err = run(t, with("tasks", "list", "--status", "completed")...)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, with("tasks", "show", id, "--raw")...)
	require.NoError(t, err)
	assert.Contains(t, out, "# ~~Water plants~~")
	assert.Contains(t, out, "- **Repeats:** weekly every 1")
	assert.Contains(t, out, "## Occurrences")
	assert.Contains(t, out, "2024-06-08")

	out, err = run(t, with("tasks", "show", id)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Occurrences")

	out, err = run(t, with("categories")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Personal")

	out, err = run(t, with("tasks", "rm", id)...)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	_, err = run(t, with("tasks", "show", id)...)
	assert.Error(t, err)

	out, err = run(t, with("tasks", "list", "--query", "water")...)
	require.NoError(t, err)
	assert.Contains(t, out, "10 task(s)")
}

func TestTasksEditOnSQLite(t *testing.T) {
	setTestEnv(t)
	db := filepath.Join(t.TempDir(), "tasks.db")
	storage := []string{"--storage", "sqlite", "--db", db}
	with := func(args ...string) []string { return append(args, storage...) }

	out, err := run(t, with("tasks", "add", "Standup", "-c", "work", "--due", "2024-06-03 09:30")...)
	require.NoError(t, err)
	fields := strings.Fields(out)
	id := fields[len(fields)-1]

	out, err = run(t, with("tasks", "edit", id, "--title", "Daily standup", "-p", "high", "-c", "Personal", "--clear-due")...)
	require.NoError(t, err)
	assert.Contains(t, out, "updated [ ] "+id)
	assert.Contains(t, out, "Daily standup (Personal)")
	assert.Contains(t, out, " high ")
	assert.NotContains(t, out, "2024-06-03")

	out, err = run(t, with("tasks", "edit", id, "--due", "2024-06-04", "--pattern", "weekly", "--interval", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-06-04 00:00")
	assert.Contains(t, out, "↻")

	out, err = run(t, with("tasks", "edit", id, "--end", "2024-08-01")...)
	require.NoError(t, err)
	out, err = run(t, with("tasks", "show", id, "--raw")...)
	require.NoError(t, err)
	assert.Contains(t, out, "- **Repeats:** weekly every 2 until 2024-08-01")

	_, err = run(t, with("tasks", "edit", id, "--no-repeat")...)
	require.NoError(t, err)
	out, err = run(t, with("tasks", "show", id, "--raw")...)
	require.NoError(t, err)
	assert.NotContains(t, out, "Repeats")
	assert.Contains(t, out, "# Daily standup")

	_, err = run(t, with("tasks", "edit", id, "--due", "2024-06-05", "--clear-due")...)
	assert.Error(t, err)
	_, err = run(t, with("tasks", "edit", id, "-p", "urgent")...)
	assert.Error(t, err)
	_, err = run(t, with("tasks", "edit", "missing", "--title", "x")...)
	assert.Error(t, err)
}

func TestCategoriesEditOnSQLite(t *testing.T) {
	setTestEnv(t)
	db := filepath.Join(t.TempDir(), "tasks.db")
	storage := []string{"--storage", "sqlite", "--db", db}
	with := func(args ...string) []string { return append(args, storage...) }

	out, err := run(t, with("categories", "edit", "Health", "--name", "Fitness", "--color", "#123456")...)
	require.NoError(t, err)
	assert.Contains(t, out, "updated category Fitness (health) #123456")

	out, err = run(t, with("categories", "edit", "personal", "--color", "#ABCDEF")...)
	require.NoError(t, err)
	assert.Contains(t, out, "updated category Personal (personal) #ABCDEF")

	_, err = run(t, with("categories", "edit", "fitness", "--name", "WORK")...)
	assert.Error(t, err, "names differing only by case clash")

	_, err = run(t, with("categories", "add", "shopping")...)
	assert.Error(t, err)

	out, err = run(t, with("categories")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Fitness")
	assert.NotContains(t, out, "Health")
}

func TestTasksAddValidation(t *testing.T) {
	setTestEnv(t)

	_, err := run(t, "tasks", "add", "Lost", "-c", "garage")
	assert.Error(t, err)

	_, err = run(t, "tasks", "add", "Standup", "-c", "work", "--pattern", "daily")
	assert.Error(t, err, "recurring task without a due date")

	_, err = run(t, "tasks", "add", "Standup", "-c", "work", "--due", "soon")
	assert.Error(t, err)

	out, err := run(t, "tasks", "add", "Standup", "-c", "work", "--due", "2024-06-03 09:30", "--pattern", "daily", "--end", "2024-06-05")
	require.NoError(t, err)
	assert.Contains(t, out, "created 3 task(s)")
}

func TestCategoriesCommands(t *testing.T) {
	setTestEnv(t)

	out, err := run(t, "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "All tasks")
	assert.Contains(t, out, "Shopping")

	out, err = run(t, "categories", "add", "Garden", "--color", "#00FF00")
	require.NoError(t, err)
	assert.Contains(t, out, "created category Garden")

	_, err = run(t, "categories", "add", "Garden", "--color", "green")
	assert.Error(t, err)

	_, err = run(t, "categories", "rm", "work")
	assert.Error(t, err, "seeded tasks still use the category")

	_, err = run(t, "--storage", "redis", "categories")
	assert.Error(t, err)
}

func TestParseWhen(t *testing.T) {
	got, err := parseWhen(" 2024-06-01 18:30 ", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC), got)

	got, err = parseWhen("2024-06-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseWhen("06/01/2024", time.UTC)
	assert.Error(t, err)
}
