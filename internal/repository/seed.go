package repository

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"taskflow/internal/model"
)

//go:embed seed/*.json
var seedFS embed.FS

// SeedData is the mock data set the store starts with.
type SeedData struct {
	Categories []model.Category
	Tasks      []model.Task
}

// LoadSeed decodes the embedded mock data.
func LoadSeed() (SeedData, error) {
	var data SeedData
	if err := decodeSeed("seed/categories.json", &data.Categories); err != nil {
		return data, err
	}
	if err := decodeSeed("seed/tasks.json", &data.Tasks); err != nil {
		return data, err
	}
	return data, nil
}

// Seed loads data into empty stores and reports whether it did anything.
// Tasks are inserted last-to-first so newest-first listings keep file order.
func Seed(ctx context.Context, tasks TaskStore, categories CategoryStore, data SeedData) (bool, error) {
	existing, err := categories.List(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	for i := range data.Categories {
		category := data.Categories[i]
		if err := categories.Create(ctx, &category); err != nil {
			return false, fmt.Errorf("seed: %w", err)
		}
	}
	for i := len(data.Tasks) - 1; i >= 0; i-- {
		task := data.Tasks[i].Clone()
		if err := tasks.Create(ctx, &task); err != nil {
			return false, fmt.Errorf("seed: %w", err)
		}
	}
	return true, nil
}

func decodeSeed(name string, v any) error {
	raw, err := seedFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
