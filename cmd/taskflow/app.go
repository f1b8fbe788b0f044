package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"taskflow/internal/config"
	"taskflow/internal/recurrence"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

type application struct {
	tasks       repository.TaskStore
	categories  repository.CategoryStore
	subscribers repository.SubscriberStore

	taskSvc     *service.TaskService
	categorySvc *service.CategoryService
	reminderSvc *service.ReminderService

	closeFn func() error
}

func openApplication(ctx context.Context, cfg config.Config, log *logrus.Logger) (*application, error) {
	app := &application{closeFn: func() error { return nil }}

	switch cfg.StorageDriver {
	case config.DriverSQLite:
		db, err := repository.NewDB(cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			app.closeFn = sqlDB.Close
		}
		app.tasks = repository.NewTaskRepository(db)
		app.categories = repository.NewCategoryRepository(db)
		app.subscribers = repository.NewSubscriberRepository(db)
	default:
		mem := repository.NewMemory(cfg.SimulatedLatency)
		app.tasks = mem.Tasks
		app.categories = mem.Categories
		app.subscribers = mem.Subscribers
	}

	data, err := repository.LoadSeed()
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	seeded, err := repository.Seed(ctx, app.tasks, app.categories, data)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if seeded {
		log.WithFields(logrus.Fields{
			"storage":    cfg.StorageDriver,
			"categories": len(data.Categories),
			"tasks":      len(data.Tasks),
		}).Info("store seeded")
	}

	app.taskSvc = service.NewTaskService(
		app.tasks,
		app.categories,
		recurrence.NewExpander(),
		service.WithMaxInstances(cfg.MaxInstances),
		service.WithLogger(log),
	)
	app.categorySvc = service.NewCategoryService(app.categories, app.tasks, log)
	app.reminderSvc = service.NewReminderService(app.tasks, app.categories)
	return app, nil
}

func (a *application) Close() error {
	return a.closeFn()
}
