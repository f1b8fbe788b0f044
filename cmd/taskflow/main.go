package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskflow/internal/config"
	"taskflow/internal/logger"
)

// cli carries what every subcommand needs once the root command has run.
type cli struct {
	cfg     config.Config
	log     *logrus.Logger
	storage string
	dbPath  string
	app     *application
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "taskflow",
		Short: "Task manager with recurring tasks",
		Long: `taskflow keeps tasks in categories and expands recurring tasks
into their upcoming occurrences.

Storage is in memory by default. Point STORAGE_DRIVER=sqlite and
DATABASE_URL at a file to keep tasks between runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cmd.Flags().Changed("storage") {
				cfg.StorageDriver = c.storage
			}
			if cmd.Flags().Changed("db") {
				cfg.DatabaseURL = c.dbPath
			}
			switch cfg.StorageDriver {
			case config.DriverMemory, config.DriverSQLite:
			default:
				return fmt.Errorf("unknown storage %q", cfg.StorageDriver)
			}
			c.cfg = cfg
			c.log = logger.NewWithOutput("taskflow", cfg.LogLevel, cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}

	root.PersistentFlags().StringVar(&c.storage, "storage", "", "storage driver: memory or sqlite (overrides STORAGE_DRIVER)")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database file (overrides DATABASE_URL)")

	root.AddCommand(
		newBotCmd(c),
		newExpandCmd(c),
		newTasksCmd(c),
		newCategoriesCmd(c),
	)
	return root
}

// open builds the stores and services on first use.
func (c *cli) open(cmd *cobra.Command) (*application, error) {
	if c.app != nil {
		return c.app, nil
	}
	app, err := openApplication(cmd.Context(), c.cfg, c.log)
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
