package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskflow/internal/bot"
	"taskflow/internal/service"
)

func newBotCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot and the daily digest",
		Long: `Polls Telegram for updates until interrupted. Every chat that sent
/start receives the digest at DIGEST_TIME in TIMEZONE. When
REMINDER_INTERVAL is set (e.g. 2h) overdue tasks are also re-sent on
that interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireTelegram(); err != nil {
				return err
			}
			app, err := c.open(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			telegramBot, err := bot.New(c.cfg.TelegramToken, app.subscribers, app.categorySvc, app.taskSvc, app.reminderSvc, c.cfg.Location, c.log)
			if err != nil {
				return err
			}

			scheduler := service.NewSchedulerService(c.cfg.Location, c.log)
			digestID, err := scheduler.ScheduleDaily("digest", c.cfg.DigestTime, func() {
				jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				if err := telegramBot.SendDailyDigest(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					c.log.WithError(err).Error("daily digest")
				}
			})
			if err != nil {
				return err
			}
			if every := c.cfg.ReminderInterval; every > 0 {
				if _, err := scheduler.ScheduleInterval("overdue", every, func() {
					jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
					defer cancel()
					if err := telegramBot.SendOverdueReminders(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
						c.log.WithError(err).Error("overdue reminder")
					}
				}); err != nil {
					return err
				}
			}
			scheduler.Start()
			defer scheduler.Stop()
			c.log.WithField("next_digest", scheduler.Next(digestID).Format(time.RFC3339)).Info("digest scheduled")

			c.log.Info("taskflow bot started")
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			c.log.Info("shutdown complete")
			return nil
		},
	}
}
