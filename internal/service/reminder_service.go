package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// upcomingWindow is how far ahead the digest looks past today.
const upcomingWindow = 48 * time.Hour

// Digest groups open tasks with a due date by urgency.
type Digest struct {
	Overdue  []model.Task
	Today    []model.Task
	Upcoming []model.Task
}

// Empty reports whether nothing needs attention.
func (d Digest) Empty() bool {
	return len(d.Overdue) == 0 && len(d.Today) == 0 && len(d.Upcoming) == 0
}

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	tasks      repository.TaskStore
	categories repository.CategoryStore
}

func NewReminderService(tasks repository.TaskStore, categories repository.CategoryStore) *ReminderService {
	return &ReminderService{tasks: tasks, categories: categories}
}

// Collect sorts open tasks into overdue, due later today and due within the
// upcoming window. Each group is ordered by due date.
func (s *ReminderService) Collect(ctx context.Context, now time.Time) (Digest, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return Digest{}, err
	}

	var d Digest
	endOfToday := truncateDay(now).AddDate(0, 0, 1)
	for _, task := range tasks {
		if task.Completed || task.DueDate == nil {
			continue
		}
		due := task.DueDate.In(now.Location())
		switch {
		case due.Before(now):
			d.Overdue = append(d.Overdue, task)
		case due.Before(endOfToday):
			d.Today = append(d.Today, task)
		case !due.After(endOfToday.Add(upcomingWindow)):
			d.Upcoming = append(d.Upcoming, task)
		}
	}
	byDue(d.Overdue)
	byDue(d.Today)
	byDue(d.Upcoming)
	return d, nil
}

// DailyDigest renders the digest as Telegram HTML.
func (s *ReminderService) DailyDigest(ctx context.Context, now time.Time) (string, error) {
	d, err := s.Collect(ctx, now)
	if err != nil {
		return "", err
	}

	catNames, err := s.categoryNames(ctx)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("Mon, 02 Jan 2006")))

	if d.Empty() {
		builder.WriteString("\n🎉 Nothing due. Enjoy the day!")
		return builder.String(), nil
	}

	writeSection(&builder, "⚠️ <b>Overdue</b>", d.Overdue, catNames, now)
	writeSection(&builder, "⏳ <b>Due today</b>", d.Today, catNames, now)
	writeSection(&builder, "🔜 <b>Coming up</b>", d.Upcoming, catNames, now)

	return strings.TrimSpace(builder.String()), nil
}

// OverdueReminder renders only the overdue tasks. The boolean is false when
// nothing is overdue and no message should go out.
func (s *ReminderService) OverdueReminder(ctx context.Context, now time.Time) (string, bool, error) {
	d, err := s.Collect(ctx, now)
	if err != nil {
		return "", false, err
	}
	if len(d.Overdue) == 0 {
		return "", false, nil
	}
	catNames, err := s.categoryNames(ctx)
	if err != nil {
		return "", false, err
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("⏰ <b>%d overdue task(s)</b>\n", len(d.Overdue)))
	writeSection(&builder, "⚠️ <b>Overdue</b>", d.Overdue, catNames, now)
	return strings.TrimSpace(builder.String()), true, nil
}

func (s *ReminderService) categoryNames(ctx context.Context) (map[string]string, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}

func writeSection(sb *strings.Builder, title string, tasks []model.Task, catNames map[string]string, now time.Time) {
	if len(tasks) == 0 {
		return
	}
	sb.WriteString("\n" + title + "\n")
	for _, task := range tasks {
		sb.WriteString(formatDigestTask(task, catNames, now))
	}
}

func formatDigestTask(task model.Task, catNames map[string]string, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s", PriorityIcon(task.Priority), html.EscapeString(strings.TrimSpace(task.Title))))
	if name := strings.TrimSpace(catNames[task.CategoryID]); name != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
	}
	if task.IsRecurring() || task.IsInstance() {
		sb.WriteString(" ♻️")
	}

	due := task.DueDate.In(now.Location())
	if due.Before(now) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s · <b>overdue</b>", due.Format("2006-01-02 15:04")))
	} else {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", due.Format("2006-01-02 15:04")))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// PriorityIcon returns the colored marker used for p in chat output.
func PriorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

func byDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DueDate.Before(*tasks[j].DueDate)
	})
}
