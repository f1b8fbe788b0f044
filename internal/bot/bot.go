package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stagePriority
	stageDueDate
	stagePattern
	stageInterval
	stageEndDate
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
)

const (
	btnSkip             = "⏭️ Skip"
	btnOnce             = "1️⃣ Once"
	btnConfirm          = "✅ Confirm"
	btnCancel           = "↩️ Back"
	btnCancelDialog     = "⏪ Cancel input"
	noCategory          = "No category"
	iconDefault         = "🟢"
	iconDone            = "✅"
	iconDue             = "⏳"
	iconOverdue         = "⚠️"
	iconRecurring       = "♻️"
	menuLabelNewTask    = "➕ New task"
	menuLabelTasks      = "📋 Tasks"
	menuLabelCategories = "📂 Categories"
	menuLabelDigest     = "🗓 Digest"
	menuLabelHelp       = "ℹ️ Help"
)

// maxListed caps a task list so the message stays under Telegram's limit.
const maxListed = 30

// botAPI is the part of tgbotapi.BotAPI the bot talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationRequest struct {
	taskID string
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           botAPI
	subscribers   repository.SubscriberStore
	categorySvc   *service.CategoryService
	taskSvc       *service.TaskService
	reminderSvc   *service.ReminderService
	loc           *time.Location
	now           func() time.Time
	log           *logrus.Entry
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, subscribers repository.SubscriberStore, categorySvc *service.CategoryService, taskSvc *service.TaskService, reminderSvc *service.ReminderService, loc *time.Location, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, subscribers, categorySvc, taskSvc, reminderSvc, loc, log)
	b.log.WithField("account", api.Self.UserName).Info("bot authorized")
	return b, nil
}

func newBot(api botAPI, subscribers repository.SubscriberStore, categorySvc *service.CategoryService, taskSvc *service.TaskService, reminderSvc *service.ReminderService, loc *time.Location, log logrus.FieldLogger) *Bot {
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:           api,
		subscribers:   subscribers,
		categorySvc:   categorySvc,
		taskSvc:       taskSvc,
		reminderSvc:   reminderSvc,
		loc:           loc,
		now:           time.Now,
		log:           logger.Component(log, "bot"),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.WithError(err).Error("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.WithError(err).Error("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled. Start again whenever you like.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"user": msg.From.ID, "command": msg.Command()}).Info("command received")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		b.log.WithFields(logrus.Fields{"user": msg.From.ID, "stage": state.stage}).Debug("conversation step")
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /new to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "new", "newtask":
		return b.startNewTaskConversation(msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "search":
		return b.handleSearch(ctx, msg)
	case "done", "complete":
		return b.handleComplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "digest":
		return b.handleDigest(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. Have a look at /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	sub := &model.Subscriber{
		ChatID:    msg.Chat.ID,
		FirstName: msg.From.FirstName,
		Username:  msg.From.UserName,
	}
	if err := b.subscribers.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("subscribe chat %d: %w", msg.Chat.ID, err)
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep track of your tasks and the ones that repeat.</b>\n"+
			"You will get a digest of what is due every morning.\n\n%s",
		escape(name), commandList,
	)
	return b.sendText(msg.Chat.ID, text)
}

const commandList = "Commands:\n" +
	"• /new — add a task step by step\n" +
	"• /tasks [category] — open tasks, optionally of one category\n" +
	"• /search &lt;text&gt; — find tasks by title or description\n" +
	"• /done &lt;id&gt; — mark a task as done\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /categories — categories with progress\n" +
	"• /digest — what is overdue and due soon\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Help</b>\n" + commandList + "\n\n" +
		"Dates look like <code>2025-11-30</code> or <code>2025-11-30 18:00</code>. " +
		"A recurring task needs a due date and creates up to ten upcoming occurrences."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.reminderSvc.DailyDigest(ctx, b.now().In(b.loc))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the digest: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	b.log.WithField("user", msg.From.ID).Info("start new task conversation")
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The title cannot be empty. What should the task be called?", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(chatID, "✏️ Add a short description (or press «Skip»).", skipKeyboard())

	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		categories, err := b.categorySvc.List(ctx)
		if err != nil {
			return err
		}
		if len(categories) == 0 {
			b.clearConversation(msg.From.ID)
			return b.sendText(chatID, "There are no categories yet, so the task cannot be filed.")
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(chatID, "🏷 Pick a category.", categoryKeyboard(categories))

	case stageCategory:
		cat, err := b.categorySvc.Resolve(ctx, text)
		if errors.Is(err, service.ErrCategoryNotFound) {
			categories, listErr := b.categorySvc.List(ctx)
			if listErr != nil {
				return listErr
			}
			return b.sendWithReplyMarkup(chatID, "I do not know that category. Pick one of the buttons.", categoryKeyboard(categories))
		}
		if err != nil {
			return err
		}
		state.input.CategoryID = cat.ID
		state.stage = stagePriority
		return b.sendWithReplyMarkup(chatID, "🚦 How important is it? («Skip» means medium)", priorityKeyboard())

	case stagePriority:
		if isSkipInput(text) {
			state.input.Priority = model.PriorityMedium
		} else {
			p, err := parsePriority(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Choose high, medium or low.", priorityKeyboard())
			}
			state.input.Priority = p
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(chatID, "⏰ When is it due? Use <code>2025-11-30</code> or <code>2025-11-30 18:00</code> (or «Skip»).", skipKeyboard())

	case stageDueDate:
		if isSkipInput(text) {
			return b.completeConversation(ctx, msg, state)
		}
		due, err := parseDate(text, b.loc)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2025-11-30</code> or «Skip».", skipKeyboard())
		}
		state.input.DueDate = &due
		state.stage = stagePattern
		return b.sendWithReplyMarkup(chatID, "🔁 Should it repeat?", patternKeyboard())

	case stagePattern:
		pattern, err := parsePattern(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "Choose once, daily, weekly or monthly.", patternKeyboard())
		}
		if pattern == "" {
			return b.completeConversation(ctx, msg, state)
		}
		state.input.Recurrence = &service.RecurrenceInput{Pattern: pattern, Interval: 1}
		state.stage = stageInterval
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🔢 Repeat every how many %s? («Skip» means 1)", patternUnit(pattern)), skipKeyboard())

	case stageInterval:
		if !isSkipInput(text) {
			n, err := strconv.Atoi(text)
			if err != nil || n < 1 {
				return b.sendWithReplyMarkup(chatID, "The interval must be a positive whole number.", skipKeyboard())
			}
			state.input.Recurrence.Interval = n
		}
		state.stage = stageEndDate
		return b.sendWithReplyMarkup(chatID, "🏁 Until which date? («Skip» means one year ahead)", skipKeyboard())

	case stageEndDate:
		if !isSkipInput(text) {
			end, err := parseDate(text, b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2025-12-31</code> or «Skip».", skipKeyboard())
			}
			if end.Before(startOfDay(*state.input.DueDate)) {
				return b.sendWithReplyMarkup(chatID, "The end date cannot be before the due date.", skipKeyboard())
			}
			state.input.Recurrence.EndDate = &end
		}
		return b.completeConversation(ctx, msg, state)

	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "The input was reset. Try again with /new.")
	}
}

func (b *Bot) completeConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	err := b.finishTaskCreation(ctx, msg.Chat.ID, state.input)
	b.clearConversation(msg.From.ID)
	return err
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	res, err := b.taskSvc.CreateTask(ctx, input)
	if err != nil {
		if res != nil {
			b.log.WithError(err).WithField("task_id", res.Task.ID).Warn("recurring task stored partially")
			return b.sendText(chatID, fmt.Sprintf("⚠️ Saved %d task(s), then failed: %s", res.Total(), escape(err.Error())))
		}
		return b.sendText(chatID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	task := res.Task
	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> <code>%s</code>\n", displayID(task)))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s %s\n", service.PriorityIcon(task.Priority), task.Priority))
	if task.DueDate != nil {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.loc).Format(dateTimeLayout)))
	}
	if task.IsRecurring() {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", describeRecurrence(task.Recurrence)))
		summary.WriteString(fmt.Sprintf("\n%s Created %d tasks in total.", iconRecurring, res.Total()))
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func patternUnit(p model.Pattern) string {
	switch p {
	case model.PatternDaily:
		return "days"
	case model.PatternWeekly:
		return "weeks"
	default:
		return "months"
	}
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	filter := service.Filter{Status: service.StatusPending}
	heading := "📋 <b>Open tasks</b>"
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" && arg != service.CategoryAll {
		cat, err := b.categorySvc.Resolve(ctx, arg)
		if errors.Is(err, service.ErrCategoryNotFound) {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Category «%s» not found. See /categories.", escape(arg)))
		}
		if err != nil {
			return err
		}
		filter.CategoryID = cat.ID
		heading = fmt.Sprintf("📋 <b>Open tasks</b> · %s", categoryLabel(cat.Name))
	}

	tasks, err := b.taskSvc.ListTasks(ctx, filter)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "No open tasks. Add one with /new.")
	}
	return b.sendTaskList(ctx, msg.Chat.ID, heading, tasks)
}

func (b *Bot) handleSearch(ctx context.Context, msg *tgbotapi.Message) error {
	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		return b.sendText(msg.Chat.ID, "Tell me what to look for: /search groceries")
	}
	tasks, err := b.taskSvc.ListTasks(ctx, service.Filter{Query: query})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Search failed: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Nothing matches «%s».", escape(query)))
	}
	return b.sendTaskList(ctx, msg.Chat.ID, fmt.Sprintf("🔎 <b>Results for</b> «%s»", escape(query)), tasks)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give me the task id: /done 1a2b3c4d")
	}
	task, err := b.resolveTask(ctx, ref)
	if err != nil {
		return b.sendTaskError(msg.Chat.ID, err)
	}
	return b.completeTaskAndRefresh(ctx, msg.Chat.ID, task.ID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Give me the task id: /delete 1a2b3c4d")
	}
	task, err := b.resolveTask(ctx, ref)
	if err != nil {
		return b.sendTaskError(msg.Chat.ID, err)
	}
	return b.askDeleteConfirmation(msg.Chat.ID, msg.From.ID, *task)
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	categories, err := b.categorySvc.List(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load categories: %s", escape(err.Error())))
	}
	sum, err := b.categorySvc.Summary(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load categories: %s", escape(err.Error())))
	}

	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	builder.WriteString(fmt.Sprintf("• 🗂 All tasks · %d/%d done\n", sum.Completed, sum.Total))
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s · %d/%d done\n", categoryLabel(cat.Name), cat.CompletedCount, cat.TaskCount))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteTask(ctx, msg.Chat.ID, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Nothing was deleted.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

// SendDailyDigest pushes the digest to every chat that issued /start.
func (b *Bot) SendDailyDigest(ctx context.Context) error {
	subs, err := b.subscribers.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}
	text, err := b.reminderSvc.DailyDigest(ctx, b.now().In(b.loc))
	if err != nil {
		return err
	}
	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(sub.ChatID, text); err != nil {
			b.log.WithError(err).WithField("chat", sub.ChatID).Warn("send digest")
		}
	}
	b.log.WithField("chats", len(subs)).Info("daily digest sent")
	return nil
}

// SendOverdueReminders nudges every subscriber about overdue tasks. Nothing
// is sent while no task is overdue.
func (b *Bot) SendOverdueReminders(ctx context.Context) error {
	text, ok, err := b.reminderSvc.OverdueReminder(ctx, b.now().In(b.loc))
	if err != nil || !ok {
		return err
	}
	subs, err := b.subscribers.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.sendText(sub.ChatID, text); err != nil {
			b.log.WithError(err).WithField("chat", sub.ChatID).Warn("send overdue reminder")
		}
	}
	b.log.WithField("chats", len(subs)).Debug("overdue reminder sent")
	return nil
}

// resolveTask accepts a full task id or the short id shown in chat.
func (b *Bot) resolveTask(ctx context.Context, ref string) (*model.Task, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	task, err := b.taskSvc.GetTask(ctx, ref)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	tasks, err := b.taskSvc.ListTasks(ctx, service.Filter{})
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if strings.EqualFold(displayID(tasks[i]), ref) {
			return &tasks[i], nil
		}
	}
	return nil, fmt.Errorf("task %q: %w", ref, repository.ErrNotFound)
}

func (b *Bot) sendTaskError(chatID int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return b.sendText(chatID, "Task not found.")
	}
	return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, heading string, tasks []model.Task) error {
	categories, err := b.categorySvc.List(ctx)
	if err != nil {
		return err
	}
	catNames := make(map[string]string, len(categories))
	for _, cat := range categories {
		catNames[cat.ID] = cat.Name
	}

	type categoryGroup struct {
		Name  string
		Tasks []model.Task
	}

	shown := tasks
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}

	groups := make(map[string]*categoryGroup)
	var order []string
	for _, task := range shown {
		name := strings.TrimSpace(catNames[task.CategoryID])
		if name == "" {
			name = noCategory
		}
		key := strings.ToLower(name)
		group, ok := groups[key]
		if !ok {
			group = &categoryGroup{Name: name}
			groups[key] = group
			order = append(order, key)
		}
		group.Tasks = append(group.Tasks, task)
	}

	sort.Slice(order, func(i, j int) bool {
		return groups[order[i]].Name < groups[order[j]].Name
	})

	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString(heading + "\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, key := range order {
		section := groups[key]
		sort.SliceStable(section.Tasks, func(i, j int) bool {
			a, c := section.Tasks[i], section.Tasks[j]
			if a.DueDate != nil && c.DueDate != nil && !a.DueDate.Equal(*c.DueDate) {
				return a.DueDate.Before(*c.DueDate)
			}
			if (a.DueDate == nil) != (c.DueDate == nil) {
				return a.DueDate != nil
			}
			return a.Title < c.Title
		})

		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", categoryLabel(section.Name)))
		for _, task := range section.Tasks {
			builder.WriteString(formatTask(task, now))
			var row []tgbotapi.InlineKeyboardButton
			if !task.Completed {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("✅ %s · %s", displayID(task), shortTitle(task.Title, 20)),
					cbCompletePrefix+task.ID,
				))
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID))
			buttons = append(buttons, row)
		}
		builder.WriteByte('\n')
	}
	if hidden := len(tasks) - len(shown); hidden > 0 {
		builder.WriteString(fmt.Sprintf("…and %d more.", hidden))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Warn("callback ack")
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID := strings.TrimPrefix(data, cbCompletePrefix)
		b.log.WithFields(logrus.Fields{"user": cb.From.ID, "task_id": taskID}).Info("callback complete")
		return b.completeTaskAndRefresh(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID := strings.TrimPrefix(data, cbDeletePrefix)
		b.log.WithFields(logrus.Fields{"user": cb.From.ID, "task_id": taskID}).Info("callback delete")
		task, err := b.taskSvc.GetTask(ctx, taskID)
		if err != nil {
			return b.sendTaskError(chatID, err)
		}
		return b.askDeleteConfirmation(chatID, cb.From.ID, *task)
	default:
		return nil
	}
}

func (b *Bot) askDeleteConfirmation(chatID, userID int64, task model.Task) error {
	text := fmt.Sprintf("Delete task «%s» (<code>%s</code>)?", escape(normalizeTitle(task.Title)), displayID(task))
	switch {
	case task.IsRecurring():
		text += "\nIts generated occurrences stay in the list."
	case task.IsInstance():
		text += "\nOnly this occurrence is removed."
	}
	b.setConfirmation(userID, confirmationRequest{taskID: task.ID})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendTaskError(chatID, err)
	}
	if task.Completed {
		return b.sendText(chatID, "That task is already done.")
	}

	task, err = b.taskSvc.ToggleComplete(ctx, taskID)
	if err != nil {
		return b.sendTaskError(chatID, err)
	}
	if err := b.sendText(chatID, fmt.Sprintf("✅ Task «%s» done.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}

	open, err := b.taskSvc.ListTasks(ctx, service.Filter{Status: service.StatusPending})
	if err != nil || len(open) == 0 {
		return err
	}
	return b.sendTaskList(ctx, chatID, "📋 <b>Open tasks</b>", open)
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendTaskError(chatID, err)
	}
	if err := b.taskSvc.DeleteTask(ctx, taskID); err != nil {
		return b.sendTaskError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Task «%s» deleted.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(ctx, msg)
	case strings.ToLower(menuLabelDigest):
		return true, b.handleDigest(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}
