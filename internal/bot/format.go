package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
	shortIDLen     = 8
)

var dateLayouts = []string{dateTimeLayout, dateLayout, "02.01.2006 15:04", "02.01.2006"}

// parseDate accepts ISO and dotted dates, with an optional HH:MM time.
func parseDate(text string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	value := strings.Join(strings.Fields(text), " ")
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", text)
}

func parsePriority(text string) (model.Priority, error) {
	value := strings.ToLower(strings.TrimLeftFunc(strings.TrimSpace(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	p := model.Priority(value)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", text)
	}
	return p, nil
}

// parsePattern returns an empty pattern when the task should not repeat.
func parsePattern(text string) (model.Pattern, error) {
	value := strings.ToLower(strings.TrimLeftFunc(strings.TrimSpace(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	switch value {
	case "once", "no", "none", "never":
		return "", nil
	}
	p := model.Pattern(value)
	if !p.Valid() {
		return "", fmt.Errorf("unknown pattern %q", text)
	}
	return p, nil
}

func describeRecurrence(rule *model.RecurrenceRule) string {
	if rule == nil {
		return ""
	}
	var unit string
	switch rule.Pattern {
	case model.PatternDaily:
		unit = "day"
	case model.PatternWeekly:
		unit = "week"
	case model.PatternMonthly:
		unit = "month"
	default:
		unit = string(rule.Pattern)
	}
	text := "every " + unit
	if rule.Interval > 1 {
		text = fmt.Sprintf("every %d %ss", rule.Interval, unit)
	}
	if rule.EndDate != nil {
		text += " until " + rule.EndDate.Format(dateLayout)
	}
	return text
}

// displayID is the short handle shown in chat. Instances keep their ordinal
// suffix so they stay distinguishable from the anchor.
func displayID(task model.Task) string {
	if task.IsInstance() && strings.HasPrefix(task.ID, task.ParentID) {
		return shortID(task.ParentID) + strings.TrimPrefix(task.ID, task.ParentID)
	}
	return shortID(task.ID)
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	switch {
	case task.Completed:
		icon = iconDone
	case task.DueDate != nil && now.After(*task.DueDate):
		icon = iconOverdue
	case task.DueDate != nil && task.DueDate.Sub(now) <= 48*time.Hour:
		icon = iconDue
	}

	title := escape(normalizeTitle(task.Title))
	if task.Completed {
		title = "<s>" + title + "</s>"
	}
	b.WriteString(fmt.Sprintf("%s <code>%s</code> %s %s\n", icon, displayID(task), service.PriorityIcon(task.Priority), title))

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if !task.Completed && now.After(d) {
			b.WriteString(fmt.Sprintf("   ⏰ %s · <b>overdue</b>\n", d.Format(dateTimeLayout)))
		} else {
			b.WriteString(fmt.Sprintf("   ⏰ %s\n", d.Format(dateTimeLayout)))
		}
	}
	switch {
	case task.IsRecurring():
		b.WriteString(fmt.Sprintf("   %s %s\n", iconRecurring, describeRecurrence(task.Recurrence)))
	case task.IsInstance():
		b.WriteString(fmt.Sprintf("   ↳ occurrence of <code>%s</code>\n", shortID(task.ParentID)))
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(shortTitle(task.Description, 120))))
	}
	return b.String()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	var icon string
	switch strings.ToLower(base) {
	case "work":
		icon = "💼"
	case "personal":
		icon = "🧩"
	case "shopping":
		icon = "🛒"
	case "health":
		icon = "🩺"
	case strings.ToLower(noCategory):
		icon = "📁"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(normalizeTitle(base)))
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "no" || value == "back"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}
