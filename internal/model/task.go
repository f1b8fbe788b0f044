package model

import "time"

// Priority ranks a task. The zero value is treated as PriorityMedium.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Pattern is the period unit of a recurrence rule.
type Pattern string

const (
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

// RecurrenceRule describes how an anchor task repeats.
// A nil EndDate means generation stops twelve months after the anchor due date.
type RecurrenceRule struct {
	Pattern  Pattern    `json:"pattern"`
	Interval int        `json:"interval"`
	EndDate  *time.Time `json:"endDate,omitempty"`
}

// Task represents a single item in the planner.
type Task struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	Title       string          `gorm:"not null" json:"title"`
	Description string          `json:"description"`
	Notes       string          `json:"notes,omitempty"`
	Completed   bool            `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time      `json:"completedAt"`
	Priority    Priority        `json:"priority"`
	CategoryID  string          `gorm:"index" json:"categoryId"`
	DueDate     *time.Time      `gorm:"index" json:"dueDate"`
	CreatedAt   time.Time       `json:"createdAt"`
	Recurrence  *RecurrenceRule `gorm:"serializer:json" json:"recurrence,omitempty"`
	ParentID    string          `gorm:"index" json:"parentId,omitempty"`
}

// IsRecurring reports whether the task is a recurring anchor. Instances copy
// the rule for display but are not recurring themselves.
func (t Task) IsRecurring() bool {
	return t.Recurrence != nil && t.ParentID == ""
}

// IsInstance reports whether the task was generated from a recurring anchor.
func (t Task) IsInstance() bool {
	return t.ParentID != ""
}

// Overdue reports whether an open task is past its due date.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Valid reports whether p is one of the supported recurrence patterns.
func (p Pattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly:
		return true
	}
	return false
}

// Clone returns a deep copy of t so callers can mutate it freely.
func (t Task) Clone() Task {
	c := t
	c.CompletedAt = copyTime(t.CompletedAt)
	c.DueDate = copyTime(t.DueDate)
	if t.Recurrence != nil {
		rule := *t.Recurrence
		rule.EndDate = copyTime(t.Recurrence.EndDate)
		c.Recurrence = &rule
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
