// Package recurrence turns a recurring anchor task into its follow-up
// occurrences.
package recurrence

import (
	"fmt"
	"time"

	"taskflow/internal/model"
)

const (
	// DefaultMaxInstances caps a single expansion when the caller gives no limit.
	DefaultMaxInstances = 10
	// DefaultHorizonMonths bounds rules that carry no end date.
	DefaultHorizonMonths = 12
)

// Expander generates instances of recurring tasks. It holds no state besides
// the clock used to stamp CreatedAt, so one Expander may be shared freely.
type Expander struct {
	now func() time.Time
}

// Option configures an Expander.
type Option func(*Expander)

// WithClock overrides the clock used for the CreatedAt of generated instances.
func WithClock(now func() time.Time) Option {
	return func(e *Expander) {
		if now != nil {
			e.now = now
		}
	}
}

func NewExpander(opts ...Option) *Expander {
	e := &Expander{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns up to maxInstances occurrences of anchor that follow its due
// date, ordered by ascending due date. The anchor occurrence itself is never
// part of the result.
//
// An anchor without a due date or a recurrence rule yields an empty result, as
// does a rule with a non-positive interval. An unknown pattern stops
// generation and returns whatever was produced so far.
func (e *Expander) Expand(anchor model.Task, maxInstances int) []model.Task {
	if anchor.DueDate == nil || anchor.Recurrence == nil {
		return nil
	}
	rule := *anchor.Recurrence
	if rule.Interval < 1 {
		return nil
	}
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}

	bound := Bound(*anchor.DueDate, rule)
	createdAt := e.now()

	var instances []model.Task
	cursor := *anchor.DueDate
	for first := true; len(instances) < maxInstances && !cursor.After(bound); first = false {
		if !first {
			instances = append(instances, newInstance(anchor, len(instances)+1, cursor, createdAt))
		}
		next, ok := Advance(cursor, rule.Pattern, rule.Interval)
		if !ok {
			break
		}
		cursor = next
	}
	return instances
}

// Bound returns the last moment an occurrence may fall on. An explicit end
// date is inclusive; a date-only end date (midnight) covers its whole day.
// Without an end date the bound is DefaultHorizonMonths after due.
func Bound(due time.Time, rule model.RecurrenceRule) time.Time {
	if rule.EndDate == nil {
		return AddMonths(due, DefaultHorizonMonths)
	}
	end := *rule.EndDate
	if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 && end.Nanosecond() == 0 {
		return end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return end
}

// Advance moves t forward by interval periods of pattern. It reports false for
// an unknown pattern.
func Advance(t time.Time, pattern model.Pattern, interval int) (time.Time, bool) {
	switch pattern {
	case model.PatternDaily:
		return t.AddDate(0, 0, interval), true
	case model.PatternWeekly:
		return t.AddDate(0, 0, 7*interval), true
	case model.PatternMonthly:
		return AddMonths(t, interval), true
	default:
		return t, false
	}
}

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month instead of overflowing into the following one.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysIn(target.Month(), target.Year()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(month time.Month, year int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// InstanceID derives the id of the n-th occurrence of a recurring task.
func InstanceID(parentID string, ordinal int) string {
	return fmt.Sprintf("%s-%d", parentID, ordinal)
}

func newInstance(anchor model.Task, ordinal int, due, createdAt time.Time) model.Task {
	inst := anchor.Clone()
	inst.ID = InstanceID(anchor.ID, ordinal)
	inst.ParentID = anchor.ID
	inst.DueDate = &due
	inst.Completed = false
	inst.CompletedAt = nil
	inst.CreatedAt = createdAt
	return inst
}
