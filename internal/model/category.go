package model

// Category groups tasks by area (work, personal, shopping, etc.).
// TaskCount and CompletedCount are derived from the task set on every read
// and never stored. Names are unique regardless of case.
type Category struct {
	ID             string `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"type:text collate nocase;uniqueIndex;not null" json:"name"`
	Color          string `json:"color"`
	TaskCount      int    `gorm:"-" json:"taskCount"`
	CompletedCount int    `gorm:"-" json:"completedCount"`
}
