package models

import "time"

// Task is a teacher-defined cleaning assignment with a point value.
type Task struct {
	ID          string     `db:"id" json:"id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	Name        string     `db:"name" json:"name"`
	Area        string     `db:"area" json:"area"`
	Points      int        `db:"points" json:"points"`
	Description *string    `db:"description" json:"description,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
