package models

import "time"

// Class is owned by exactly one teacher and joined by students via code.
type Class struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Name      string    `db:"name" json:"name"`
	JoinCode  string    `db:"join_code" json:"join_code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassDetail augments a class with aggregate counts for list views.
type ClassDetail struct {
	Class
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	GroupCount   int    `db:"group_count" json:"group_count"`
	StudentCount int    `db:"student_count" json:"student_count"`
}
