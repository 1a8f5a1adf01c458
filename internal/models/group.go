package models

import "time"

// Group is a team of students within one class. It is the unit that
// accumulates points, streaks and badges.
type Group struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GroupMembership links a student to a group. ClassID is denormalized from
// the group so the database can enforce at most one membership per class
// per student.
type GroupMembership struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}

// GroupDetail joins a group with its points record and member count.
type GroupDetail struct {
	Group
	MemberCount int    `db:"member_count" json:"member_count"`
	TotalPoints int    `db:"total_points" json:"total_points"`
	Streak      int    `db:"streak" json:"streak"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// GroupMemberDetail lists a member with their display name.
type GroupMemberDetail struct {
	GroupMembership
	StudentName string `db:"student_name" json:"student_name"`
}
