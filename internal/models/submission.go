package models

import "time"

// SubmissionStatus tracks the review lifecycle of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusApproved SubmissionStatus = "APPROVED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// Valid reports whether the status is a known lifecycle state.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusApproved, SubmissionStatusRejected:
		return true
	}
	return false
}

// Submission is a proof-of-completion photo for one task by one group.
// A (task, group) pair has at most one PENDING submission at any time,
// enforced by a partial unique index.
type Submission struct {
	ID          string           `db:"id" json:"id"`
	TaskID      string           `db:"task_id" json:"task_id"`
	GroupID     string           `db:"group_id" json:"group_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	ImagePath   string           `db:"image_path" json:"-"`
	Notes       string           `db:"notes" json:"notes"`
	Status      SubmissionStatus `db:"status" json:"status"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
	ApprovedAt  *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
}

// SubmissionDetail joins a submission with task, group and student context.
type SubmissionDetail struct {
	Submission
	TaskName    string `db:"task_name" json:"task_name"`
	TaskPoints  int    `db:"task_points" json:"task_points"`
	GroupName   string `db:"group_name" json:"group_name"`
	StudentName string `db:"student_name" json:"student_name"`
}

// SubmissionFilter captures list criteria for the review queue.
type SubmissionFilter struct {
	ClassID   string
	GroupID   string
	TaskID    string
	Status    SubmissionStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
