package models

import "time"

// GroupPoints holds the cumulative score and streak state for one group.
// Mutated only by the review engine: incremented on approval, streak reset
// on rejection.
type GroupPoints struct {
	GroupID            string     `db:"group_id" json:"group_id"`
	TotalPoints        int        `db:"total_points" json:"total_points"`
	Streak             int        `db:"streak" json:"streak"`
	LastSubmissionDate *time.Time `db:"last_submission_date" json:"last_submission_date,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// LeaderboardEntry is one ranked row of a class leaderboard.
type LeaderboardEntry struct {
	Rank        int    `db:"-" json:"rank"`
	GroupID     string `db:"group_id" json:"group_id"`
	GroupName   string `db:"group_name" json:"group_name"`
	TotalPoints int    `db:"total_points" json:"total_points"`
	Streak      int    `db:"streak" json:"streak"`
	BadgeCount  int    `db:"badge_count" json:"badge_count"`
}
