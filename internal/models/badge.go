package models

import "time"

// Badge is a catalog entry seeded by migration.
type Badge struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Icon        string `db:"icon" json:"icon"`
}

// GroupBadge records a one-off award of a badge to a group. The
// (group, badge) pair is unique.
type GroupBadge struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	BadgeID   string    `db:"badge_id" json:"badge_id"`
	AwardedAt time.Time `db:"awarded_at" json:"awarded_at"`
}

// GroupBadgeDetail includes the catalog fields for display.
type GroupBadgeDetail struct {
	GroupBadge
	BadgeName string `db:"badge_name" json:"badge_name"`
	BadgeIcon string `db:"badge_icon" json:"badge_icon"`
}
