package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

// PointsRepository reads score state and serves the ranking query. Score
// mutations happen inside the submission repository's approve transaction;
// this repository only owns the streak reset and the read paths.
type PointsRepository struct {
	db *sqlx.DB
}

// NewPointsRepository constructs the repository.
func NewPointsRepository(db *sqlx.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// GetByGroup returns the points row of a group.
func (r *PointsRepository) GetByGroup(ctx context.Context, groupID string) (*models.GroupPoints, error) {
	const query = `SELECT group_id, total_points, streak, last_submission_date, updated_at
        FROM group_points WHERE group_id = $1`
	var points models.GroupPoints
	if err := r.db.GetContext(ctx, &points, query, groupID); err != nil {
		return nil, err
	}
	return &points, nil
}

// EnsureForGroup creates a zeroed points row if one is missing.
func (r *PointsRepository) EnsureForGroup(ctx context.Context, groupID string) error {
	const query = `INSERT INTO group_points (group_id, total_points, streak, updated_at)
        VALUES ($1, 0, 0, $2) ON CONFLICT (group_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure group points: %w", err)
	}
	return nil
}

// ResetStreak zeroes a group's streak. Accumulated points are kept.
func (r *PointsRepository) ResetStreak(ctx context.Context, groupID string) error {
	const query = `UPDATE group_points SET streak = 0, updated_at = $2 WHERE group_id = $1`
	if _, err := r.db.ExecContext(ctx, query, groupID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return nil
}

// Leaderboard returns the groups of a class ordered by total points, with
// ties broken by streak and then name for a stable ordering.
func (r *PointsRepository) Leaderboard(ctx context.Context, classID string) ([]models.LeaderboardEntry, error) {
	const query = `SELECT g.id AS group_id, g.name AS group_name,
        COALESCE(p.total_points, 0) AS total_points,
        COALESCE(p.streak, 0) AS streak,
        COUNT(DISTINCT gb.id) AS badge_count
        FROM groups g
        LEFT JOIN group_points p ON p.group_id = g.id
        LEFT JOIN group_badges gb ON gb.group_id = g.id
        WHERE g.class_id = $1
        GROUP BY g.id, g.name, p.total_points, p.streak
        ORDER BY COALESCE(p.total_points, 0) DESC, COALESCE(p.streak, 0) DESC, g.name ASC`
	var entries []models.LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
