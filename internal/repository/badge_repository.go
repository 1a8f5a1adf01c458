package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

// ErrBadgeAlreadyAwarded is returned when the (group, badge) pair already
// holds an award row.
var ErrBadgeAlreadyAwarded = errors.New("badge already awarded")

// BadgeRepository handles the badge catalog and group awards.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository constructs the repository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// ListCatalog returns all defined badges.
func (r *BadgeRepository) ListCatalog(ctx context.Context) ([]models.Badge, error) {
	const query = `SELECT id, name, description, icon FROM badges ORDER BY name ASC`
	var badges []models.Badge
	if err := r.db.SelectContext(ctx, &badges, query); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// FindByID returns one catalog badge.
func (r *BadgeRepository) FindByID(ctx context.Context, id string) (*models.Badge, error) {
	const query = `SELECT id, name, description, icon FROM badges WHERE id = $1`
	var badge models.Badge
	if err := r.db.GetContext(ctx, &badge, query, id); err != nil {
		return nil, err
	}
	return &badge, nil
}

// Award grants a badge to a group. The unique (group_id, badge_id) pair
// makes the grant idempotent: a repeat award inserts nothing and returns
// ErrBadgeAlreadyAwarded.
func (r *BadgeRepository) Award(ctx context.Context, groupID, badgeID string) (*models.GroupBadge, error) {
	award := models.GroupBadge{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		BadgeID:   badgeID,
		AwardedAt: time.Now().UTC(),
	}
	const query = `INSERT INTO group_badges (id, group_id, badge_id, awarded_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (group_id, badge_id) DO NOTHING
        RETURNING id`
	var insertedID string
	if err := r.db.GetContext(ctx, &insertedID, query, award.ID, award.GroupID, award.BadgeID, award.AwardedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBadgeAlreadyAwarded
		}
		return nil, fmt.Errorf("award badge: %w", err)
	}
	return &award, nil
}

// ListByGroup returns the badges a group has earned, newest first.
func (r *BadgeRepository) ListByGroup(ctx context.Context, groupID string) ([]models.GroupBadgeDetail, error) {
	const query = `SELECT gb.id, gb.group_id, gb.badge_id, gb.awarded_at,
        b.name AS badge_name, b.icon AS badge_icon
        FROM group_badges gb
        JOIN badges b ON b.id = gb.badge_id
        WHERE gb.group_id = $1
        ORDER BY gb.awarded_at DESC`
	var awards []models.GroupBadgeDetail
	if err := r.db.SelectContext(ctx, &awards, query, groupID); err != nil {
		return nil, fmt.Errorf("list group badges: %w", err)
	}
	return awards, nil
}
