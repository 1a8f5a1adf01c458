package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

// ErrMembershipExists is returned when the (class_id, student_id) unique
// constraint rejects an insert because the student already belongs to a
// group in that class.
var ErrMembershipExists = errors.New("student already belongs to a group in this class")

// GroupRepository handles groups, memberships and the transfer transaction.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create persists a new group together with its zeroed points row.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) (err error) {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create group: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertGroup = `INSERT INTO groups (id, class_id, name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, insertGroup, group.ID, group.ClassID, group.Name, group.CreatedAt); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	const insertPoints = `INSERT INTO group_points (group_id, total_points, streak, updated_at)
        VALUES ($1, 0, 0, $2) ON CONFLICT (group_id) DO NOTHING`
	if _, err = tx.ExecContext(ctx, insertPoints, group.ID, group.CreatedAt); err != nil {
		return fmt.Errorf("insert group points: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create group: %w", err)
	}
	return nil
}

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, class_id, name, created_at FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByClassAndName resolves a group within a class by display name.
func (r *GroupRepository) FindByClassAndName(ctx context.Context, classID, name string) (*models.Group, error) {
	const query = `SELECT id, class_id, name, created_at FROM groups WHERE class_id = $1 AND name = $2`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, classID, name); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListByClass returns groups of a class with member counts and scores.
func (r *GroupRepository) ListByClass(ctx context.Context, classID string) ([]models.GroupDetail, error) {
	const query = `SELECT g.id, g.class_id, g.name, g.created_at,
        c.name AS class_name,
        COUNT(DISTINCT gm.student_id) AS member_count,
        COALESCE(p.total_points, 0) AS total_points,
        COALESCE(p.streak, 0) AS streak
        FROM groups g
        JOIN classes c ON c.id = g.class_id
        LEFT JOIN group_members gm ON gm.group_id = g.id
        LEFT JOIN group_points p ON p.group_id = g.id
        WHERE g.class_id = $1
        GROUP BY g.id, c.name, p.total_points, p.streak
        ORDER BY g.name ASC`
	var groups []models.GroupDetail
	if err := r.db.SelectContext(ctx, &groups, query, classID); err != nil {
		return nil, fmt.Errorf("list groups by class: %w", err)
	}
	return groups, nil
}

// ListMembers returns the members of a group with display names.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]models.GroupMemberDetail, error) {
	const query = `SELECT gm.id, gm.group_id, gm.student_id, gm.joined_at, u.full_name AS student_name
        FROM group_members gm
        JOIN users u ON u.id = gm.student_id
        WHERE gm.group_id = $1
        ORDER BY u.full_name ASC`
	var members []models.GroupMemberDetail
	if err := r.db.SelectContext(ctx, &members, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}

// FindMembershipInClass returns the student's group within a class, if any.
func (r *GroupRepository) FindMembershipInClass(ctx context.Context, studentID, classID string) (*models.Group, error) {
	const query = `SELECT g.id, g.class_id, g.name, g.created_at
        FROM group_members gm
        JOIN groups g ON g.id = gm.group_id
        WHERE gm.student_id = $1 AND gm.class_id = $2
        LIMIT 1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, studentID, classID); err != nil {
		return nil, err
	}
	return &group, nil
}

// AddMember inserts a membership row. A concurrent insert for the same
// student in the same class loses on the (class_id, student_id) constraint
// and gets ErrMembershipExists.
func (r *GroupRepository) AddMember(ctx context.Context, membership *models.GroupMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now().UTC()
	}
	const query = `INSERT INTO group_members (id, group_id, class_id, student_id, joined_at)
        VALUES (:id, :group_id, :class_id, :student_id, :joined_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrMembershipExists
		}
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember deletes a single membership.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, studentID string) error {
	const query = `DELETE FROM group_members WHERE group_id = $1 AND student_id = $2`
	result, err := r.db.ExecContext(ctx, query, groupID, studentID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Transfer atomically moves a student into the target group: every
// membership in the target group's class is removed, then the new one is
// inserted. A failing insert rolls the removal back so the student is
// never left without a group.
func (r *GroupRepository) Transfer(ctx context.Context, studentID, targetGroupID, classID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteQuery = `DELETE FROM group_members WHERE class_id = $1 AND student_id = $2`
	if _, err = tx.ExecContext(ctx, deleteQuery, classID, studentID); err != nil {
		return fmt.Errorf("remove memberships in class: %w", err)
	}

	const insertQuery = `INSERT INTO group_members (id, group_id, class_id, student_id, joined_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insertQuery, uuid.NewString(), targetGroupID, classID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert target membership: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}
