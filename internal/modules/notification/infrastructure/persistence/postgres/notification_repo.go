package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/capstonehub/notify/internal/modules/notification/domain"
)

type PgNotificationRepository struct {
	db *sqlx.DB
}

func NewPgNotificationRepository(db *sqlx.DB) *PgNotificationRepository {
	return &PgNotificationRepository{db: db}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, message, entity_type, entity_id, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		n.UserID, n.Title, n.Message, n.EntityType, n.EntityID, n.IsRead,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *PgNotificationRepository) CreateBulk(ctx context.Context, ns []*domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO notifications (user_id, title, message, entity_type, entity_id, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range ns {
		if err := stmt.QueryRowxContext(ctx,
			n.UserID, n.Title, n.Message, n.EntityType, n.EntityID, n.IsRead,
		).Scan(&n.ID, &n.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PgNotificationRepository) List(ctx context.Context, userID uuid.UUID, f domain.ListFilter) ([]domain.Notification, int64, error) {
	f = f.Normalize()

	where := `WHERE user_id = $1`
	args := []interface{}{userID}
	if f.Keyword != "" {
		where += ` AND (title ILIKE '%' || $2 || '%' OR message ILIKE '%' || $2 || '%')`
		args = append(args, f.Keyword)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM notifications ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Size
	listQuery := fmt.Sprintf(`
		SELECT * FROM notifications
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, f.Size, offset)

	notifications := []domain.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *PgNotificationRepository) MarkAsRead(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_read = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	// Nothing flipped: either the notification is already read (idempotent
	// no-op) or it does not belong to this user.
	var exists bool
	existsQuery := `SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`
	if err := r.db.GetContext(ctx, &exists, existsQuery, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrNotificationNotFound
		}
		return false, err
	}
	if !exists {
		return false, domain.ErrNotificationNotFound
	}
	return false, nil
}

func (r *PgNotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PgNotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}
