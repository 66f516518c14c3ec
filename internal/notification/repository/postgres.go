package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/campops/procurement-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertNotificationQuery = `
	INSERT INTO notifications (
		id, user_id, type, title, message, order_id, order_item_id,
		is_read, created_at, updated_at
	)
	VALUES (
		:id, :user_id, :type, :title, :message, :order_id, :order_item_id,
		:is_read, :created_at, :updated_at
	)
`

func (r *PGRepository) CreateBatch(ctx context.Context, rows []model.Notification) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range rows {
		if _, err := tx.NamedExecContext(ctx, insertNotificationQuery, &rows[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PGRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `SELECT * FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	var rows []model.Notification
	err := r.DB.SelectContext(ctx, &rows, query, userID, limit)
	return rows, err
}

func (r *PGRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.DB.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`, userID)
	return count, err
}

func (r *PGRepository) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		`UPDATE notifications SET is_read = true WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return 0, err
	}
	query = r.DB.Rebind(query)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	var row model.Notification
	err := r.DB.GetContext(ctx, &row, `SELECT * FROM notifications WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	return err
}
