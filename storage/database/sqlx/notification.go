package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/notification"
)

const insertNotification = `INSERT INTO notifications (id, recipient_id, kind, title, message, entity_type, entity_id, is_read, created_at)
VALUES (:id, :recipient_id, :kind, :title, :message, :entity_type, :entity_id, :is_read, :created_at)`

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	Kind        string    `db:"kind"`
	Title       string    `db:"title"`
	Message     string    `db:"message"`
	EntityType  string    `db:"entity_type"`
	EntityID    string    `db:"entity_id"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r notificationRow) notification() notification.Notification {
	return notification.Notification(r)
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = core.NewID()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	if _, err := repo.db.NamedExecContext(ctx, insertNotification, notificationRow(n)); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	var w where
	if filter.RecipientID != "" {
		if !core.IsValidID(filter.RecipientID) {
			return []notification.Notification{}, nil
		}
		w.add("recipient_id = ?", filter.RecipientID)
	}
	if filter.UnreadOnly {
		w.add("NOT is_read")
	}

	query := "SELECT * FROM notifications" + w.String() + " ORDER BY created_at DESC"
	args := w.args
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	list := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.notification())
	}
	return list, nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if !core.IsValidID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var r notificationRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM notifications WHERE id = $1", id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "selecting notification")
	}
	return r.notification(), nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error) {
	if !core.IsValidID(recipientID) {
		return 0, nil
	}

	query, args := "UPDATE notifications SET is_read = true WHERE recipient_id = ? AND NOT is_read", []interface{}{recipientID}
	if len(ids) > 0 {
		valid := make([]string, 0, len(ids))
		for _, id := range ids {
			if core.IsValidID(id) {
				valid = append(valid, id)
			}
		}
		if len(valid) == 0 {
			return 0, nil
		}
		var err error
		query, args, err = sqlx.In(query+" AND id IN (?)", recipientID, valid)
		if err != nil {
			return 0, errors.Wrap(err, "expanding notification ids")
		}
	}

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting read notifications")
	}
	return int(n), nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	if !core.IsValidID(recipientID) {
		return 0, nil
	}
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read", recipientID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return n, nil
}
