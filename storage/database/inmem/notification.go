package inmemdb

import (
	"context"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n.ID = ensureID(n.ID)
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.table), func(n notification.Notification, _ int) bool {
		if filter.RecipientID != "" && n.RecipientID != filter.RecipientID {
			return false
		}
		return !filter.UnreadOnly || !n.IsRead
	})
	orderBy(list, nil, newestFirst, func(n notification.Notification, _ string) interface{} { return n.CreatedAt })
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cnt := 0
	for _, n := range repo.db.table {
		if n.RecipientID != recipientID || n.IsRead {
			continue
		}
		if len(ids) > 0 && !lo.Contains(ids, n.ID) {
			continue
		}
		n.IsRead = true
		cnt++
	}
	return cnt, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return lo.CountBy(rows(repo.db.table), func(n notification.Notification) bool {
		return n.RecipientID == recipientID && !n.IsRead
	}), nil
}
