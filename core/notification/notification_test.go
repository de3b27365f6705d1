package notification_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umoorsehhat/sehhat/core/notification"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/services/email"
	"github.com/umoorsehhat/sehhat/tests"
)

func TestService(t *testing.T) {
	stack := testutil.NewStack()
	svc := stack.NotificationSvc
	ctx := context.Background()

	alice := testutil.CreateUser(t, stack.UserRepo, "Alice", "alice1", "alice@sehhat.test", "", user.RolePatient, true)
	bob := testutil.CreateUser(t, stack.UserRepo, "Bob", "bob123", "", "", user.RolePatient, true)

	n, err := svc.Notify(ctx, alice, notification.Notification{Title: "Hello", Message: "Welcome", IsRead: true})
	if assert.NoError(t, err) {
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, alice.ID, n.RecipientID)
		assert.Equal(t, notification.KindGeneral, n.Kind)
		assert.False(t, n.IsRead)
		assert.False(t, n.CreatedAt.IsZero())
	}
	for i := 0; i < 3; i++ {
		_, err = svc.Notify(ctx, alice, notification.Notification{Kind: notification.KindStatus, Title: fmt.Sprintf("Status %d", i)})
		assert.NoError(t, err)
	}
	bobN, err := svc.Notify(ctx, bob, notification.Notification{Title: "Hi Bob"})
	assert.NoError(t, err)

	t.Run("mailed", func(t *testing.T) {
		sent := emailsvc.SentTo(alice.Email)
		if assert.Len(t, sent, 4) {
			assert.Equal(t, []string{"notification", notification.KindGeneral}, sent[0].Categories)
			assert.Contains(t, sent[0].TextContent, "Welcome")
			assert.Contains(t, sent[3].HTMLContent, "Status 2")
		}
	})

	t.Run("list", func(t *testing.T) {
		all, err := svc.ListFor(ctx, alice.ID, notification.QueryFilter{})
		assert.NoError(t, err)
		assert.Len(t, all, 4)

		some, err := svc.ListFor(ctx, alice.ID, notification.QueryFilter{Limit: 2})
		assert.NoError(t, err)
		assert.Len(t, some, 2)

		mine, err := svc.ListFor(ctx, alice.ID, notification.QueryFilter{RecipientID: bob.ID})
		assert.NoError(t, err)
		assert.Len(t, mine, 4)
	})

	t.Run("mark read", func(t *testing.T) {
		_, err := svc.MarkRead(ctx, alice.ID, bobN.ID)
		assert.Equal(t, notification.ErrNotFound, err)

		read, err := svc.MarkRead(ctx, alice.ID, n.ID)
		if assert.NoError(t, err) {
			assert.True(t, read.IsRead)
		}
		count, err := svc.UnreadCount(ctx, alice.ID)
		assert.NoError(t, err)
		assert.Equal(t, 3, count)

		unread, err := svc.ListFor(ctx, alice.ID, notification.QueryFilter{UnreadOnly: true})
		assert.NoError(t, err)
		assert.Len(t, unread, 3)
	})

	t.Run("mark all read", func(t *testing.T) {
		marked, err := svc.MarkAllRead(ctx, alice.ID)
		assert.NoError(t, err)
		assert.Equal(t, 3, marked)

		count, err := svc.UnreadCount(ctx, alice.ID)
		assert.NoError(t, err)
		assert.Zero(t, count)

		count, err = svc.UnreadCount(ctx, bob.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
