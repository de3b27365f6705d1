// Package notification informs users about what happens to their requests.
package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/user"
)

// Kinds
const (
	KindAssignment = "assignment"
	KindStatus     = "status"
	KindComment    = "comment"
	KindSchedule   = "schedule"
	KindGeneral    = "general"
)

var ErrNotFound = core.NewNotFoundError("notification")

type (
	Notification struct {
		ID          string    `json:"id"`
		RecipientID string    `json:"recipient_id"`
		Kind        string    `json:"kind"`
		Title       string    `json:"title"`
		Message     string    `json:"message"`
		EntityType  string    `json:"entity_type"`
		EntityID    string    `json:"entity_id"`
		IsRead      bool      `json:"is_read"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}

	QueryFilter struct {
		RecipientID string
		UnreadOnly  bool `query:"unread"`
		Limit       int  `query:"limit"`
	}

	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns the matching notifications, newest first.
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		// MarkRead flags the given notifications of recipientID as read; all of them when ids is empty.
		MarkRead(ctx context.Context, recipientID string, ids ...string) (int, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
	).CheckAndPanic()

	return &Service{repo: repo, mailSvc: mailSvc}
}

// Notify stores n for recipient and mails it to them when they have an address.
func (svc *Service) Notify(ctx context.Context, recipient user.User, n Notification) (Notification, error) {
	n.ID = core.NewID()
	n.RecipientID = recipient.ID
	n.IsRead = false
	n.CreatedAt = core.NowFunc()
	if n.Kind == "" {
		n.Kind = KindGeneral
	}

	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	if recipient.Email != "" && recipient.IsActive {
		link := ""
		if n.EntityType != "" && n.EntityID != "" {
			link = n.EntityType + "/" + n.EntityID
		}
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: recipient.Name, Address: recipient.Email}},
			Subject:      n.Title,
			TemplateName: "notification",
			Categories:   []string{"notification", n.Kind},
			TemplateData: map[string]string{
				"Name":    recipient.Name,
				"Title":   n.Title,
				"Message": n.Message,
				"Link":    link,
			},
		})
	}
	return n, nil
}

func (svc *Service) ListFor(ctx context.Context, recipientID string, filter QueryFilter) ([]Notification, error) {
	filter.RecipientID = recipientID
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return svc.repo.QueryNotifications(ctx, filter)
}

// MarkRead flags one notification of recipientID as read.
func (svc *Service) MarkRead(ctx context.Context, recipientID, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.RecipientID != recipientID {
		return Notification{}, ErrNotFound
	}
	if _, err = svc.repo.MarkRead(ctx, recipientID, id); err != nil {
		return Notification{}, errors.Wrap(err, "marking notification as read")
	}
	n.IsRead = true
	return n, nil
}

func (svc *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.MarkRead(ctx, recipientID)
}

func (svc *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.CountUnread(ctx, recipientID)
}
