package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/notification"
)

type notificationApi struct {
	svc  *notification.Service
	sess *session
}

func registerNotificationAPI(g *echo.Group, auth echo.MiddlewareFunc, sess *session, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc, sess: sess}

	ng := g.Group("/notifications", auth)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var filter notification.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []notification.Notification{})
	}

	list, err := api.svc.ListFor(ctx.Request().Context(), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if list == nil {
		list = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkRead(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
