package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/audit"
)

func registerAuditAPI(g *echo.Group, auth echo.MiddlewareFunc, deps ServerDeps) {
	svc := deps.AuditSvc

	g.GET("/audit", func(ctx echo.Context) error {
		var filter audit.QueryFilter
		if err := ctx.Bind(&filter); err != nil {
			return ctx.JSON(http.StatusOK, []audit.Entry{})
		}
		if err := bindCreatedRange(ctx, &filter.CreatedFrom, &filter.CreatedTo); err != nil {
			return err
		}

		entries, err := svc.Query(ctx.Request().Context(), filter)
		if err != nil {
			return errors.Wrap(err, "querying audit log")
		}
		if entries == nil {
			entries = []audit.Entry{}
		}
		return ctx.JSON(http.StatusOK, entries)
	}, auth, adminMiddleware)
}
