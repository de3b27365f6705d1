package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/moze"
)

type mozeApi struct {
	svc      *moze.Service
	sess     *session
	validate *validator.Validate
}

func registerMozeAPI(g *echo.Group, auth echo.MiddlewareFunc, sess *session, deps ServerDeps) {
	api := mozeApi{svc: deps.MozeSvc, sess: sess, validate: deps.Validate}

	mg := g.Group("/mozes", auth)
	mg.GET("", api.query)
	mg.POST("", api.create, adminMiddleware)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy, adminMiddleware)
}

func (api *mozeApi) create(ctx echo.Context) error {
	var data moze.NewMoze
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mz, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating moze")
	}
	return ctx.JSON(http.StatusCreated, mz)
}

func (api *mozeApi) query(ctx echo.Context) error {
	var filter moze.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []moze.Moze{})
	}

	mozes, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying mozes")
	}
	if mozes == nil {
		mozes = []moze.Moze{}
	}
	return ctx.JSON(http.StatusOK, mozes)
}

func (api *mozeApi) retrieve(ctx echo.Context) error {
	mz, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting moze")
	}
	return ctx.JSON(http.StatusOK, mz)
}

func (api *mozeApi) update(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	mz, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting moze")
	}

	var data moze.UpdateMoze
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	if mz, err = api.svc.Update(ctx.Request().Context(), usr, mz, data); err != nil {
		return errors.Wrap(err, "updating moze")
	}
	return ctx.JSON(http.StatusOK, mz)
}

func (api *mozeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting moze")
	}
	return ctx.NoContent(http.StatusNoContent)
}
