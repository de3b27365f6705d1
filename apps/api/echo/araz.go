package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/araz"
)

type arazApi struct {
	svc      *araz.Service
	sess     *session
	validate *validator.Validate
}

func registerArazAPI(g *echo.Group, auth echo.MiddlewareFunc, sess *session, deps ServerDeps) {
	api := arazApi{svc: deps.ArazSvc, sess: sess, validate: deps.Validate}

	ag := g.Group("/araz", auth)
	ag.GET("/stats", api.stats)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/status", api.updateStatus)
	ag.POST("/:id/schedule", api.schedule)
	ag.GET("/:id/comments", api.queryComments)
	ag.POST("/:id/comments", api.createComment)
	ag.POST("/:id/assign", api.assign)
	ag.GET("/:id/assignments", api.queryAssignments)
}

func (api *arazApi) create(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data araz.NewAraz
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating araz")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *arazApi) query(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var filter araz.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []araz.Araz{})
	}
	if err = bindCreatedRange(ctx, &filter.CreatedFrom, &filter.CreatedTo); err != nil {
		return err
	}

	list, err := api.svc.Query(ctx.Request().Context(), viewer, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying araz")
	}
	if list == nil {
		list = []araz.Araz{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *arazApi) retrieve(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Get(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting araz")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *arazApi) update(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data araz.UpdateAraz
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating araz")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *arazApi) updateStatus(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data araz.StatusUpdate
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.UpdateStatus(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating araz status")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *arazApi) schedule(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data araz.Schedule
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Schedule(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "scheduling araz")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *arazApi) destroy(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), viewer, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting araz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *arazApi) stats(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), viewer)
	if err != nil {
		return errors.Wrap(err, "computing araz stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *arazApi) queryComments(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	comments, err := api.svc.Comments(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying araz comments")
	}
	if comments == nil {
		comments = []araz.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *arazApi) createComment(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data araz.NewComment
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.AddComment(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding araz comment")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *arazApi) assign(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data araz.NewAssignment
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Assign(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning araz")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *arazApi) queryAssignments(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	list, err := api.svc.Assignments(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying araz assignments")
	}
	if list == nil {
		list = []araz.Assignment{}
	}
	return ctx.JSON(http.StatusOK, list)
}
