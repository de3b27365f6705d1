package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/evaluation"
)

type evaluationApi struct {
	svc      *evaluation.Service
	sess     *session
	validate *validator.Validate
}

func registerEvaluationAPI(g *echo.Group, auth echo.MiddlewareFunc, sess *session, deps ServerDeps) {
	api := evaluationApi{svc: deps.EvaluationSvc, sess: sess, validate: deps.Validate}

	eg := g.Group("/evaluations", auth)
	eg.GET("/submissions/mine", api.mySubmissions)

	fg := eg.Group("/forms")
	fg.GET("", api.query)
	fg.POST("", api.create, staffMiddleware)
	fg.GET("/:id", api.retrieve)
	fg.PUT("/:id", api.update)
	fg.DELETE("/:id", api.destroy)
	fg.POST("/:id/submit", api.submit)
	fg.GET("/:id/submissions", api.submissions)
	fg.GET("/:id/stats", api.stats)
}

func (api *evaluationApi) create(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data evaluation.NewForm
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating evaluation form")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *evaluationApi) query(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var filter evaluation.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []evaluation.Form{})
	}

	forms, err := api.svc.Query(ctx.Request().Context(), viewer, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying evaluation forms")
	}
	if forms == nil {
		forms = []evaluation.Form{}
	}
	return ctx.JSON(http.StatusOK, forms)
}

func (api *evaluationApi) retrieve(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.Get(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evaluation form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *evaluationApi) update(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data evaluation.UpdateForm
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Update(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating evaluation form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *evaluationApi) destroy(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), viewer, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting evaluation form")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *evaluationApi) submit(ctx echo.Context) error {
	usr, viewer, err := api.sess.userAndViewer(ctx)
	if err != nil {
		return err
	}

	var data evaluation.NewSubmission
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), usr, viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting evaluation")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *evaluationApi) submissions(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.Submissions(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []evaluation.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *evaluationApi) mySubmissions(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.MySubmissions(ctx.Request().Context(), viewer)
	if err != nil {
		return errors.Wrap(err, "querying own submissions")
	}
	if subs == nil {
		subs = []evaluation.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *evaluationApi) stats(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing evaluation stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
