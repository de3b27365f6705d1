package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/petition"
)

type petitionApi struct {
	svc      *petition.Service
	sess     *session
	validate *validator.Validate
}

func registerPetitionAPI(g *echo.Group, auth echo.MiddlewareFunc, sess *session, deps ServerDeps) {
	api := petitionApi{svc: deps.PetitionSvc, sess: sess, validate: deps.Validate}

	pg := g.Group("/petitions", auth)

	// categories
	pg.GET("/categories", api.queryCategories)
	pg.POST("/categories", api.createCategory, adminMiddleware)
	pg.GET("/categories/:id", api.retrieveCategory)
	pg.PUT("/categories/:id", api.updateCategory, adminMiddleware)
	pg.DELETE("/categories/:id", api.destroyCategory, adminMiddleware)

	pg.GET("/stats", api.stats)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
	pg.POST("/:id/status", api.updateStatus)
	pg.GET("/:id/comments", api.queryComments)
	pg.POST("/:id/comments", api.createComment)
	pg.POST("/:id/assign", api.assign)
	pg.GET("/:id/assignments", api.queryAssignments)
	pg.GET("/:id/attachments", api.queryAttachments)
	pg.POST("/:id/attachments", api.createAttachment)
	pg.GET("/:id/attachments/:attachment_id", api.downloadAttachment)
	pg.DELETE("/:id/attachments/:attachment_id", api.destroyAttachment)
}

// Categories

func (api *petitionApi) queryCategories(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	activeOnly := !usr.IsAdmin() || ctx.QueryParam("is_active") == "true"

	cats, err := api.svc.Categories(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []petition.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *petitionApi) createCategory(ctx echo.Context) error {
	var data petition.NewCategory
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *petitionApi) retrieveCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *petitionApi) updateCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting category")
	}

	var data petition.NewCategory
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if cat, err = api.svc.UpdateCategory(ctx.Request().Context(), cat, data); err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *petitionApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Petitions

func (api *petitionApi) create(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data petition.NewPetition
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating petition")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *petitionApi) query(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var filter petition.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []petition.Petition{})
	}
	if err = bindCreatedRange(ctx, &filter.CreatedFrom, &filter.CreatedTo); err != nil {
		return err
	}

	list, err := api.svc.Query(ctx.Request().Context(), viewer, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying petitions")
	}
	if list == nil {
		list = []petition.Petition{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *petitionApi) retrieve(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting petition")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *petitionApi) update(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data petition.UpdatePetition
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating petition")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *petitionApi) updateStatus(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data petition.StatusUpdate
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdateStatus(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating petition status")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *petitionApi) destroy(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), viewer, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting petition")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *petitionApi) stats(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), viewer)
	if err != nil {
		return errors.Wrap(err, "computing petition stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// Comments

func (api *petitionApi) queryComments(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	comments, err := api.svc.Comments(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []petition.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *petitionApi) createComment(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data petition.NewComment
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.AddComment(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, c)
}

// Assignments

func (api *petitionApi) assign(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	var data petition.NewAssignment
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Assign(ctx.Request().Context(), viewer, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning petition")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *petitionApi) queryAssignments(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	list, err := api.svc.Assignments(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if list == nil {
		list = []petition.Assignment{}
	}
	return ctx.JSON(http.StatusOK, list)
}

// Attachments

func (api *petitionApi) queryAttachments(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	list, err := api.svc.Attachments(ctx.Request().Context(), viewer, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying attachments")
	}
	if list == nil {
		list = []petition.Attachment{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *petitionApi) createAttachment(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	at, err := api.svc.AddAttachment(ctx.Request().Context(), viewer, ctx.Param("id"), petition.NewAttachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     f,
	})
	if err != nil {
		return errors.Wrap(err, "adding attachment")
	}
	return ctx.JSON(http.StatusCreated, at)
}

func (api *petitionApi) downloadAttachment(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	at, rc, err := api.svc.OpenAttachment(ctx.Request().Context(), viewer, ctx.Param("id"), ctx.Param("attachment_id"))
	if err != nil {
		return errors.Wrap(err, "opening attachment")
	}
	defer rc.Close()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", at.Filename))
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(at.Size, 10))
	return ctx.Stream(http.StatusOK, at.ContentType, rc)
}

func (api *petitionApi) destroyAttachment(ctx echo.Context) error {
	viewer, err := api.sess.viewer(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAttachment(ctx.Request().Context(), viewer, ctx.Param("id"), ctx.Param("attachment_id")); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
