package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/student"
)

type studentApi struct {
	svc      *student.Service
	sess     *session
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, auth echo.MiddlewareFunc, sess *session, deps ServerDeps) {
	api := studentApi{svc: deps.StudentSvc, sess: sess, validate: deps.Validate}

	sg := g.Group("/students", auth)

	cg := sg.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse)
	cg.DELETE("/:id", api.destroyCourse)

	eg := sg.Group("/enrollments")
	eg.GET("", api.queryEnrollments)
	eg.POST("", api.enroll)
	eg.PUT("/:id", api.updateEnrollment)

	ag := sg.Group("/assignments")
	ag.GET("", api.queryAssignments)
	ag.POST("", api.createAssignment)
	ag.DELETE("/:id", api.destroyAssignment)

	gg := sg.Group("/grades")
	gg.GET("", api.queryGrades)
	gg.POST("", api.grade)
}

// Courses

func (api *studentApi) createCourse(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data student.NewCourse
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *studentApi) queryCourses(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var filter student.CourseFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Course{})
	}

	list, err := api.svc.QueryCourses(ctx.Request().Context(), usr, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if list == nil {
		list = []student.Course{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *studentApi) retrieveCourse(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetCourse(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *studentApi) updateCourse(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data student.NewCourse
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *studentApi) destroyCourse(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *studentApi) enroll(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data student.NewEnrollment
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *studentApi) queryEnrollments(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var filter student.EnrollmentFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Enrollment{})
	}

	list, err := api.svc.Enrollments(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if list == nil {
		list = []student.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *studentApi) updateEnrollment(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data student.EnrollmentUpdate
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.UpdateEnrollment(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

// Assignments

func (api *studentApi) createAssignment(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data student.NewAssignment
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *studentApi) queryAssignments(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var filter student.AssignmentFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Assignment{})
	}

	list, err := api.svc.Assignments(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying course assignments")
	}
	if list == nil {
		list = []student.Assignment{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *studentApi) destroyAssignment(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssignment(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Grades

func (api *studentApi) grade(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data student.NewGrade
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	g, err := api.svc.Grade(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "grading")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *studentApi) queryGrades(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var filter student.GradeFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Grade{})
	}

	list, err := api.svc.Grades(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if list == nil {
		list = []student.Grade{}
	}
	return ctx.JSON(http.StatusOK, list)
}
