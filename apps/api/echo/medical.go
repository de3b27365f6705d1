package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/medical"
)

type medicalApi struct {
	svc      *medical.Service
	sess     *session
	validate *validator.Validate
}

func registerMedicalAPI(g *echo.Group, auth echo.MiddlewareFunc, sess *session, deps ServerDeps) {
	api := medicalApi{svc: deps.MedicalSvc, sess: sess, validate: deps.Validate}

	mg := g.Group("/medical", auth)

	hg := mg.Group("/hospitals")
	hg.GET("", api.queryHospitals)
	hg.POST("", api.createHospital, directoryMiddleware)
	hg.GET("/:id", api.retrieveHospital)
	hg.PUT("/:id", api.updateHospital, directoryMiddleware)
	hg.DELETE("/:id", api.destroyHospital, directoryMiddleware)

	dg := mg.Group("/doctors")
	dg.GET("", api.queryDoctors)
	dg.POST("", api.createDoctor, directoryMiddleware)
	dg.GET("/:id", api.retrieveDoctor)
	dg.PUT("/:id", api.updateDoctor)
	dg.DELETE("/:id", api.destroyDoctor, directoryMiddleware)

	pg := mg.Group("/patients")
	pg.GET("", api.queryPatients)
	pg.POST("", api.createPatient)
	pg.GET("/:id", api.retrievePatient)
	pg.PUT("/:id", api.updatePatient)
	pg.DELETE("/:id", api.destroyPatient)
}

// directoryMiddleware restricts hospital and doctor edits to directory managers.
func directoryMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if !medical.CanManageDirectory(usr) {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

// Hospitals

func (api *medicalApi) createHospital(ctx echo.Context) error {
	var data medical.NewHospital
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	h, err := api.svc.CreateHospital(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating hospital")
	}
	return ctx.JSON(http.StatusCreated, h)
}

func (api *medicalApi) queryHospitals(ctx echo.Context) error {
	var filter medical.HospitalFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []medical.Hospital{})
	}

	list, err := api.svc.QueryHospitals(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying hospitals")
	}
	if list == nil {
		list = []medical.Hospital{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *medicalApi) retrieveHospital(ctx echo.Context) error {
	h, err := api.svc.GetHospital(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting hospital")
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *medicalApi) updateHospital(ctx echo.Context) error {
	var data medical.NewHospital
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	h, err := api.svc.UpdateHospital(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating hospital")
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *medicalApi) destroyHospital(ctx echo.Context) error {
	if err := api.svc.DeleteHospital(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting hospital")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Doctors

func (api *medicalApi) createDoctor(ctx echo.Context) error {
	var data medical.NewDoctor
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.CreateDoctor(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating doctor")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *medicalApi) queryDoctors(ctx echo.Context) error {
	var filter medical.DoctorFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []medical.Doctor{})
	}

	list, err := api.svc.QueryDoctors(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying doctors")
	}
	if list == nil {
		list = []medical.Doctor{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *medicalApi) retrieveDoctor(ctx echo.Context) error {
	d, err := api.svc.GetDoctor(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting doctor")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *medicalApi) updateDoctor(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data medical.NewDoctor
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.UpdateDoctor(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating doctor")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *medicalApi) destroyDoctor(ctx echo.Context) error {
	if err := api.svc.DeleteDoctor(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting doctor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Patients

func (api *medicalApi) createPatient(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data medical.NewPatient
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePatient(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating patient")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *medicalApi) queryPatients(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var filter medical.PatientFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []medical.Patient{})
	}

	list, err := api.svc.QueryPatients(ctx.Request().Context(), usr, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying patients")
	}
	if list == nil {
		list = []medical.Patient{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *medicalApi) retrievePatient(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.GetPatient(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting patient")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *medicalApi) updatePatient(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}

	var data medical.NewPatient
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdatePatient(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating patient")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *medicalApi) destroyPatient(ctx echo.Context) error {
	usr, err := api.sess.user(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePatient(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting patient")
	}
	return ctx.NoContent(http.StatusNoContent)
}
