package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/moze"
	"github.com/umoorsehhat/sehhat/core/policy"
	"github.com/umoorsehhat/sehhat/core/user"
)

const contextViewerKey = "viewer"

// actorMiddleware attributes the audit entries of the request to the client IP.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		setActor(ctx, audit.Actor{IPAddress: ctx.RealIP()})
		return next(ctx)
	}
}

func setActor(ctx echo.Context, actor audit.Actor) {
	req := ctx.Request()
	ctx.SetRequest(req.WithContext(audit.WithActor(req.Context(), actor)))
}

// userMiddleware loads the user of the JWT; it must run after the JWT middleware.
func userMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if core.IsNotFound(err) {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}

			ctx.Set(contextUserKey, usr)
			setActor(ctx, audit.Actor{UserID: usr.ID, IPAddress: ctx.RealIP()})
			return next(ctx)
		}
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if usr.IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// staffMiddleware lets admins, aamils and moze coordinators through.
func staffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if usr.IsStaff() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// session resolves who is behind a request.
type session struct {
	users *user.Service
	mozes *moze.Service
}

func (s *session) user(ctx echo.Context) (user.User, error) {
	return getContextUser(ctx)
}

// viewer returns the policy.Viewer of the context user, resolved once per request.
func (s *session) viewer(ctx echo.Context) (policy.Viewer, error) {
	if viewer, ok := ctx.Get(contextViewerKey).(policy.Viewer); ok {
		return viewer, nil
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return policy.Viewer{}, err
	}
	viewer, err := s.mozes.ViewerFor(ctx.Request().Context(), usr)
	if err != nil {
		return policy.Viewer{}, errors.Wrap(err, "resolving viewer")
	}
	ctx.Set(contextViewerKey, viewer)
	return viewer, nil
}

// userAndViewer is a shortcut for handlers that need both.
func (s *session) userAndViewer(ctx echo.Context) (user.User, policy.Viewer, error) {
	usr, err := s.user(ctx)
	if err != nil {
		return user.User{}, policy.Viewer{}, err
	}
	viewer, err := s.viewer(ctx)
	return usr, viewer, err
}
