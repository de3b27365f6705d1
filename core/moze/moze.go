// Package moze manages the community centres (mozes) and who runs them.
package moze

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/policy"
	"github.com/umoorsehhat/sehhat/core/user"
)

const entityType = "moze"

var (
	ErrNotFound   = core.NewNotFoundError("moze")
	ErrCodeExists = errors.New("a moze with this code already exists")

	OrderingFields = []string{"name", "code", "location", "created_at"}
)

type (
	Moze struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		Code          string    `json:"code"`
		Location      string    `json:"location"`
		AamilID       string    `json:"aamil_id"`
		CoordinatorID string    `json:"coordinator_id"`
		IsActive      bool      `json:"is_active"`
		CreatedAt     time.Time `json:"created_at"` // UTC
		UpdatedAt     time.Time `json:"updated_at"` // UTC
	}

	NewMoze struct {
		Name          string `json:"name" validate:"required,notblank"`
		Code          string `json:"code" validate:"required,alphanum_,max=20"`
		Location      string `json:"location"`
		AamilID       string `json:"aamil_id"`
		CoordinatorID string `json:"coordinator_id"`
	}

	UpdateMoze struct {
		Name          string  `json:"name"`
		Location      *string `json:"location"`
		AamilID       *string `json:"aamil_id"`
		CoordinatorID *string `json:"coordinator_id"`
		IsActive      *bool   `json:"is_active"`
	}

	QueryFilter struct {
		Search    string `query:"search"`
		IsActive  *bool  `query:"is_active"`
		ManagerID string `query:"manager_id"` // aamil or coordinator
	}

	Repository interface {
		CreateMoze(ctx context.Context, mz Moze) (Moze, error)
		// QueryMozes matches QueryFilter.Search case-insensitively against the name, code and location.
		QueryMozes(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Moze, error)
		GetMoze(ctx context.Context, id string) (Moze, error)
		UpdateMoze(ctx context.Context, mz Moze) (Moze, error)
		DeleteMoze(ctx context.Context, id string) error
	}

	Service struct {
		repo    Repository
		users   *user.Service
		auditor audit.Recorder
	}
)

func (nm *NewMoze) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Code = core.CleanString(nm.Code)
	nm.Location = core.CleanString(nm.Location)
	return validate.Struct(nm)
}

func NewService(repo Repository, users *user.Service, auditor audit.Recorder) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(auditor, "auditor"),
	).CheckAndPanic()

	return &Service{repo: repo, users: users, auditor: auditor}
}

// checkManagers makes sure the aamil and coordinator, when set, are users holding those roles.
func (svc *Service) checkManagers(ctx context.Context, aamilID, coordinatorID string) error {
	check := func(field, id, role string) error {
		if id == "" {
			return nil
		}
		usr, err := svc.users.GetByID(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(err, core.FieldError{Field: field, Error: "user not found"})
			}
			return err
		}
		if usr.Role != role {
			return core.NewValidationError(nil, core.FieldError{Field: field, Error: "user must have the " + role + " role"})
		}
		return nil
	}
	if err := check("aamil_id", aamilID, user.RoleAamil); err != nil {
		return err
	}
	return check("coordinator_id", coordinatorID, user.RoleMozeCoordinator)
}

func (svc *Service) Create(ctx context.Context, nm NewMoze) (Moze, error) {
	if err := svc.checkManagers(ctx, nm.AamilID, nm.CoordinatorID); err != nil {
		return Moze{}, err
	}
	now := core.NowFunc()
	mz, err := svc.repo.CreateMoze(ctx, Moze{
		ID:            core.NewID(),
		Name:          nm.Name,
		Code:          nm.Code,
		Location:      nm.Location,
		AamilID:       nm.AamilID,
		CoordinatorID: nm.CoordinatorID,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Moze{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Moze{}, errors.Wrap(err, "creating moze")
	}
	return mz, svc.record(ctx, audit.ActionCreate, mz.ID)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Moze, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryMozes(ctx, filter, core.AllowedOrderings(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, id string) (Moze, error) {
	return svc.repo.GetMoze(ctx, id)
}

// Update applies um to the moze; only admins and the moze's aamil may update it.
func (svc *Service) Update(ctx context.Context, actor user.User, mz Moze, um UpdateMoze) (Moze, error) {
	if !actor.IsAdmin() && actor.ID != mz.AamilID {
		return Moze{}, core.ErrPermissionDenied
	}
	if !actor.IsAdmin() && (um.AamilID != nil || um.IsActive != nil) {
		return Moze{}, core.ErrPermissionDenied
	}

	if name := core.CleanString(um.Name); name != "" {
		mz.Name = name
	}
	if um.Location != nil {
		mz.Location = core.CleanString(*um.Location)
	}
	if um.AamilID != nil {
		mz.AamilID = *um.AamilID
	}
	if um.CoordinatorID != nil {
		mz.CoordinatorID = *um.CoordinatorID
	}
	if um.IsActive != nil {
		mz.IsActive = *um.IsActive
	}
	if err := svc.checkManagers(ctx, mz.AamilID, mz.CoordinatorID); err != nil {
		return Moze{}, err
	}
	mz.UpdatedAt = core.NowFunc()

	mz, err := svc.repo.UpdateMoze(ctx, mz)
	if err != nil {
		return Moze{}, errors.Wrap(err, "updating moze")
	}
	return mz, svc.record(ctx, audit.ActionUpdate, mz.ID)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteMoze(ctx, id); err != nil {
		return err
	}
	return svc.record(ctx, audit.ActionDelete, id)
}

// ManagedBy returns the active mozes userID runs as aamil or coordinator.
func (svc *Service) ManagedBy(ctx context.Context, userID string) ([]Moze, error) {
	if userID == "" {
		return nil, nil
	}
	return svc.repo.QueryMozes(ctx, QueryFilter{ManagerID: userID, IsActive: core.BoolPtr(true)}, nil)
}

// ViewerFor resolves the policy.Viewer of usr, including the mozes they manage.
func (svc *Service) ViewerFor(ctx context.Context, usr user.User) (policy.Viewer, error) {
	viewer := policy.Viewer{UserID: usr.ID, Role: usr.Role, IsAdmin: usr.IsAdmin()}
	if viewer.IsAdmin {
		return viewer, nil
	}
	if usr.Role == user.RoleAamil || usr.Role == user.RoleMozeCoordinator {
		mozes, err := svc.ManagedBy(ctx, usr.ID)
		if err != nil {
			return policy.Viewer{}, errors.Wrap(err, "querying managed mozes")
		}
		for _, mz := range mozes {
			viewer.MozeIDs = append(viewer.MozeIDs, mz.ID)
		}
	}
	return viewer, nil
}

func (svc *Service) record(ctx context.Context, action, id string) error {
	if err := svc.auditor.Record(ctx, action, entityType, id, nil); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}
