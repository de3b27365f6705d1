package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/its"
)

const entityType = "user"

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrITSIDExists    = errors.New("a user with this ITS ID already exists")
	ErrInvalidValue   = errors.New("invalid value")
)

type (
	Repository interface {
		// CheckUniqueness returns one of ErrUsernameExists, ErrEmailExists or ErrITSIDExists
		// when a user other than excludedUsers already holds the value.
		CheckUniqueness(ctx context.Context, username, email, itsID string, excludedUsers []User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username, User.Email or User.ITSID.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string) (int, error)
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		provider its.Provider
		auditor  audit.Recorder
		tokens   tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, provider its.Provider, auditor audit.Recorder, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(provider, "provider"),
		vala.IsNotNil(auditor, "auditor"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		provider: provider,
		auditor:  auditor,
		tokens: tokenGenerator{
			secret:  []byte(conf.SecretKey),
			timeout: conf.PasswordResetTimeoutDelta,
		},
	}
}

// CheckUniqueness maps repository uniqueness errors to field validation errors.
func (svc *Service) CheckUniqueness(uname, email, itsID string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(context.Background(), uname, email, itsID, exclUsers); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrITSIDExists:
			field = "its_id"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc()
	usr := User{
		ITSID:     nu.ITSID,
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		MozeID:    nu.MozeID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, svc.record(ctx, audit.ActionCreate, usr, nil)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.AllowedOrderings(ordering, OrderingFields...))
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByITSID(ctx context.Context, itsID string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ITSID: core.CleanString(itsID)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// GetByUsernameOrEmail also accepts an ITS ID.
func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.UpdatedAt = core.NowFunc()
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.MozeID != nil {
		usr.MozeID = *uu.MozeID
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, svc.record(ctx, audit.ActionUpdate, usr, nil)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, svc.record(ctx, audit.ActionLogin, usr, nil)
}

// Logout only leaves a trace: tokens are stateless and expire on their own.
func (svc *Service) Logout(ctx context.Context, usr User) error {
	return svc.record(ctx, audit.ActionLogout, usr, nil)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := svc.repo.DeleteUsersByID(ctx, ids); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	for _, id := range ids {
		if err := svc.auditor.Record(ctx, audit.ActionDelete, entityType, id, nil); err != nil {
			return errors.Wrap(err, "recording audit entry")
		}
	}
	return nil
}

// SyncFromITS creates or updates the User holding itsID from the identity provider.
func (svc *Service) SyncFromITS(ctx context.Context, itsID string) (User, error) {
	profile, err := svc.provider.Lookup(ctx, itsID)
	if err != nil {
		return User{}, err
	}

	usr, err := svc.GetByITSID(ctx, itsID)
	created := false
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, errors.Wrap(err, "finding user by ITS ID")
		}
		created = true
		usr = User{
			ITSID:     profile.ITSID,
			Username:  profile.ITSID,
			Role:      RolePatient,
			IsActive:  true,
			CreatedAt: core.NowFunc(),
		}
	}

	applyProfile(&usr, profile)
	var excluded []User
	if !created {
		excluded = append(excluded, usr)
	}
	if err = svc.repo.CheckUniqueness(ctx, usr.Username, usr.Email, usr.ITSID, excluded); err != nil {
		switch err {
		case ErrUsernameExists, ErrEmailExists, ErrITSIDExists:
			return User{}, core.NewConflictError("cannot sync ITS ID " + itsID + ": " + err.Error())
		}
		return User{}, errors.Wrap(err, "checking uniqueness")
	}
	if created {
		if usr, err = svc.repo.CreateUser(ctx, usr); err != nil {
			return User{}, errors.Wrap(err, "creating user")
		}
	} else if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, svc.record(ctx, audit.ActionSync, usr, map[string]interface{}{"created": created})
}

// Register signs up a patient from its ITS profile.
func (svc *Service) Register(ctx context.Context, reg Registration) (User, error) {
	profile, err := svc.provider.Lookup(ctx, reg.ITSID)
	if err != nil {
		if errors.Cause(err) == its.ErrProfileNotFound {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "its_id", Error: err.Error()})
		}
		return User{}, errors.Wrap(err, "looking up ITS profile")
	}

	now := core.NowFunc()
	usr := User{
		ITSID:     profile.ITSID,
		Username:  profile.ITSID,
		Role:      RolePatient,
		IsActive:  true,
		CreatedAt: now,
	}
	applyProfile(&usr, profile)
	if reg.Email != "" {
		usr.Email = reg.Email
	}
	if err = usr.SetPassword(reg.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	if usr, err = svc.repo.CreateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, svc.record(ctx, audit.ActionCreate, usr, map[string]interface{}{"registration": true})
}

func applyProfile(usr *User, p its.Profile) {
	now := core.NowFunc()
	usr.Name = p.FullName
	if usr.Email == "" {
		usr.Email = p.Email
	}
	usr.Profile = &Profile{
		Prefix:        p.Prefix,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		ArabicName:    p.ArabicName,
		Gender:        p.Gender,
		Age:           p.Age,
		Mobile:        p.Mobile,
		Address:       p.Address,
		City:          p.City,
		Country:       p.Country,
		Jamaat:        p.Jamaat,
		Jamiat:        p.Jamiat,
		Occupation:    p.Occupation,
		Qualification: p.Qualification,
		Category:      p.Category,
	}
	usr.ITSSyncedAt = now
	usr.UpdatedAt = now
}

// RequestPasswordReset mails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *Service) sendPasswordResetMail(usr User) error {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		Categories:   []string{"password_reset"},
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// MakeToken generates a password reset token for usr.
func (svc *Service) MakeToken(usr User) (string, error) {
	return svc.tokens.makeToken(usr)
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidUID := core.NewValidationError(ErrInvalidValue, core.FieldError{Field: "uid", Error: ErrInvalidValue.Error()})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidUID
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidUID
		}
		return errors.Wrap(err, "finding user by ID")
	}

	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return core.NewValidationError(ErrInvalidValue, core.FieldError{Field: "token", Error: ErrInvalidValue.Error()})
		}
		return errors.Wrap(err, "verifying token")
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return svc.record(ctx, audit.ActionUpdate, usr, map[string]interface{}{"password_reset": true})
}

func (svc *Service) record(ctx context.Context, action string, usr User, details map[string]interface{}) error {
	if err := svc.auditor.Record(ctx, action, entityType, usr.ID, details); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}

// SyncTimeout bounds a single ITS synchronisation.
const SyncTimeout = 10 * time.Second
