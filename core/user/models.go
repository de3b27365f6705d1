package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/umoorsehhat/sehhat/core"
)

// Roles
const (
	RoleBadriMahalAdmin = "badri_mahal_admin"
	RoleAamil           = "aamil"
	RoleMozeCoordinator = "moze_coordinator"
	RoleDoctor          = "doctor"
	RoleStudent         = "student"
	RolePatient         = "patient"
)

var (
	AllRoles   = []string{RoleBadriMahalAdmin, RoleAamil, RoleMozeCoordinator, RoleDoctor, RoleStudent, RolePatient}
	StaffRoles = []string{RoleBadriMahalAdmin, RoleAamil, RoleMozeCoordinator}

	rolePriorities = map[string]int{
		RoleBadriMahalAdmin: 50,
		RoleAamil:           40,
		RoleMozeCoordinator: 30,
		RoleDoctor:          20,
		RoleStudent:         10,
		RolePatient:         5,
	}

	Roles = []Role{
		{Name: "Patient", Value: RolePatient},
		{Name: "Student", Value: RoleStudent},
		{Name: "Doctor", Value: RoleDoctor},
		{Name: "Moze Coordinator", Value: RoleMozeCoordinator},
		{Name: "Aamil", Value: RoleAamil},
		{Name: "Badri Mahal Admin", Value: RoleBadriMahalAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

// IsValidRole reports whether role is one of AllRoles.
func IsValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Profile holds the attributes synced from the ITS directory.
type Profile struct {
	Prefix        string `json:"prefix"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	ArabicName    string `json:"arabic_name"`
	Gender        string `json:"gender"`
	Age           int    `json:"age"`
	Mobile        string `json:"mobile"`
	Address       string `json:"address"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Jamaat        string `json:"jamaat"`
	Jamiat        string `json:"jamiat"`
	Occupation    string `json:"occupation"`
	Qualification string `json:"qualification"`
	Category      string `json:"category"`
}

type User struct {
	ID           string    `json:"id"`
	ITSID        string    `json:"its_id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsSuperuser  bool      `json:"is_superuser"`
	IsActive     bool      `json:"is_active"`
	MozeID       string    `json:"moze_id"`
	Profile      *Profile  `json:"profile"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`    // UTC
	UpdatedAt    time.Time `json:"updated_at"`    // UTC
	LastLogin    time.Time `json:"last_login"`    // UTC
	ITSSyncedAt  time.Time `json:"its_synced_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// IsAdmin is the only authority on administrative rights:
// superusers and Badri Mahal admins are admins, whatever else they are.
func (u *User) IsAdmin() bool {
	return u.IsSuperuser || u.Role == RoleBadriMahalAdmin
}

// IsStaff reports whether the user manages Mozes (or is an admin).
func (u *User) IsStaff() bool {
	return u.IsAdmin() || u.Role == RoleAamil || u.Role == RoleMozeCoordinator
}

func (u *User) IsDoctor() bool  { return u.Role == RoleDoctor }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsPatient() bool { return u.Role == RolePatient }

// Priority is the highest role priority of the user; superusers outrank everyone.
func (u *User) Priority() int {
	if u.IsSuperuser {
		return RolePriority(RoleBadriMahalAdmin) + 1
	}
	return RolePriority(u.Role)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	ITSID           string `json:"its_id" validate:"omitempty,itsid"`
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            string `json:"role" validate:"omitempty,role"`
	MozeID          string `json:"moze_id"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.ITSID = core.CleanString(nu.ITSID)
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	if nu.Role == "" {
		nu.Role = RolePatient
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email, nu.ITSID)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string  `json:"name"`
	Username        string  `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string  `json:"email" validate:"omitempty,email"`
	IsActive        *bool   `json:"is_active"`
	Role            string  `json:"role" validate:"omitempty,role"`
	MozeID          *string `json:"moze_id"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Username, uu.Email, "", origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// Registration is a self sign-up backed by an ITS profile.
type Registration struct {
	ITSID           string `json:"its_id" validate:"required,itsid"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (r *Registration) Validate(validate *validator.Validate, svc *Service) error {
	r.ITSID = core.CleanString(r.ITSID)
	r.Email = core.CleanString(r.Email, true /* lower */)
	if err := validate.Struct(r); err != nil {
		return err
	}
	return svc.CheckUniqueness(r.ITSID, r.Email, r.ITSID)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	MozeID      string    `query:"moze_id"`
	CreatedFrom time.Time `query:"-"` // created_from
	CreatedTo   time.Time `query:"-"` // created_to
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.MozeID == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.MozeID = core.CleanString(qf.MozeID)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID              string
	ITSID           string
	Username        string
	Email           string
	UsernameOrEmail string // also matches the ITS ID
}

// OrderingFields lists the fields users can be ordered by.
var OrderingFields = []string{"name", "username", "email", "its_id", "role", "is_active", "created_at", "last_login"}
