package boiledrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/user"
)

const usersTable = "users"

type userRow struct {
	ID           string      `boil:"id"`
	ITSID        null.String `boil:"its_id"`
	Name         string      `boil:"name"`
	Username     null.String `boil:"username"`
	Email        null.String `boil:"email"`
	Role         string      `boil:"role"`
	IsSuperuser  bool        `boil:"is_superuser"`
	IsActive     bool        `boil:"is_active"`
	MozeID       null.String `boil:"moze_id"`
	Profile      null.JSON   `boil:"profile"`
	PasswordHash []byte      `boil:"password_hash"`
	CreatedAt    time.Time   `boil:"created_at"`
	UpdatedAt    time.Time   `boil:"updated_at"`
	LastLogin    null.Time   `boil:"last_login"`
	ITSSyncedAt  null.Time   `boil:"its_synced_at"`
}

func (r *userRow) columns() []string {
	return []string{"id", "its_id", "name", "username", "email", "role", "is_superuser", "is_active", "moze_id",
		"profile", "password_hash", "created_at", "updated_at", "last_login", "its_synced_at"}
}

func (r *userRow) values() []interface{} {
	return []interface{}{r.ID, r.ITSID, r.Name, r.Username, r.Email, r.Role, r.IsSuperuser, r.IsActive, r.MozeID,
		r.Profile, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin, r.ITSSyncedAt}
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) boil(usr user.User) (*userRow, error) {
	u := &userRow{
		ID:           usr.ID,
		ITSID:        nullString(usr.ITSID),
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		Role:         usr.Role,
		IsSuperuser:  usr.IsSuperuser,
		IsActive:     usr.IsActive,
		MozeID:       nullString(usr.MozeID),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
		ITSSyncedAt:  nullTime(usr.ITSSyncedAt),
	}
	if u.PasswordHash == nil {
		u.PasswordHash = []byte{}
	}
	if usr.Profile != nil {
		profile, err := json.Marshal(usr.Profile)
		if err != nil {
			return nil, errors.Wrap(err, "encoding user profile")
		}
		u.Profile = null.JSONFrom(profile)
	}
	return u, nil
}

func (repo userRepository) unboil(u *userRow) user.User {
	if u == nil {
		return user.User{}
	}
	usr := user.User{
		ID:           u.ID,
		ITSID:        u.ITSID.String,
		Name:         u.Name,
		Username:     u.Username.String,
		Email:        u.Email.String,
		Role:         u.Role,
		IsSuperuser:  u.IsSuperuser,
		IsActive:     u.IsActive,
		MozeID:       u.MozeID.String,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLogin:    u.LastLogin.Time,
		ITSSyncedAt:  u.ITSSyncedAt.Time,
	}
	if u.Profile.Valid {
		var profile user.Profile
		if err := u.Profile.Unmarshal(&profile); err == nil {
			usr.Profile = &profile
		}
	}
	return usr
}

func (repo userRepository) unboilSlice(slice []*userRow) []user.User {
	users := make([]user.User, 0, len(slice))
	for _, u := range slice {
		users = append(users, repo.unboil(u))
	}
	return users
}

// trapUniqueErr maps unique constraint violations to the user errors.
func (repo userRepository) trapUniqueErr(err error, msg string) error {
	if constraint, ok := violatedConstraint(err); ok {
		switch constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		case "users_its_id_key":
			return user.ErrITSIDExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email, itsID string, excludedUsers []user.User) error {
	checks := []struct {
		column, value string
		err           error
	}{
		{"username", username, user.ErrUsernameExists},
		{"email", email, user.ErrEmailExists},
		{"its_id", itsID, user.ErrITSIDExists},
	}

	var excluded []qm.QueryMod
	if len(excludedUsers) > 0 {
		ids := make([]interface{}, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		excluded = append(excluded, qm.WhereNotIn("id NOT IN ?", ids...))
	}

	for _, check := range checks {
		if check.value == "" {
			continue
		}
		mods := append([]qm.QueryMod{qm.From(usersTable), qm.Where(check.column+" = ?", check.value)}, excluded...)
		found, err := exists(ctx, repo.db, mods...)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if found {
			return check.err
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	u, err := repo.boil(usr)
	if err != nil {
		return user.User{}, err
	}
	if err = insert(ctx, repo.db, usersTable, u); err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	mods := []qm.QueryMod{qm.From(usersTable)}
	if filter != nil {
		mods = append(mods, search(filter.Search, "name", "username", "email", "its_id")...)
		mods = append(mods, oneOf("role", filter.Roles)...)
		mods = append(mods, eqBool("is_active", filter.IsActive)...)
		mods = append(mods, eqID("moze_id", filter.MozeID)...)
		mods = append(mods, between("created_at", filter.CreatedFrom, filter.CreatedTo)...)
	}
	mods = append(mods, orderBy(ordering, "", nil, "name ASC"))

	var rows []*userRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var mod qm.QueryMod
	switch {
	case filter.ID != "":
		if !core.IsValidID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		mod = qm.Where("id = ?", filter.ID)
	case filter.ITSID != "":
		mod = qm.Where("its_id = ?", filter.ITSID)
	case filter.Username != "":
		mod = qm.Where("username = ?", filter.Username)
	case filter.Email != "":
		mod = qm.Where("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		v := filter.UsernameOrEmail
		mod = qm.Where("(username = ? OR email = ? OR its_id = ?)", v, v, v)
	default:
		return user.User{}, user.ErrNotFound
	}

	u := new(userRow)
	if err := newQuery(qm.From(usersTable), mod, qm.Limit(1)).Bind(ctx, repo.db, u); err != nil {
		return user.User{}, trap(err, user.ErrNotFound, "selecting user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	u, err := repo.boil(usr)
	if err != nil {
		return user.User{}, err
	}
	if err = update(ctx, repo.db, usersTable, u); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return user.User{}, repo.trapUniqueErr(err, "updating user")
		}
		return user.User{}, trap(err, user.ErrNotFound, "updating user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	valid := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if core.IsValidID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	q := newQuery(qm.From(usersTable), qm.WhereIn("id IN ?", valid...))
	queries.SetDelete(q)
	res, err := q.ExecContext(ctx, repo.db)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(n), nil
}
