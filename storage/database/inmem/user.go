package inmemdb

import (
	"context"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email, itsID string, excludedUsers []user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := lo.SliceToMap(excludedUsers, func(u user.User) (string, struct{}) { return u.ID, struct{}{} })
	for _, usr := range repo.db.table {
		if _, ok := excluded[usr.ID]; ok {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
		if itsID != "" && usr.ITSID == itsID {
			return user.ErrITSIDExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = ensureID(usr.ID)
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := rows(repo.db.table)
	if filter != nil {
		users = lo.Filter(users, func(u user.User, _ int) bool {
			switch {
			case !matches(filter.Search, u.Name, u.Username, u.Email, u.ITSID):
				return false
			case len(filter.Roles) > 0 && !lo.Contains(filter.Roles, u.Role):
				return false
			case filter.IsActive != nil && u.IsActive != *filter.IsActive:
				return false
			case filter.MozeID != "" && u.MozeID != filter.MozeID:
				return false
			}
			return within(u.CreatedAt, filter.CreatedFrom, filter.CreatedTo)
		})
	}

	orderBy(users, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, func(u user.User, field string) interface{} {
		switch field {
		case "name":
			return u.Name
		case "username":
			return u.Username
		case "email":
			return u.Email
		case "its_id":
			return u.ITSID
		case "role":
			return u.Role
		case "is_active":
			return u.IsActive
		case "last_login":
			return u.LastLogin
		default:
			return u.CreatedAt
		}
	})
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.table {
		switch {
		case filter.ITSID != "":
			if usr.ITSID == filter.ITSID {
				return *usr, nil
			}
		case filter.Username != "":
			if usr.Username == filter.Username {
				return *usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return *usr, nil
			}
		case filter.UsernameOrEmail != "":
			v := filter.UsernameOrEmail
			if usr.Username == v || usr.Email == v || usr.ITSID == v {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cnt := 0
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}
