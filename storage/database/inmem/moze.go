package inmemdb

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/moze"
)

type mozeRepository struct {
	db *mozeTable
}

var _ moze.Repository = (*mozeRepository)(nil) // interface compliance check

func NewMozeRepository(db *DB) *mozeRepository {
	return &mozeRepository{db: db.moze}
}

func (repo *mozeRepository) CreateMoze(ctx context.Context, mz moze.Moze) (moze.Moze, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, m := range repo.db.table {
		if strings.EqualFold(m.Code, mz.Code) {
			return moze.Moze{}, moze.ErrCodeExists
		}
	}
	mz.ID = ensureID(mz.ID)
	repo.db.table[mz.ID] = &mz
	return mz, nil
}

func (repo *mozeRepository) QueryMozes(ctx context.Context, filter moze.QueryFilter, ordering []core.DBOrdering) ([]moze.Moze, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	mozes := lo.Filter(rows(repo.db.table), func(m moze.Moze, _ int) bool {
		switch {
		case !matches(filter.Search, m.Name, m.Code, m.Location):
			return false
		case filter.IsActive != nil && m.IsActive != *filter.IsActive:
			return false
		case filter.ManagerID != "" && m.AamilID != filter.ManagerID && m.CoordinatorID != filter.ManagerID:
			return false
		}
		return true
	})
	orderBy(mozes, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, func(m moze.Moze, field string) interface{} {
		switch field {
		case "name":
			return m.Name
		case "code":
			return m.Code
		case "location":
			return m.Location
		default:
			return m.CreatedAt
		}
	})
	return mozes, nil
}

func (repo *mozeRepository) GetMoze(ctx context.Context, id string) (moze.Moze, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return moze.Moze{}, moze.ErrNotFound
}

func (repo *mozeRepository) UpdateMoze(ctx context.Context, mz moze.Moze) (moze.Moze, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[mz.ID]; !ok {
		return moze.Moze{}, moze.ErrNotFound
	}
	repo.db.table[mz.ID] = &mz
	return mz, nil
}

func (repo *mozeRepository) DeleteMoze(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return moze.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
