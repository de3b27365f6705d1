package boiledrepos

import (
	"context"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/moze"
)

const mozesTable = "mozes"

type mozeRow struct {
	ID            string      `boil:"id"`
	Name          string      `boil:"name"`
	Code          string      `boil:"code"`
	Location      string      `boil:"location"`
	AamilID       null.String `boil:"aamil_id"`
	CoordinatorID null.String `boil:"coordinator_id"`
	IsActive      bool        `boil:"is_active"`
	CreatedAt     time.Time   `boil:"created_at"`
	UpdatedAt     time.Time   `boil:"updated_at"`
}

func (r *mozeRow) columns() []string {
	return []string{"id", "name", "code", "location", "aamil_id", "coordinator_id", "is_active", "created_at", "updated_at"}
}

func (r *mozeRow) values() []interface{} {
	return []interface{}{r.ID, r.Name, r.Code, r.Location, r.AamilID, r.CoordinatorID, r.IsActive, r.CreatedAt, r.UpdatedAt}
}

type mozeRepository struct {
	db core.DB
}

var _ moze.Repository = (*mozeRepository)(nil) // interface compliance check

func NewMozeRepository(db core.DB) *mozeRepository {
	return &mozeRepository{db: db}
}

func (repo mozeRepository) boil(mz moze.Moze) *mozeRow {
	return &mozeRow{
		ID:            mz.ID,
		Name:          mz.Name,
		Code:          mz.Code,
		Location:      mz.Location,
		AamilID:       nullString(mz.AamilID),
		CoordinatorID: nullString(mz.CoordinatorID),
		IsActive:      mz.IsActive,
		CreatedAt:     mz.CreatedAt.UTC(),
		UpdatedAt:     mz.UpdatedAt.UTC(),
	}
}

func (repo mozeRepository) unboil(m *mozeRow) moze.Moze {
	return moze.Moze{
		ID:            m.ID,
		Name:          m.Name,
		Code:          m.Code,
		Location:      m.Location,
		AamilID:       m.AamilID.String,
		CoordinatorID: m.CoordinatorID.String,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (repo mozeRepository) CreateMoze(ctx context.Context, mz moze.Moze) (moze.Moze, error) {
	taken, err := exists(ctx, repo.db, qm.From(mozesTable), qm.Where("lower(code) = lower(?)", mz.Code))
	if err != nil {
		return moze.Moze{}, errors.Wrap(err, "checking moze code")
	}
	if taken {
		return moze.Moze{}, moze.ErrCodeExists
	}

	if mz.ID == "" {
		mz.ID = core.NewID()
	}
	m := repo.boil(mz)
	if err = insert(ctx, repo.db, mozesTable, m); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return moze.Moze{}, moze.ErrCodeExists
		}
		return moze.Moze{}, errors.Wrap(err, "inserting moze")
	}
	return repo.unboil(m), nil
}

func (repo mozeRepository) QueryMozes(ctx context.Context, filter moze.QueryFilter, ordering []core.DBOrdering) ([]moze.Moze, error) {
	mods := []qm.QueryMod{qm.From(mozesTable)}
	mods = append(mods, search(filter.Search, "name", "code", "location")...)
	mods = append(mods, eqBool("is_active", filter.IsActive)...)
	if filter.ManagerID != "" {
		mods = append(mods, qm.Where("(aamil_id::text = ? OR coordinator_id::text = ?)", filter.ManagerID, filter.ManagerID))
	}
	mods = append(mods, orderBy(ordering, "", nil, "name ASC"))

	var rows []*mozeRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting mozes")
	}
	mozes := make([]moze.Moze, 0, len(rows))
	for _, m := range rows {
		mozes = append(mozes, repo.unboil(m))
	}
	return mozes, nil
}

func (repo mozeRepository) GetMoze(ctx context.Context, id string) (moze.Moze, error) {
	m := new(mozeRow)
	if err := findByID(ctx, repo.db, mozesTable, id, m); err != nil {
		return moze.Moze{}, trap(err, moze.ErrNotFound, "selecting moze")
	}
	return repo.unboil(m), nil
}

func (repo mozeRepository) UpdateMoze(ctx context.Context, mz moze.Moze) (moze.Moze, error) {
	m := repo.boil(mz)
	if err := update(ctx, repo.db, mozesTable, m); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return moze.Moze{}, moze.ErrCodeExists
		}
		return moze.Moze{}, trap(err, moze.ErrNotFound, "updating moze")
	}
	return repo.unboil(m), nil
}

func (repo mozeRepository) DeleteMoze(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, mozesTable, id), moze.ErrNotFound, "deleting moze")
}
