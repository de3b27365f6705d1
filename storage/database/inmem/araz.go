package inmemdb

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/araz"
	"github.com/umoorsehhat/sehhat/core/policy"
)

type arazRepository struct {
	db *arazTables
}

var _ araz.Repository = (*arazRepository)(nil) // interface compliance check

func NewArazRepository(db *DB) *arazRepository {
	return &arazRepository{db: db.araz}
}

// withAssignee fills the assignee from the active assignment. Callers hold the lock.
func (repo *arazRepository) withAssignee(a araz.Araz) araz.Araz {
	a.AssigneeID = ""
	for _, as := range repo.db.assignments {
		if as.ArazID == a.ID && as.IsActive {
			a.AssigneeID = as.AssigneeID
			break
		}
	}
	return a
}

func (repo *arazRepository) CreateAraz(ctx context.Context, a araz.Araz) (araz.Araz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = ensureID(a.ID)
	a.AssigneeID = ""
	repo.db.araz[a.ID] = &a
	return a, nil
}

func (repo *arazRepository) QueryAraz(ctx context.Context, filter araz.QueryFilter, ordering []core.DBOrdering) ([]araz.Araz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Map(rows(repo.db.araz), func(a araz.Araz, _ int) araz.Araz { return repo.withAssignee(a) })
	list = lo.Filter(list, func(a araz.Araz, _ int) bool {
		switch {
		case !matches(filter.Search, a.Ailment, a.Symptoms, a.PatientName, a.PatientITSID):
			return false
		case len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, a.Status):
			return false
		case len(filter.Urgencies) > 0 && !lo.Contains(filter.Urgencies, a.Urgency):
			return false
		case filter.MozeID != "" && a.MozeID != filter.MozeID:
			return false
		case filter.AssigneeID != "" && a.AssigneeID != filter.AssigneeID:
			return false
		case filter.PreferredDoctorID != "" && a.PreferredDoctorID != filter.PreferredDoctorID:
			return false
		case filter.PatientID != "" && a.PatientID != filter.PatientID:
			return false
		case filter.Overdue != nil && policy.IsOverdue(a.Urgency, a.Status, a.CreatedAt, filter.Now) != *filter.Overdue:
			return false
		case !within(a.CreatedAt, filter.CreatedFrom, filter.CreatedTo):
			return false
		}
		return true
	})
	list = policy.Filter(filter.Scope, list, func(a araz.Araz) policy.Subject {
		return policy.Subject{
			CreatorID:   a.PatientID,
			MozeID:      a.MozeID,
			AssigneeID:  a.AssigneeID,
			PreferredID: a.PreferredDoctorID,
		}
	})

	orderBy(list, ordering, newestFirst, func(a araz.Araz, field string) interface{} {
		switch field {
		case "ailment":
			return a.Ailment
		case "status":
			return a.Status
		case "urgency":
			return levelRank[a.Urgency]
		case "appointment_at":
			return a.AppointmentAt
		case "updated_at":
			return a.UpdatedAt
		default:
			return a.CreatedAt
		}
	})
	return list, nil
}

func (repo *arazRepository) GetAraz(ctx context.Context, id string) (araz.Araz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.araz[id]; ok {
		return repo.withAssignee(*a), nil
	}
	return araz.Araz{}, araz.ErrNotFound
}

func (repo *arazRepository) UpdateAraz(ctx context.Context, a araz.Araz) (araz.Araz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.araz[a.ID]; !ok {
		return araz.Araz{}, araz.ErrNotFound
	}
	a = repo.withAssignee(a)
	repo.db.araz[a.ID] = &a
	return a, nil
}

func (repo *arazRepository) DeleteAraz(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.araz[id]; !ok {
		return araz.ErrNotFound
	}
	delete(repo.db.araz, id)
	for cid, c := range repo.db.comments {
		if c.ArazID == id {
			delete(repo.db.comments, cid)
		}
	}
	for aid, as := range repo.db.assignments {
		if as.ArazID == id {
			delete(repo.db.assignments, aid)
		}
	}
	return nil
}

func (repo *arazRepository) CreateComment(ctx context.Context, c araz.Comment) (araz.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.araz[c.ArazID]; !ok {
		return araz.Comment{}, araz.ErrNotFound
	}
	c.ID = ensureID(c.ID)
	repo.db.comments[c.ID] = &c
	return c, nil
}

func (repo *arazRepository) QueryComments(ctx context.Context, arazID string, includeInternal bool) ([]araz.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	comments := lo.Filter(rows(repo.db.comments), func(c araz.Comment, _ int) bool {
		return c.ArazID == arazID && (includeInternal || !c.IsInternal)
	})
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (repo *arazRepository) Assign(ctx context.Context, a araz.Assignment) (araz.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.araz[a.ArazID]; !ok {
		return araz.Assignment{}, araz.ErrNotFound
	}
	for _, prev := range repo.db.assignments {
		if prev.ArazID == a.ArazID {
			prev.IsActive = false
		}
	}
	a.ID = ensureID(a.ID)
	a.IsActive = true
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *arazRepository) QueryAssignments(ctx context.Context, arazID string) ([]araz.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.assignments), func(a araz.Assignment, _ int) bool { return a.ArazID == arazID })
	orderBy(list, nil, newestFirst, func(a araz.Assignment, _ string) interface{} { return a.CreatedAt })
	return list, nil
}
