package inmemdb

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/petition"
	"github.com/umoorsehhat/sehhat/core/policy"
)

type petitionRepository struct {
	db *petitionTables
}

var _ petition.Repository = (*petitionRepository)(nil) // interface compliance check

func NewPetitionRepository(db *DB) *petitionRepository {
	return &petitionRepository{db: db.petition}
}

// Categories

func (repo *petitionRepository) CreateCategory(ctx context.Context, cat petition.Category) (petition.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cat.ID = ensureID(cat.ID)
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *petitionRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]petition.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cats := lo.Filter(rows(repo.db.categories), func(c petition.Category, _ int) bool { return !activeOnly || c.IsActive })
	orderBy(cats, nil, []core.DBOrdering{{Field: "name", Ascending: true}}, func(c petition.Category, _ string) interface{} { return c.Name })
	return cats, nil
}

func (repo *petitionRepository) GetCategory(ctx context.Context, id string) (petition.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.categories[id]; ok {
		return *c, nil
	}
	return petition.Category{}, petition.ErrCategoryNotFound
}

func (repo *petitionRepository) UpdateCategory(ctx context.Context, cat petition.Category) (petition.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.categories[cat.ID]; !ok {
		return petition.Category{}, petition.ErrCategoryNotFound
	}
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *petitionRepository) DeleteCategory(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return petition.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	for _, p := range repo.db.petitions {
		if p.CategoryID == id {
			p.CategoryID = ""
		}
	}
	return nil
}

// Petitions

// activeAssignee returns the assignee of the active assignment of petitionID. Callers hold the lock.
func (repo *petitionRepository) activeAssignee(petitionID string) string {
	for _, a := range repo.db.assignments {
		if a.PetitionID == petitionID && a.IsActive {
			return a.AssigneeID
		}
	}
	return ""
}

func (repo *petitionRepository) withAssignee(p petition.Petition) petition.Petition {
	p.AssigneeID = repo.activeAssignee(p.ID)
	return p
}

func (repo *petitionRepository) CreatePetition(ctx context.Context, p petition.Petition) (petition.Petition, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = ensureID(p.ID)
	p.AssigneeID = ""
	repo.db.petitions[p.ID] = &p
	return p, nil
}

func (repo *petitionRepository) QueryPetitions(ctx context.Context, filter petition.QueryFilter, ordering []core.DBOrdering) ([]petition.Petition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	petitions := lo.Map(rows(repo.db.petitions), func(p petition.Petition, _ int) petition.Petition { return repo.withAssignee(p) })
	petitions = lo.Filter(petitions, func(p petition.Petition, _ int) bool {
		switch {
		case !matches(filter.Search, p.Title, p.Description):
			return false
		case len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, p.Status):
			return false
		case len(filter.Priorities) > 0 && !lo.Contains(filter.Priorities, p.Priority):
			return false
		case filter.CategoryID != "" && p.CategoryID != filter.CategoryID:
			return false
		case filter.MozeID != "" && p.MozeID != filter.MozeID:
			return false
		case filter.AssigneeID != "" && p.AssigneeID != filter.AssigneeID:
			return false
		case filter.CreatorID != "" && p.CreatorID != filter.CreatorID:
			return false
		case filter.HideAnonymous && p.IsAnonymous:
			return false
		case filter.Overdue != nil && policy.IsOverdue(p.Priority, p.Status, p.CreatedAt, filter.Now) != *filter.Overdue:
			return false
		case filter.Unassigned && p.AssigneeID != "":
			return false
		case !within(p.CreatedAt, filter.CreatedFrom, filter.CreatedTo):
			return false
		}
		return true
	})
	petitions = policy.Filter(filter.Scope, petitions, func(p petition.Petition) policy.Subject {
		return policy.Subject{CreatorID: p.CreatorID, MozeID: p.MozeID, AssigneeID: p.AssigneeID}
	})

	orderBy(petitions, ordering, newestFirst, func(p petition.Petition, field string) interface{} {
		switch field {
		case "title":
			return p.Title
		case "status":
			return p.Status
		case "priority":
			return levelRank[p.Priority]
		case "updated_at":
			return p.UpdatedAt
		default:
			return p.CreatedAt
		}
	})
	return petitions, nil
}

func (repo *petitionRepository) GetPetition(ctx context.Context, id string) (petition.Petition, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.petitions[id]; ok {
		return repo.withAssignee(*p), nil
	}
	return petition.Petition{}, petition.ErrNotFound
}

func (repo *petitionRepository) UpdatePetition(ctx context.Context, p petition.Petition) (petition.Petition, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.petitions[p.ID]; !ok {
		return petition.Petition{}, petition.ErrNotFound
	}
	p = repo.withAssignee(p)
	repo.db.petitions[p.ID] = &p
	return p, nil
}

func (repo *petitionRepository) DeletePetition(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.petitions[id]; !ok {
		return petition.ErrNotFound
	}
	delete(repo.db.petitions, id)
	for cid, c := range repo.db.comments {
		if c.PetitionID == id {
			delete(repo.db.comments, cid)
		}
	}
	for aid, a := range repo.db.assignments {
		if a.PetitionID == id {
			delete(repo.db.assignments, aid)
		}
	}
	for aid, at := range repo.db.attachments {
		if at.PetitionID == id {
			delete(repo.db.attachments, aid)
		}
	}
	return nil
}

// Comments

func (repo *petitionRepository) CreateComment(ctx context.Context, c petition.Comment) (petition.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.petitions[c.PetitionID]; !ok {
		return petition.Comment{}, petition.ErrNotFound
	}
	c.ID = ensureID(c.ID)
	repo.db.comments[c.ID] = &c
	return c, nil
}

func (repo *petitionRepository) QueryComments(ctx context.Context, petitionID string, includeInternal bool) ([]petition.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	comments := lo.Filter(rows(repo.db.comments), func(c petition.Comment, _ int) bool {
		return c.PetitionID == petitionID && (includeInternal || !c.IsInternal)
	})
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

// Assignments

func (repo *petitionRepository) Assign(ctx context.Context, a petition.Assignment) (petition.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.petitions[a.PetitionID]; !ok {
		return petition.Assignment{}, petition.ErrNotFound
	}
	for _, prev := range repo.db.assignments {
		if prev.PetitionID == a.PetitionID {
			prev.IsActive = false
		}
	}
	a.ID = ensureID(a.ID)
	a.IsActive = true
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *petitionRepository) QueryAssignments(ctx context.Context, petitionID string) ([]petition.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.assignments), func(a petition.Assignment, _ int) bool { return a.PetitionID == petitionID })
	orderBy(list, nil, newestFirst, func(a petition.Assignment, _ string) interface{} { return a.CreatedAt })
	return list, nil
}

// Attachments

func (repo *petitionRepository) CreateAttachment(ctx context.Context, at petition.Attachment) (petition.Attachment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.petitions[at.PetitionID]; !ok {
		return petition.Attachment{}, petition.ErrNotFound
	}
	at.ID = ensureID(at.ID)
	repo.db.attachments[at.ID] = &at
	return at, nil
}

func (repo *petitionRepository) QueryAttachments(ctx context.Context, petitionID string) ([]petition.Attachment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.attachments), func(at petition.Attachment, _ int) bool { return at.PetitionID == petitionID })
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (repo *petitionRepository) GetAttachment(ctx context.Context, id string) (petition.Attachment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if at, ok := repo.db.attachments[id]; ok {
		return *at, nil
	}
	return petition.Attachment{}, petition.ErrAttachmentNotFound
}

func (repo *petitionRepository) DeleteAttachment(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.attachments[id]; !ok {
		return petition.ErrAttachmentNotFound
	}
	delete(repo.db.attachments, id)
	return nil
}
