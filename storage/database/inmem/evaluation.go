package inmemdb

import (
	"context"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/evaluation"
	"github.com/umoorsehhat/sehhat/core/policy"
)

type evaluationRepository struct {
	db *evaluationTables
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *DB) *evaluationRepository {
	return &evaluationRepository{db: db.evaluation}
}

func (repo *evaluationRepository) CreateForm(ctx context.Context, f evaluation.Form) (evaluation.Form, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f.ID = ensureID(f.ID)
	f.Criteria = append([]evaluation.Criterion(nil), f.Criteria...)
	for i := range f.Criteria {
		f.Criteria[i].ID = ensureID(f.Criteria[i].ID)
		f.Criteria[i].FormID = f.ID
	}
	repo.db.forms[f.ID] = &f
	return f, nil
}

func (repo *evaluationRepository) QueryForms(ctx context.Context, filter evaluation.QueryFilter, ordering []core.DBOrdering) ([]evaluation.Form, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	forms := lo.Filter(rows(repo.db.forms), func(f evaluation.Form, _ int) bool {
		switch {
		case !matches(filter.Search, f.Title, f.Description):
			return false
		case filter.EvaluationType != "" && f.EvaluationType != filter.EvaluationType:
			return false
		case filter.TargetRole != "" && f.TargetRole != filter.TargetRole:
			return false
		case filter.MozeID != "" && f.MozeID != filter.MozeID:
			return false
		case filter.IsActive != nil && f.IsActive != *filter.IsActive:
			return false
		}
		if filter.Scope.Allows(policy.Subject{CreatorID: f.CreatorID, MozeID: f.MozeID}) {
			return true
		}
		return filter.OpenToRole != "" && f.IsActive && f.IsOpenTo(filter.OpenToRole)
	})
	forms = lo.Map(forms, func(f evaluation.Form, _ int) evaluation.Form {
		f.Criteria = nil
		return f
	})

	orderBy(forms, ordering, newestFirst, func(f evaluation.Form, field string) interface{} {
		switch field {
		case "title":
			return f.Title
		case "evaluation_type":
			return f.EvaluationType
		case "starts_at":
			return f.StartsAt
		case "ends_at":
			return f.EndsAt
		default:
			return f.CreatedAt
		}
	})
	return forms, nil
}

func (repo *evaluationRepository) GetForm(ctx context.Context, id string) (evaluation.Form, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	f, ok := repo.db.forms[id]
	if !ok {
		return evaluation.Form{}, evaluation.ErrNotFound
	}
	form := *f
	form.Criteria = append([]evaluation.Criterion(nil), f.Criteria...)
	return form, nil
}

// UpdateForm leaves the criteria untouched.
func (repo *evaluationRepository) UpdateForm(ctx context.Context, f evaluation.Form) (evaluation.Form, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.forms[f.ID]
	if !ok {
		return evaluation.Form{}, evaluation.ErrNotFound
	}
	f.Criteria = orig.Criteria
	repo.db.forms[f.ID] = &f
	return f, nil
}

func (repo *evaluationRepository) DeleteForm(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.forms[id]; !ok {
		return evaluation.ErrNotFound
	}
	delete(repo.db.forms, id)
	for sid, s := range repo.db.submissions {
		if s.FormID == id {
			delete(repo.db.submissions, sid)
		}
	}
	return nil
}

func (repo *evaluationRepository) CreateSubmission(ctx context.Context, s evaluation.Submission) (evaluation.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.forms[s.FormID]; !ok {
		return evaluation.Submission{}, evaluation.ErrNotFound
	}
	for _, prev := range repo.db.submissions {
		if prev.FormID == s.FormID && prev.EvaluatorID == s.EvaluatorID {
			return evaluation.Submission{}, evaluation.ErrAlreadySubmitted
		}
	}
	s.ID = ensureID(s.ID)
	s.Answers = append([]evaluation.Answer(nil), s.Answers...)
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *evaluationRepository) QuerySubmissions(ctx context.Context, filter evaluation.SubmissionFilter) ([]evaluation.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := lo.Filter(rows(repo.db.submissions), func(s evaluation.Submission, _ int) bool {
		switch {
		case filter.FormID != "" && s.FormID != filter.FormID:
			return false
		case filter.EvaluatorID != "" && s.EvaluatorID != filter.EvaluatorID:
			return false
		case filter.TargetID != "" && s.TargetID != filter.TargetID:
			return false
		}
		return true
	})
	orderBy(subs, nil, []core.DBOrdering{{Field: "submitted_at"}}, func(s evaluation.Submission, _ string) interface{} { return s.SubmittedAt })
	return subs, nil
}

func (repo *evaluationRepository) CountSubmissions(ctx context.Context, formID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return lo.CountBy(rows(repo.db.submissions), func(s evaluation.Submission) bool { return s.FormID == formID }), nil
}
