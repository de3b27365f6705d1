package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/evaluation"
)

const (
	evaluationFormsTable       = "evaluation_forms"
	evaluationCriteriaTable    = "evaluation_criteria"
	evaluationSubmissionsTable = "evaluation_submissions"
)

type (
	formRow struct {
		ID             string      `boil:"id"`
		Title          string      `boil:"title"`
		Description    string      `boil:"description"`
		EvaluationType string      `boil:"evaluation_type"`
		TargetRole     string      `boil:"target_role"`
		MozeID         null.String `boil:"moze_id"`
		CreatorID      string      `boil:"creator_id"`
		IsActive       bool        `boil:"is_active"`
		StartsAt       null.Time   `boil:"starts_at"`
		EndsAt         null.Time   `boil:"ends_at"`
		CreatedAt      time.Time   `boil:"created_at"`
		UpdatedAt      time.Time   `boil:"updated_at"`
	}

	criterionRow struct {
		ID          string  `boil:"id"`
		FormID      string  `boil:"form_id"`
		Name        string  `boil:"name"`
		Description string  `boil:"description"`
		Weight      float64 `boil:"weight"`
		MaxScore    int     `boil:"max_score"`
		Position    int     `boil:"position"`
	}

	submissionRow struct {
		ID          string     `boil:"id"`
		FormID      string     `boil:"form_id"`
		EvaluatorID string     `boil:"evaluator_id"`
		TargetID    string     `boil:"target_id"`
		Answers     types.JSON `boil:"answers"`
		TotalScore  float64    `boil:"total_score"`
		Comments    string     `boil:"comments"`
		SubmittedAt time.Time  `boil:"submitted_at"`
	}
)

func (r *formRow) columns() []string {
	return []string{"id", "title", "description", "evaluation_type", "target_role", "moze_id", "creator_id",
		"is_active", "starts_at", "ends_at", "created_at", "updated_at"}
}

func (r *formRow) values() []interface{} {
	return []interface{}{r.ID, r.Title, r.Description, r.EvaluationType, r.TargetRole, r.MozeID, r.CreatorID,
		r.IsActive, r.StartsAt, r.EndsAt, r.CreatedAt, r.UpdatedAt}
}

func (r *criterionRow) columns() []string {
	return []string{"id", "form_id", "name", "description", "weight", "max_score", "position"}
}

func (r *criterionRow) values() []interface{} {
	return []interface{}{r.ID, r.FormID, r.Name, r.Description, r.Weight, r.MaxScore, r.Position}
}

func (r *submissionRow) columns() []string {
	return []string{"id", "form_id", "evaluator_id", "target_id", "answers", "total_score", "comments", "submitted_at"}
}

func (r *submissionRow) values() []interface{} {
	return []interface{}{r.ID, r.FormID, r.EvaluatorID, r.TargetID, r.Answers, r.TotalScore, r.Comments, r.SubmittedAt}
}

type evaluationRepository struct {
	db core.DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db core.DB) *evaluationRepository {
	return &evaluationRepository{db: db}
}

func (repo evaluationRepository) boilForm(f evaluation.Form) *formRow {
	return &formRow{
		ID:             f.ID,
		Title:          f.Title,
		Description:    f.Description,
		EvaluationType: f.EvaluationType,
		TargetRole:     f.TargetRole,
		MozeID:         nullString(f.MozeID),
		CreatorID:      f.CreatorID,
		IsActive:       f.IsActive,
		StartsAt:       nullTimePtr(f.StartsAt),
		EndsAt:         nullTimePtr(f.EndsAt),
		CreatedAt:      f.CreatedAt.UTC(),
		UpdatedAt:      f.UpdatedAt.UTC(),
	}
}

func (repo evaluationRepository) unboilForm(r *formRow) evaluation.Form {
	return evaluation.Form{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		EvaluationType: r.EvaluationType,
		TargetRole:     r.TargetRole,
		MozeID:         r.MozeID.String,
		CreatorID:      r.CreatorID,
		IsActive:       r.IsActive,
		StartsAt:       r.StartsAt.Ptr(),
		EndsAt:         r.EndsAt.Ptr(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (repo evaluationRepository) CreateForm(ctx context.Context, f evaluation.Form) (evaluation.Form, error) {
	if f.ID == "" {
		f.ID = core.NewID()
	}
	f.Criteria = append([]evaluation.Criterion(nil), f.Criteria...)
	for i := range f.Criteria {
		if f.Criteria[i].ID == "" {
			f.Criteria[i].ID = core.NewID()
		}
		f.Criteria[i].FormID = f.ID
	}

	r := repo.boilForm(f)
	err := inTx(ctx, repo.db, func(tx *sql.Tx) error {
		if err := insert(ctx, tx, evaluationFormsTable, r); err != nil {
			return errors.Wrap(err, "inserting evaluation form")
		}
		for _, c := range f.Criteria {
			cr := &criterionRow{
				ID:          c.ID,
				FormID:      c.FormID,
				Name:        c.Name,
				Description: c.Description,
				Weight:      c.Weight,
				MaxScore:    c.MaxScore,
				Position:    c.Position,
			}
			if err := insert(ctx, tx, evaluationCriteriaTable, cr); err != nil {
				return errors.Wrap(err, "inserting evaluation criterion")
			}
		}
		return nil
	})
	if err != nil {
		return evaluation.Form{}, err
	}

	form := repo.unboilForm(r)
	form.Criteria = f.Criteria
	return form, nil
}

func (repo evaluationRepository) QueryForms(ctx context.Context, filter evaluation.QueryFilter, ordering []core.DBOrdering) ([]evaluation.Form, error) {
	mods := []qm.QueryMod{qm.From(evaluationFormsTable)}
	mods = append(mods, search(filter.Search, "title", "description")...)
	mods = append(mods, eq("evaluation_type", filter.EvaluationType)...)
	mods = append(mods, eq("target_role", filter.TargetRole)...)
	mods = append(mods, eqID("moze_id", filter.MozeID)...)
	mods = append(mods, eqBool("is_active", filter.IsActive)...)

	if !filter.Scope.Unrestricted {
		clause, args := scopeClause(filter.Scope, subjectColumns{creator: "creator_id", moze: "moze_id"})
		if filter.OpenToRole != "" {
			clause = "(" + clause + " OR (is_active AND target_role IN (?, ?)))"
			args = append(args, evaluation.TargetAll, filter.OpenToRole)
		}
		mods = append(mods, qm.Where(clause, args...))
	}
	mods = append(mods, orderBy(ordering, "", map[string]string{"title": "lower(title)"}, "created_at DESC"))

	var rows []*formRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting evaluation forms")
	}
	forms := make([]evaluation.Form, 0, len(rows))
	for _, r := range rows {
		forms = append(forms, repo.unboilForm(r))
	}
	return forms, nil
}

func (repo evaluationRepository) GetForm(ctx context.Context, id string) (evaluation.Form, error) {
	r := new(formRow)
	if err := findByID(ctx, repo.db, evaluationFormsTable, id, r); err != nil {
		return evaluation.Form{}, trap(err, evaluation.ErrNotFound, "selecting evaluation form")
	}

	var criteria []*criterionRow
	q := newQuery(qm.From(evaluationCriteriaTable), qm.Where("form_id = ?", id), qm.OrderBy("position ASC"))
	if err := q.Bind(ctx, repo.db, &criteria); err != nil {
		return evaluation.Form{}, errors.Wrap(err, "selecting evaluation criteria")
	}

	f := repo.unboilForm(r)
	f.Criteria = make([]evaluation.Criterion, 0, len(criteria))
	for _, c := range criteria {
		f.Criteria = append(f.Criteria, evaluation.Criterion{
			ID:          c.ID,
			FormID:      c.FormID,
			Name:        c.Name,
			Description: c.Description,
			Weight:      c.Weight,
			MaxScore:    c.MaxScore,
			Position:    c.Position,
		})
	}
	return f, nil
}

// UpdateForm leaves the criteria untouched.
func (repo evaluationRepository) UpdateForm(ctx context.Context, f evaluation.Form) (evaluation.Form, error) {
	if err := update(ctx, repo.db, evaluationFormsTable, repo.boilForm(f)); err != nil {
		return evaluation.Form{}, trap(err, evaluation.ErrNotFound, "updating evaluation form")
	}
	return repo.GetForm(ctx, f.ID)
}

// DeleteForm relies on the foreign keys to drop the criteria and submissions.
func (repo evaluationRepository) DeleteForm(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, evaluationFormsTable, id), evaluation.ErrNotFound, "deleting evaluation form")
}

// Submissions

func (repo evaluationRepository) unboilSubmission(r *submissionRow) evaluation.Submission {
	s := evaluation.Submission{
		ID:          r.ID,
		FormID:      r.FormID,
		EvaluatorID: r.EvaluatorID,
		TargetID:    r.TargetID,
		TotalScore:  r.TotalScore,
		Comments:    r.Comments,
		SubmittedAt: r.SubmittedAt,
	}
	if err := r.Answers.Unmarshal(&s.Answers); err != nil {
		s.Answers = nil
	}
	return s
}

func (repo evaluationRepository) CreateSubmission(ctx context.Context, s evaluation.Submission) (evaluation.Submission, error) {
	if !core.IsValidID(s.FormID) {
		return evaluation.Submission{}, evaluation.ErrNotFound
	}
	if s.ID == "" {
		s.ID = core.NewID()
	}
	answers := s.Answers
	if answers == nil {
		answers = []evaluation.Answer{}
	}

	r := &submissionRow{
		ID:          s.ID,
		FormID:      s.FormID,
		EvaluatorID: s.EvaluatorID,
		TargetID:    s.TargetID,
		TotalScore:  s.TotalScore,
		Comments:    s.Comments,
		SubmittedAt: s.SubmittedAt.UTC(),
	}
	if err := r.Answers.Marshal(answers); err != nil {
		return evaluation.Submission{}, errors.Wrap(err, "encoding answers")
	}
	if err := insert(ctx, repo.db, evaluationSubmissionsTable, r); err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "evaluation_submissions_form_evaluator_uniq" {
			return evaluation.Submission{}, evaluation.ErrAlreadySubmitted
		}
		if violatesForeignKey(err) {
			return evaluation.Submission{}, evaluation.ErrNotFound
		}
		return evaluation.Submission{}, errors.Wrap(err, "inserting evaluation submission")
	}
	return repo.unboilSubmission(r), nil
}

func (repo evaluationRepository) QuerySubmissions(ctx context.Context, filter evaluation.SubmissionFilter) ([]evaluation.Submission, error) {
	mods := []qm.QueryMod{qm.From(evaluationSubmissionsTable)}
	mods = append(mods, eqID("form_id", filter.FormID)...)
	mods = append(mods, eqID("evaluator_id", filter.EvaluatorID)...)
	mods = append(mods, eq("target_id", filter.TargetID)...)
	mods = append(mods, qm.OrderBy("submitted_at DESC"))

	var rows []*submissionRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting evaluation submissions")
	}
	list := make([]evaluation.Submission, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilSubmission(r))
	}
	return list, nil
}

func (repo evaluationRepository) CountSubmissions(ctx context.Context, formID string) (int, error) {
	if !core.IsValidID(formID) {
		return 0, nil
	}
	n, err := count(ctx, repo.db, qm.From(evaluationSubmissionsTable), qm.Where("form_id = ?", formID))
	if err != nil {
		return 0, errors.Wrap(err, "counting evaluation submissions")
	}
	return n, nil
}
