// Package evaluation runs scored evaluation forms and collects their submissions.
package evaluation

import (
	"context"
	"math"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/policy"
	"github.com/umoorsehhat/sehhat/core/user"
)

const (
	entityType           = "evaluation_form"
	submissionEntityType = "evaluation_submission"

	targetRoleTag  = "target_role"
	targetRoleText = "target role must be 'all' or a valid role"
)

var (
	ErrNotFound         = core.NewNotFoundError("evaluation form")
	ErrAlreadySubmitted = core.NewConflictError("you have already submitted this evaluation")
	ErrFormClosed       = errors.New("evaluation form is not open")
	ErrHasSubmissions   = core.NewConflictError("evaluation form already has submissions")
)

type (
	Repository interface {
		// CreateForm stores the form along with its criteria.
		CreateForm(ctx context.Context, f Form) (Form, error)
		// QueryForms returns the forms allowed by QueryFilter.Scope or open to QueryFilter.OpenToRole,
		// without their criteria.
		QueryForms(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Form, error)
		// GetForm returns the form with its criteria, ordered by position.
		GetForm(ctx context.Context, id string) (Form, error)
		UpdateForm(ctx context.Context, f Form) (Form, error)
		DeleteForm(ctx context.Context, id string) error

		// CreateSubmission returns ErrAlreadySubmitted when the evaluator already answered the form.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		// QuerySubmissions returns the matching submissions, newest first.
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
		CountSubmissions(ctx context.Context, formID string) (int, error)
	}

	Service struct {
		repo    Repository
		auditor audit.Recorder
	}
)

// InitValidators registers the evaluation validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(targetRoleTag, func(fl validator.FieldLevel) bool {
		role := fl.Field().String()
		return role == TargetAll || user.IsValidRole(role)
	})
	core.RegisterCustomTranslation(validate, translator, targetRoleTag, targetRoleText)
}

func NewService(repo Repository, auditor audit.Recorder) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(auditor, "auditor"),
	).CheckAndPanic()

	return &Service{repo: repo, auditor: auditor}
}

func canEdit(viewer policy.Viewer, f Form) bool {
	return viewer.IsAdmin || f.CreatorID == viewer.UserID
}

// canSee reports whether viewer may see f: within its policy scope, or open to its role.
func canSee(viewer policy.Viewer, f Form) bool {
	if policy.ScopeFor(viewer).Allows(f.subject()) {
		return true
	}
	return f.IsActive && f.IsOpenTo(viewer.Role)
}

func (svc *Service) Create(ctx context.Context, creator user.User, nf NewForm) (Form, error) {
	now := core.NowFunc()
	f := Form{
		ID:             core.NewID(),
		Title:          nf.Title,
		Description:    nf.Description,
		EvaluationType: nf.EvaluationType,
		TargetRole:     nf.TargetRole,
		MozeID:         nf.MozeID,
		CreatorID:      creator.ID,
		IsActive:       nf.IsActive == nil || *nf.IsActive,
		StartsAt:       utcPtr(nf.StartsAt),
		EndsAt:         utcPtr(nf.EndsAt),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, nc := range nf.Criteria {
		f.Criteria = append(f.Criteria, Criterion{
			ID:          core.NewID(),
			FormID:      f.ID,
			Name:        nc.Name,
			Description: core.CleanString(nc.Description),
			Weight:      nc.Weight,
			MaxScore:    nc.MaxScore,
			Position:    i,
		})
	}

	f, err := svc.repo.CreateForm(ctx, f)
	if err != nil {
		return Form{}, errors.Wrap(err, "creating evaluation form")
	}
	return f, svc.record(ctx, audit.ActionCreate, entityType, f.ID, nil)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (svc *Service) Query(ctx context.Context, viewer policy.Viewer, filter QueryFilter, ordering []core.DBOrdering) ([]Form, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.Scope = policy.ScopeFor(viewer)
	filter.OpenToRole = viewer.Role
	return svc.repo.QueryForms(ctx, filter, core.AllowedOrderings(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, viewer policy.Viewer, id string) (Form, error) {
	f, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return Form{}, err
	}
	if !canSee(viewer, f) {
		return Form{}, ErrNotFound
	}
	return f, nil
}

// Update edits the form; its window may only change while nobody has answered it.
func (svc *Service) Update(ctx context.Context, viewer policy.Viewer, id string, uf UpdateForm) (Form, error) {
	f, err := svc.Get(ctx, viewer, id)
	if err != nil {
		return Form{}, err
	}
	if !canEdit(viewer, f) {
		return Form{}, core.ErrPermissionDenied
	}

	if uf.Title != "" {
		f.Title = uf.Title
	}
	if uf.Description != nil {
		f.Description = core.CleanString(*uf.Description)
	}
	if uf.IsActive != nil {
		f.IsActive = *uf.IsActive
	}
	if uf.StartsAt != nil || uf.EndsAt != nil {
		count, err := svc.repo.CountSubmissions(ctx, f.ID)
		if err != nil {
			return Form{}, errors.Wrap(err, "counting submissions")
		}
		if count > 0 {
			return Form{}, ErrHasSubmissions
		}
		if uf.StartsAt != nil {
			f.StartsAt = utcPtr(uf.StartsAt)
		}
		if uf.EndsAt != nil {
			f.EndsAt = utcPtr(uf.EndsAt)
		}
		if err = checkWindow(f.StartsAt, f.EndsAt); err != nil {
			return Form{}, err
		}
	}
	f.UpdatedAt = core.NowFunc()

	if f, err = svc.repo.UpdateForm(ctx, f); err != nil {
		return Form{}, errors.Wrap(err, "updating evaluation form")
	}
	return f, svc.record(ctx, audit.ActionUpdate, entityType, f.ID, nil)
}

func (svc *Service) Delete(ctx context.Context, viewer policy.Viewer, id string) error {
	f, err := svc.Get(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !canEdit(viewer, f) {
		return core.ErrPermissionDenied
	}
	if err = svc.repo.DeleteForm(ctx, f.ID); err != nil {
		return errors.Wrap(err, "deleting evaluation form")
	}
	return svc.record(ctx, audit.ActionDelete, entityType, f.ID, nil)
}

// Submit records the answers of evaluator. The first submission of an evaluator is final.
func (svc *Service) Submit(ctx context.Context, evaluator user.User, viewer policy.Viewer, formID string, ns NewSubmission) (Submission, error) {
	f, err := svc.Get(ctx, viewer, formID)
	if err != nil {
		return Submission{}, err
	}
	if !f.IsOpenTo(evaluator.Role) && !evaluator.IsAdmin() {
		return Submission{}, core.ErrPermissionDenied
	}
	now := core.NowFunc()
	if !f.IsOpenAt(now) {
		return Submission{}, core.NewValidationError(ErrFormClosed, core.FieldError{Field: "form", Error: ErrFormClosed.Error()})
	}

	total, err := Score(f.Criteria, ns.Answers)
	if err != nil {
		return Submission{}, err
	}
	s, err := svc.repo.CreateSubmission(ctx, Submission{
		ID:          core.NewID(),
		FormID:      f.ID,
		EvaluatorID: evaluator.ID,
		TargetID:    ns.TargetID,
		Answers:     ns.Answers,
		TotalScore:  total,
		Comments:    ns.Comments,
		SubmittedAt: now,
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadySubmitted {
			return Submission{}, ErrAlreadySubmitted
		}
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	return s, svc.record(ctx, audit.ActionCreate, submissionEntityType, s.ID, map[string]interface{}{"form_id": f.ID})
}

// Score checks that every criterion is answered once within its bounds and returns the weighted
// percentage of the answers, rounded to 2 decimals.
func Score(criteria []Criterion, answers []Answer) (float64, error) {
	byID := lo.KeyBy(criteria, func(c Criterion) string { return c.ID })
	seen := make(map[string]struct{}, len(answers))

	var weighted, weights float64
	for _, a := range answers {
		c, ok := byID[a.CriterionID]
		if !ok {
			return 0, core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "unknown criterion " + a.CriterionID})
		}
		if _, dup := seen[a.CriterionID]; dup {
			return 0, core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "criterion " + c.Name + " answered twice"})
		}
		seen[a.CriterionID] = struct{}{}
		if a.Score < 0 || a.Score > c.MaxScore {
			return 0, core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "score of " + c.Name + " is out of bounds"})
		}
		if c.MaxScore > 0 {
			weighted += c.Weight * float64(a.Score) / float64(c.MaxScore)
		}
		weights += c.Weight
	}
	if len(seen) != len(criteria) {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "every criterion must be answered"})
	}
	if weights == 0 {
		return 0, nil
	}
	return round2(weighted / weights * 100), nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Submissions lists the submissions of a form: all of them for admins and its creator, their own for others.
func (svc *Service) Submissions(ctx context.Context, viewer policy.Viewer, formID string) ([]Submission, error) {
	f, err := svc.Get(ctx, viewer, formID)
	if err != nil {
		return nil, err
	}
	filter := SubmissionFilter{FormID: f.ID}
	if !canEdit(viewer, f) {
		filter.EvaluatorID = viewer.UserID
	}
	return svc.repo.QuerySubmissions(ctx, filter)
}

func (svc *Service) MySubmissions(ctx context.Context, viewer policy.Viewer) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{EvaluatorID: viewer.UserID})
}

// Stats aggregates the submissions of a form; only admins and its creator may see them.
func (svc *Service) Stats(ctx context.Context, viewer policy.Viewer, formID string) (Stats, error) {
	f, err := svc.Get(ctx, viewer, formID)
	if err != nil {
		return Stats{}, err
	}
	if !canEdit(viewer, f) {
		return Stats{}, core.ErrPermissionDenied
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{FormID: f.ID})
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying submissions")
	}

	stats := Stats{FormID: f.ID, Submissions: len(subs), Criteria: make([]CriterionStats, 0, len(f.Criteria))}
	if len(subs) > 0 {
		stats.AverageScore = round2(lo.SumBy(subs, func(s Submission) float64 { return s.TotalScore }) / float64(len(subs)))
	}
	for _, c := range f.Criteria {
		var sum, n int
		for _, s := range subs {
			for _, a := range s.Answers {
				if a.CriterionID == c.ID {
					sum += a.Score
					n++
				}
			}
		}
		cs := CriterionStats{CriterionID: c.ID, Name: c.Name}
		if n > 0 {
			cs.AverageScore = round2(float64(sum) / float64(n))
		}
		stats.Criteria = append(stats.Criteria, cs)
	}
	return stats, nil
}

func (svc *Service) record(ctx context.Context, action, entity, id string, details map[string]interface{}) error {
	if err := svc.auditor.Record(ctx, action, entity, id, details); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}
