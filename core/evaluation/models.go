package evaluation

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/policy"
)

// TargetAll opens a form to every role.
const TargetAll = "all"

// Types
const (
	TypePerformance = "performance"
	TypeService     = "service"
	TypeFacility    = "facility"
	TypeGeneral     = "general"
)

var (
	Types          = []string{TypePerformance, TypeService, TypeFacility, TypeGeneral}
	OrderingFields = []string{"title", "evaluation_type", "starts_at", "ends_at", "created_at"}
)

type (
	Form struct {
		ID             string      `json:"id"`
		Title          string      `json:"title"`
		Description    string      `json:"description"`
		EvaluationType string      `json:"evaluation_type"`
		TargetRole     string      `json:"target_role"`
		MozeID         string      `json:"moze_id"`
		CreatorID      string      `json:"creator_id"`
		IsActive       bool        `json:"is_active"`
		StartsAt       *time.Time  `json:"starts_at"` // UTC
		EndsAt         *time.Time  `json:"ends_at"`   // UTC
		Criteria       []Criterion `json:"criteria"`
		CreatedAt      time.Time   `json:"created_at"` // UTC
		UpdatedAt      time.Time   `json:"updated_at"` // UTC
	}

	Criterion struct {
		ID          string  `json:"id"`
		FormID      string  `json:"form_id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Weight      float64 `json:"weight"`
		MaxScore    int     `json:"max_score"`
		Position    int     `json:"position"`
	}

	NewCriterion struct {
		Name        string  `json:"name" validate:"required,notblank,max=200"`
		Description string  `json:"description"`
		Weight      float64 `json:"weight" validate:"gte=0"`
		MaxScore    int     `json:"max_score" validate:"gte=0,lte=100"`
	}

	NewForm struct {
		Title          string         `json:"title" validate:"required,notblank,max=200"`
		Description    string         `json:"description"`
		EvaluationType string         `json:"evaluation_type" validate:"omitempty,oneof=performance service facility general"`
		TargetRole     string         `json:"target_role" validate:"omitempty,target_role"`
		MozeID         string         `json:"moze_id"`
		IsActive       *bool          `json:"is_active"`
		StartsAt       *time.Time     `json:"starts_at"`
		EndsAt         *time.Time     `json:"ends_at"`
		Criteria       []NewCriterion `json:"criteria" validate:"required,min=1,dive"`
	}

	UpdateForm struct {
		Title       string     `json:"title" validate:"max=200"`
		Description *string    `json:"description"`
		IsActive    *bool      `json:"is_active"`
		StartsAt    *time.Time `json:"starts_at"`
		EndsAt      *time.Time `json:"ends_at"`
	}

	Answer struct {
		CriterionID string `json:"criterion_id" validate:"required"`
		Score       int    `json:"score" validate:"gte=0"`
		Comment     string `json:"comment"`
	}

	Submission struct {
		ID          string    `json:"id"`
		FormID      string    `json:"form_id"`
		EvaluatorID string    `json:"evaluator_id"`
		TargetID    string    `json:"target_id"`
		Answers     []Answer  `json:"answers"`
		TotalScore  float64   `json:"total_score"` // weighted percentage
		Comments    string    `json:"comments"`
		SubmittedAt time.Time `json:"submitted_at"` // UTC
	}

	NewSubmission struct {
		TargetID string   `json:"target_id"`
		Answers  []Answer `json:"answers" validate:"required,min=1,dive"`
		Comments string   `json:"comments"`
	}

	QueryFilter struct {
		Search         string       `query:"search"`
		EvaluationType string       `query:"evaluation_type"`
		TargetRole     string       `query:"target_role"`
		MozeID         string       `query:"moze_id"`
		IsActive       *bool        `query:"is_active"`
		Scope          policy.Scope `query:"-"`
		// OpenToRole also matches the active forms targeting this role (or all roles), whatever Scope says.
		OpenToRole string `query:"-"`
	}

	SubmissionFilter struct {
		FormID      string
		EvaluatorID string
		TargetID    string
	}

	CriterionStats struct {
		CriterionID  string  `json:"criterion_id"`
		Name         string  `json:"name"`
		AverageScore float64 `json:"average_score"`
	}

	Stats struct {
		FormID       string           `json:"form_id"`
		Submissions  int              `json:"submissions"`
		AverageScore float64          `json:"average_score"`
		Criteria     []CriterionStats `json:"criteria"`
	}
)

func (nf *NewForm) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	nf.Description = core.CleanString(nf.Description)
	nf.EvaluationType = core.CleanString(nf.EvaluationType, true /* lower */)
	nf.TargetRole = core.CleanString(nf.TargetRole, true /* lower */)
	if nf.EvaluationType == "" {
		nf.EvaluationType = TypeGeneral
	}
	if nf.TargetRole == "" {
		nf.TargetRole = TargetAll
	}
	for i := range nf.Criteria {
		nf.Criteria[i].Name = core.CleanString(nf.Criteria[i].Name)
		if nf.Criteria[i].Weight == 0 {
			nf.Criteria[i].Weight = 1
		}
		if nf.Criteria[i].MaxScore == 0 {
			nf.Criteria[i].MaxScore = 5
		}
	}
	if err := validate.Struct(nf); err != nil {
		return err
	}
	return checkWindow(nf.StartsAt, nf.EndsAt)
}

func checkWindow(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && !endsAt.After(*startsAt) {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_at", Error: "ends_at must be after starts_at"})
	}
	return nil
}

func (uf *UpdateForm) Validate(validate *validator.Validate) error {
	uf.Title = core.CleanString(uf.Title)
	return validate.Struct(uf)
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.TargetID = core.CleanString(ns.TargetID)
	ns.Comments = core.CleanString(ns.Comments)
	return validate.Struct(ns)
}

func (f Form) subject() policy.Subject {
	return policy.Subject{CreatorID: f.CreatorID, MozeID: f.MozeID}
}

// IsOpenTo reports whether role may answer f.
func (f Form) IsOpenTo(role string) bool {
	return f.TargetRole == TargetAll || f.TargetRole == role
}

// IsOpenAt reports whether f accepts submissions at t.
func (f Form) IsOpenAt(t time.Time) bool {
	if !f.IsActive {
		return false
	}
	if f.StartsAt != nil && t.Before(*f.StartsAt) {
		return false
	}
	return f.EndsAt == nil || !t.After(*f.EndsAt)
}
