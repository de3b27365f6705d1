package petition

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/policy"
)

// Statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
)

// Priorities
const (
	PriorityLow    = policy.LevelLow
	PriorityMedium = policy.LevelMedium
	PriorityHigh   = policy.LevelHigh
	PriorityUrgent = policy.LevelUrgent
)

var (
	Statuses   = []string{StatusPending, StatusInProgress, StatusResolved, StatusRejected, StatusCancelled}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

	// transitions lists the statuses each status may move to.
	transitions = map[string][]string{
		StatusPending:    {StatusInProgress, StatusResolved, StatusRejected, StatusCancelled},
		StatusInProgress: {StatusPending, StatusResolved, StatusRejected, StatusCancelled},
		StatusResolved:   {StatusInProgress},
		StatusRejected:   {},
		StatusCancelled:  {},
	}

	OrderingFields = []string{"title", "status", "priority", "created_at", "updated_at"}
)

type (
	Category struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		IsActive    bool      `json:"is_active"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}

	NewCategory struct {
		Name        string `json:"name" validate:"required,notblank,max=100"`
		Description string `json:"description"`
		IsActive    *bool  `json:"is_active"`
	}

	Petition struct {
		ID          string     `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		CategoryID  string     `json:"category_id"`
		Status      string     `json:"status"`
		Priority    string     `json:"priority"`
		CreatorID   string     `json:"creator_id"`
		MozeID      string     `json:"moze_id"`
		IsAnonymous bool       `json:"is_anonymous"`
		AssigneeID  string     `json:"assignee_id"` // active assignment
		ResolvedAt  *time.Time `json:"resolved_at"` // UTC
		CreatedAt   time.Time  `json:"created_at"`  // UTC
		UpdatedAt   time.Time  `json:"updated_at"`  // UTC
		IsOverdue   bool       `json:"is_overdue"`
	}

	NewPetition struct {
		Title       string `json:"title" validate:"required,notblank,max=200"`
		Description string `json:"description" validate:"required,notblank"`
		CategoryID  string `json:"category_id"`
		Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
		MozeID      string `json:"moze_id"`
		IsAnonymous bool   `json:"is_anonymous"`
	}

	UpdatePetition struct {
		Title       string  `json:"title" validate:"max=200"`
		Description string  `json:"description"`
		CategoryID  *string `json:"category_id"`
		Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
		MozeID      *string `json:"moze_id"`
	}

	StatusUpdate struct {
		Status string `json:"status" validate:"required,oneof=pending in_progress resolved rejected cancelled"`
		Note   string `json:"note"`
	}

	Comment struct {
		ID         string    `json:"id"`
		PetitionID string    `json:"petition_id"`
		AuthorID   string    `json:"author_id"`
		Content    string    `json:"content"`
		IsInternal bool      `json:"is_internal"`
		CreatedAt  time.Time `json:"created_at"` // UTC
	}

	NewComment struct {
		Content    string `json:"content" validate:"required,notblank"`
		IsInternal bool   `json:"is_internal"`
	}

	Assignment struct {
		ID           string    `json:"id"`
		PetitionID   string    `json:"petition_id"`
		AssigneeID   string    `json:"assignee_id"`
		AssignedByID string    `json:"assigned_by_id"`
		Notes        string    `json:"notes"`
		IsActive     bool      `json:"is_active"`
		CreatedAt    time.Time `json:"created_at"` // UTC
	}

	NewAssignment struct {
		AssigneeID string `json:"assignee_id" validate:"required"`
		Notes      string `json:"notes"`
	}

	Attachment struct {
		ID           string    `json:"id"`
		PetitionID   string    `json:"petition_id"`
		UploadedByID string    `json:"uploaded_by_id"`
		Filename     string    `json:"filename"`
		ContentType  string    `json:"content_type"`
		Size         int64     `json:"size"`
		Key          string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"` // UTC
	}

	QueryFilter struct {
		Search      string       `query:"search"`
		Statuses    []string     `query:"status"`
		Priorities  []string     `query:"priority"`
		CategoryID  string       `query:"category_id"`
		MozeID      string       `query:"moze_id"`
		AssigneeID  string       `query:"assignee_id"`
		CreatorID   string       `query:"creator_id"`
		Overdue     *bool        `query:"overdue"`
		Unassigned  bool         `query:"unassigned"`
		CreatedFrom time.Time    `query:"-"` // created_from
		CreatedTo   time.Time    `query:"-"` // created_to
		Scope       policy.Scope `query:"-"`
		// HideAnonymous leaves out anonymous petitions; set when filtering on someone else's CreatorID.
		HideAnonymous bool      `query:"-"`
		Now           time.Time `query:"-"` // reference time of Overdue
	}

	Stats struct {
		Total      int            `json:"total"`
		ByStatus   map[string]int `json:"by_status"`
		ByPriority map[string]int `json:"by_priority"`
		Overdue    int            `json:"overdue"`
		Unassigned int            `json:"unassigned"`
	}
)

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

func (np *NewPetition) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	np.Priority = core.CleanString(np.Priority, true /* lower */)
	if np.Priority == "" {
		np.Priority = PriorityMedium
	}
	return validate.Struct(np)
}

func (up *UpdatePetition) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	up.Description = core.CleanString(up.Description)
	up.Priority = core.CleanString(up.Priority, true /* lower */)
	return validate.Struct(up)
}

func (su *StatusUpdate) Validate(validate *validator.Validate) error {
	su.Status = core.CleanString(su.Status, true /* lower */)
	su.Note = core.CleanString(su.Note)
	return validate.Struct(su)
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.AssigneeID = core.CleanString(na.AssigneeID)
	na.Notes = core.CleanString(na.Notes)
	return validate.Struct(na)
}

func (p Petition) subject() policy.Subject {
	return policy.Subject{CreatorID: p.CreatorID, MozeID: p.MozeID, AssigneeID: p.AssigneeID}
}

// CanTransition reports whether a petition may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
