package araz

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/policy"
)

// Statuses
const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusScheduled   = "scheduled"
	StatusInProgress  = "in_progress"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusRejected    = "rejected"
)

// Urgencies
const (
	UrgencyLow       = policy.LevelLow
	UrgencyMedium    = policy.LevelMedium
	UrgencyHigh      = policy.LevelHigh
	UrgencyEmergency = policy.LevelEmergency
)

var (
	Statuses  = []string{StatusSubmitted, StatusUnderReview, StatusApproved, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusRejected}
	Urgencies = []string{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency}

	transitions = map[string][]string{
		StatusSubmitted:   {StatusUnderReview, StatusApproved, StatusRejected, StatusCancelled},
		StatusUnderReview: {StatusApproved, StatusRejected, StatusCancelled},
		StatusApproved:    {StatusScheduled, StatusInProgress, StatusCancelled},
		StatusScheduled:   {StatusInProgress, StatusCompleted, StatusCancelled},
		StatusInProgress:  {StatusCompleted, StatusCancelled},
	}

	OrderingFields = []string{"ailment", "status", "urgency", "appointment_at", "created_at", "updated_at"}
)

type (
	Araz struct {
		ID                string     `json:"id"`
		PatientID         string     `json:"patient_id"` // creator
		PatientITSID      string     `json:"patient_its_id"`
		PatientName       string     `json:"patient_name"`
		Ailment           string     `json:"ailment"`
		Symptoms          string     `json:"symptoms"`
		Urgency           string     `json:"urgency"`
		Status            string     `json:"status"`
		PreferredDoctorID string     `json:"preferred_doctor_id"`
		AssigneeID        string     `json:"assignee_id"` // active assignment
		MozeID            string     `json:"moze_id"`
		AppointmentAt     *time.Time `json:"appointment_at"` // UTC
		CompletedAt       *time.Time `json:"completed_at"`   // UTC
		CreatedAt         time.Time  `json:"created_at"`     // UTC
		UpdatedAt         time.Time  `json:"updated_at"`     // UTC
		IsOverdue         bool       `json:"is_overdue"`
	}

	NewAraz struct {
		PatientITSID      string `json:"patient_its_id" validate:"omitempty,itsid"`
		PatientName       string `json:"patient_name" validate:"max=200"`
		Ailment           string `json:"ailment" validate:"required,notblank,max=200"`
		Symptoms          string `json:"symptoms"`
		Urgency           string `json:"urgency" validate:"omitempty,oneof=low medium high emergency"`
		PreferredDoctorID string `json:"preferred_doctor_id"`
		MozeID            string `json:"moze_id"`
	}

	UpdateAraz struct {
		Ailment           string  `json:"ailment" validate:"max=200"`
		Symptoms          *string `json:"symptoms"`
		Urgency           string  `json:"urgency" validate:"omitempty,oneof=low medium high emergency"`
		PreferredDoctorID *string `json:"preferred_doctor_id"`
		MozeID            *string `json:"moze_id"`
	}

	StatusUpdate struct {
		Status string `json:"status" validate:"required,oneof=submitted under_review approved scheduled in_progress completed cancelled rejected"`
		Note   string `json:"note"`
	}

	Schedule struct {
		AppointmentAt time.Time `json:"appointment_at" validate:"required"`
	}

	Comment struct {
		ID         string    `json:"id"`
		ArazID     string    `json:"araz_id"`
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
		ArazID       string    `json:"araz_id"`
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

	QueryFilter struct {
		Search            string       `query:"search"`
		Statuses          []string     `query:"status"`
		Urgencies         []string     `query:"urgency"`
		MozeID            string       `query:"moze_id"`
		AssigneeID        string       `query:"assignee_id"`
		PreferredDoctorID string       `query:"preferred_doctor_id"`
		PatientID         string       `query:"patient_id"`
		Overdue           *bool        `query:"overdue"`
		CreatedFrom       time.Time    `query:"-"` // created_from
		CreatedTo         time.Time    `query:"-"` // created_to
		Scope             policy.Scope `query:"-"`
		Now               time.Time    `query:"-"` // reference time of Overdue
	}

	Stats struct {
		Total      int            `json:"total"`
		ByStatus   map[string]int `json:"by_status"`
		ByUrgency  map[string]int `json:"by_urgency"`
		Overdue    int            `json:"overdue"`
		Unassigned int            `json:"unassigned"`
		Scheduled  int            `json:"scheduled"`
	}
)

func (na *NewAraz) Validate(validate *validator.Validate) error {
	na.PatientITSID = core.CleanString(na.PatientITSID)
	na.PatientName = core.CleanString(na.PatientName)
	na.Ailment = core.CleanString(na.Ailment)
	na.Symptoms = core.CleanString(na.Symptoms)
	na.Urgency = core.CleanString(na.Urgency, true /* lower */)
	if na.Urgency == "" {
		na.Urgency = UrgencyMedium
	}
	return validate.Struct(na)
}

func (ua *UpdateAraz) Validate(validate *validator.Validate) error {
	ua.Ailment = core.CleanString(ua.Ailment)
	ua.Urgency = core.CleanString(ua.Urgency, true /* lower */)
	return validate.Struct(ua)
}

func (su *StatusUpdate) Validate(validate *validator.Validate) error {
	su.Status = core.CleanString(su.Status, true /* lower */)
	su.Note = core.CleanString(su.Note)
	return validate.Struct(su)
}

func (s *Schedule) Validate(validate *validator.Validate) error {
	s.AppointmentAt = s.AppointmentAt.UTC()
	return validate.Struct(s)
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

func (a Araz) subject() policy.Subject {
	return policy.Subject{CreatorID: a.PatientID, MozeID: a.MozeID, AssigneeID: a.AssigneeID, PreferredID: a.PreferredDoctorID}
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
