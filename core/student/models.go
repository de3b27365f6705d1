package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/umoorsehhat/sehhat/core"
)

// Enrollment statuses
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
)

var CourseOrderingFields = []string{"code", "title", "starts_on", "created_at"}

type (
	Course struct {
		ID           string     `json:"id"`
		Code         string     `json:"code"`
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		InstructorID string     `json:"instructor_id"`
		Credits      int        `json:"credits"`
		IsActive     bool       `json:"is_active"`
		StartsOn     *time.Time `json:"starts_on"`
		EndsOn       *time.Time `json:"ends_on"`
		CreatedAt    time.Time  `json:"created_at"` // UTC
		UpdatedAt    time.Time  `json:"updated_at"` // UTC
	}

	NewCourse struct {
		Code         string     `json:"code" validate:"required,alphanum_,max=20"`
		Title        string     `json:"title" validate:"required,notblank,max=200"`
		Description  string     `json:"description"`
		InstructorID string     `json:"instructor_id"`
		Credits      int        `json:"credits" validate:"gte=0,lte=60"`
		IsActive     *bool      `json:"is_active"`
		StartsOn     *time.Time `json:"starts_on"`
		EndsOn       *time.Time `json:"ends_on"`
	}

	CourseFilter struct {
		Search       string   `query:"search"`
		InstructorID string   `query:"instructor_id"`
		IsActive     *bool    `query:"is_active"`
		IDs          []string `query:"-"`
	}

	Enrollment struct {
		ID          string     `json:"id"`
		CourseID    string     `json:"course_id"`
		StudentID   string     `json:"student_id"`
		Status      string     `json:"status"`
		EnrolledAt  time.Time  `json:"enrolled_at"`  // UTC
		CompletedAt *time.Time `json:"completed_at"` // UTC
	}

	NewEnrollment struct {
		CourseID  string `json:"course_id" validate:"required"`
		StudentID string `json:"student_id"`
	}

	EnrollmentUpdate struct {
		Status string `json:"status" validate:"required,oneof=active completed dropped"`
	}

	EnrollmentFilter struct {
		CourseID  string   `query:"course_id"`
		StudentID string   `query:"student_id"`
		Status    string   `query:"status"`
		CourseIDs []string `query:"-"`
	}

	Assignment struct {
		ID          string    `json:"id"`
		CourseID    string    `json:"course_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		DueAt       time.Time `json:"due_at"` // UTC
		MaxScore    float64   `json:"max_score"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}

	NewAssignment struct {
		CourseID    string    `json:"course_id" validate:"required"`
		Title       string    `json:"title" validate:"required,notblank,max=200"`
		Description string    `json:"description"`
		DueAt       time.Time `json:"due_at" validate:"required"`
		MaxScore    float64   `json:"max_score" validate:"gt=0,lte=1000"`
	}

	AssignmentFilter struct {
		CourseID  string   `query:"course_id"`
		CourseIDs []string `query:"-"`
	}

	Grade struct {
		ID           string    `json:"id"`
		AssignmentID string    `json:"assignment_id"`
		StudentID    string    `json:"student_id"`
		Score        float64   `json:"score"`
		LetterGrade  string    `json:"letter_grade"`
		Feedback     string    `json:"feedback"`
		GradedByID   string    `json:"graded_by_id"`
		GradedAt     time.Time `json:"graded_at"` // UTC
	}

	NewGrade struct {
		AssignmentID string  `json:"assignment_id" validate:"required"`
		StudentID    string  `json:"student_id" validate:"required"`
		Score        float64 `json:"score" validate:"gte=0"`
		Feedback     string  `json:"feedback"`
	}

	GradeFilter struct {
		AssignmentID string   `query:"assignment_id"`
		StudentID    string   `query:"student_id"`
		CourseIDs    []string `query:"-"`
	}
)

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.InstructorID = core.CleanString(nc.InstructorID)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.StartsOn != nil && nc.EndsOn != nil && nc.EndsOn.Before(*nc.StartsOn) {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_on", Error: "ends_on must not be before starts_on"})
	}
	return nil
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID)
	ne.StudentID = core.CleanString(ne.StudentID)
	return validate.Struct(ne)
}

func (eu *EnrollmentUpdate) Validate(validate *validator.Validate) error {
	eu.Status = core.CleanString(eu.Status, true /* lower */)
	return validate.Struct(eu)
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.DueAt = na.DueAt.UTC()
	return validate.Struct(na)
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Feedback = core.CleanString(ng.Feedback)
	return validate.Struct(ng)
}

// LetterGrade converts a score out of maxScore to a letter.
func LetterGrade(score, maxScore float64) string {
	if maxScore <= 0 {
		return "F"
	}
	pct := score / maxScore * 100
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}
