// Package student keeps the student records: courses, enrollments, coursework and grades.
package student

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/user"
)

var (
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")
	ErrCodeExists         = errors.New("a course with this code already exists")
	ErrAlreadyEnrolled    = core.NewConflictError("student is already enrolled in this course")
	ErrNotEnrolled        = errors.New("student is not enrolled in this course")
)

type (
	Repository interface {
		// CreateCourse returns ErrCodeExists when the code is taken.
		CreateCourse(ctx context.Context, c Course) (Course, error)
		QueryCourses(ctx context.Context, filter CourseFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		// CreateEnrollment returns ErrAlreadyEnrolled when the student is enrolled in the course.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		// UpsertGrade creates the grade of (assignment, student) or replaces the existing one.
		UpsertGrade(ctx context.Context, g Grade) (Grade, error)
		QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, error)
	}

	Service struct {
		repo    Repository
		users   *user.Service
		auditor audit.Recorder
	}
)

func NewService(repo Repository, users *user.Service, auditor audit.Recorder) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(auditor, "auditor"),
	).CheckAndPanic()

	return &Service{repo: repo, users: users, auditor: auditor}
}

// CanCreateCourses reports whether usr may open courses.
func CanCreateCourses(usr user.User) bool {
	return usr.IsStaff() || usr.IsDoctor()
}

func canTeach(usr user.User, c Course) bool {
	return usr.IsAdmin() || c.InstructorID == usr.ID
}

// Courses

func (svc *Service) CreateCourse(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	if !CanCreateCourses(actor) {
		return Course{}, core.ErrPermissionDenied
	}
	if nc.InstructorID == "" {
		nc.InstructorID = actor.ID
	} else if _, err := svc.users.GetByID(ctx, nc.InstructorID); err != nil {
		if core.IsNotFound(err) {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "instructor_id", Error: err.Error()})
		}
		return Course{}, err
	}

	now := core.NowFunc()
	c, err := svc.repo.CreateCourse(ctx, Course{
		ID:           core.NewID(),
		Code:         nc.Code,
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: nc.InstructorID,
		Credits:      nc.Credits,
		IsActive:     nc.IsActive == nil || *nc.IsActive,
		StartsOn:     nc.StartsOn,
		EndsOn:       nc.EndsOn,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Course{}, errors.Wrap(err, "creating course")
	}
	return c, svc.record(ctx, audit.ActionCreate, "course", c.ID, nil)
}

// QueryCourses lists the courses; non instructors only see the active ones.
func (svc *Service) QueryCourses(ctx context.Context, viewer user.User, filter CourseFilter, ordering []core.DBOrdering) ([]Course, error) {
	filter.Search = core.CleanString(filter.Search)
	courses, err := svc.repo.QueryCourses(ctx, filter, core.AllowedOrderings(ordering, CourseOrderingFields...))
	if err != nil {
		return nil, err
	}
	return lo.Filter(courses, func(c Course, _ int) bool { return c.IsActive || canTeach(viewer, c) }), nil
}

func (svc *Service) GetCourse(ctx context.Context, viewer user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsActive && !canTeach(viewer, c) {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (svc *Service) UpdateCourse(ctx context.Context, actor user.User, id string, nc NewCourse) (Course, error) {
	c, err := svc.GetCourse(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if !canTeach(actor, c) {
		return Course{}, core.ErrPermissionDenied
	}
	c.Title, c.Description, c.Credits = nc.Title, nc.Description, nc.Credits
	c.StartsOn, c.EndsOn = nc.StartsOn, nc.EndsOn
	if nc.IsActive != nil {
		c.IsActive = *nc.IsActive
	}
	if nc.InstructorID != "" && actor.IsAdmin() {
		c.InstructorID = nc.InstructorID
	}
	c.UpdatedAt = core.NowFunc()
	if c, err = svc.repo.UpdateCourse(ctx, c); err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	return c, svc.record(ctx, audit.ActionUpdate, "course", c.ID, nil)
}

func (svc *Service) DeleteCourse(ctx context.Context, actor user.User, id string) error {
	c, err := svc.GetCourse(ctx, actor, id)
	if err != nil {
		return err
	}
	if !canTeach(actor, c) {
		return core.ErrPermissionDenied
	}
	if err = svc.repo.DeleteCourse(ctx, c.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return svc.record(ctx, audit.ActionDelete, "course", c.ID, nil)
}

// taughtCourseIDs returns the IDs of the courses usr teaches.
func (svc *Service) taughtCourseIDs(ctx context.Context, usr user.User) ([]string, error) {
	courses, err := svc.repo.QueryCourses(ctx, CourseFilter{InstructorID: usr.ID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying taught courses")
	}
	return lo.Map(courses, func(c Course, _ int) string { return c.ID }), nil
}

// Enrollments

// Enroll adds a student to a course. Students may enroll themselves in active courses;
// instructors and admins may enroll any student.
func (svc *Service) Enroll(ctx context.Context, actor user.User, ne NewEnrollment) (Enrollment, error) {
	c, err := svc.GetCourse(ctx, actor, ne.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return Enrollment{}, err
	}
	if ne.StudentID == "" {
		ne.StudentID = actor.ID
	}
	if ne.StudentID != actor.ID && !canTeach(actor, c) {
		return Enrollment{}, core.ErrPermissionDenied
	}
	if !c.IsActive {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "course is not active"})
	}

	stu, err := svc.users.GetByID(ctx, ne.StudentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Enrollment{}, err
	}
	if !stu.IsStudent() {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "user must have the student role"})
	}

	e, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         core.NewID(),
		CourseID:   c.ID,
		StudentID:  stu.ID,
		Status:     EnrollmentActive,
		EnrolledAt: core.NowFunc(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, ErrAlreadyEnrolled
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return e, svc.record(ctx, audit.ActionCreate, "enrollment", e.ID, nil)
}

// Enrollments lists what viewer may see: everything for admins, their courses' enrollments for
// instructors, their own for students.
func (svc *Service) Enrollments(ctx context.Context, viewer user.User, filter EnrollmentFilter) ([]Enrollment, error) {
	if !viewer.IsAdmin() {
		if viewer.IsStudent() {
			filter.StudentID = viewer.ID
		} else {
			ids, err := svc.taughtCourseIDs(ctx, viewer)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				return []Enrollment{}, nil
			}
			filter.CourseIDs = ids
		}
	}
	return svc.repo.QueryEnrollments(ctx, filter)
}

// UpdateEnrollment changes the status of an enrollment. Students may only drop their own.
func (svc *Service) UpdateEnrollment(ctx context.Context, actor user.User, id string, eu EnrollmentUpdate) (Enrollment, error) {
	e, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	c, err := svc.repo.GetCourse(ctx, e.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	isOwn := e.StudentID == actor.ID
	if !canTeach(actor, c) {
		if !isOwn {
			return Enrollment{}, ErrEnrollmentNotFound
		}
		if eu.Status != EnrollmentDropped {
			return Enrollment{}, core.ErrPermissionDenied
		}
	}

	e.Status = eu.Status
	if e.Status == EnrollmentCompleted {
		now := core.NowFunc()
		e.CompletedAt = &now
	} else {
		e.CompletedAt = nil
	}
	if e, err = svc.repo.UpdateEnrollment(ctx, e); err != nil {
		return Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	return e, svc.record(ctx, audit.ActionStatus, "enrollment", e.ID, map[string]interface{}{"to": e.Status})
}

// Coursework

func (svc *Service) CreateAssignment(ctx context.Context, actor user.User, na NewAssignment) (Assignment, error) {
	c, err := svc.repo.GetCourse(ctx, na.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return Assignment{}, err
	}
	if !canTeach(actor, c) {
		return Assignment{}, core.ErrPermissionDenied
	}

	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		ID:          core.NewID(),
		CourseID:    c.ID,
		Title:       na.Title,
		Description: na.Description,
		DueAt:       na.DueAt,
		MaxScore:    na.MaxScore,
		CreatedAt:   core.NowFunc(),
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return a, svc.record(ctx, audit.ActionCreate, "course_assignment", a.ID, nil)
}

// Assignments lists the coursework of the courses viewer teaches or is enrolled in.
func (svc *Service) Assignments(ctx context.Context, viewer user.User, filter AssignmentFilter) ([]Assignment, error) {
	if !viewer.IsAdmin() {
		ids, err := svc.visibleCourseIDs(ctx, viewer)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []Assignment{}, nil
		}
		filter.CourseIDs = ids
	}
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *Service) visibleCourseIDs(ctx context.Context, viewer user.User) ([]string, error) {
	ids, err := svc.taughtCourseIDs(ctx, viewer)
	if err != nil {
		return nil, err
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: viewer.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	for _, e := range enrollments {
		if e.Status != EnrollmentDropped {
			ids = append(ids, e.CourseID)
		}
	}
	return lo.Uniq(ids), nil
}

func (svc *Service) DeleteAssignment(ctx context.Context, actor user.User, id string) error {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	c, err := svc.repo.GetCourse(ctx, a.CourseID)
	if err != nil {
		return err
	}
	if !canTeach(actor, c) {
		return core.ErrPermissionDenied
	}
	if err = svc.repo.DeleteAssignment(ctx, a.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return svc.record(ctx, audit.ActionDelete, "course_assignment", a.ID, nil)
}

// Grades

// Grade records the score of an enrolled student on an assignment, replacing any previous grade.
func (svc *Service) Grade(ctx context.Context, actor user.User, ng NewGrade) (Grade, error) {
	a, err := svc.repo.GetAssignment(ctx, ng.AssignmentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Grade{}, core.NewValidationError(err, core.FieldError{Field: "assignment_id", Error: err.Error()})
		}
		return Grade{}, err
	}
	c, err := svc.repo.GetCourse(ctx, a.CourseID)
	if err != nil {
		return Grade{}, err
	}
	if !canTeach(actor, c) {
		return Grade{}, core.ErrPermissionDenied
	}
	if ng.Score > a.MaxScore {
		return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score exceeds the maximum score"})
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{CourseID: c.ID, StudentID: ng.StudentID})
	if err != nil {
		return Grade{}, errors.Wrap(err, "querying enrollments")
	}
	if !lo.ContainsBy(enrollments, func(e Enrollment) bool { return e.Status != EnrollmentDropped }) {
		return Grade{}, core.NewValidationError(ErrNotEnrolled, core.FieldError{Field: "student_id", Error: ErrNotEnrolled.Error()})
	}

	g, err := svc.repo.UpsertGrade(ctx, Grade{
		ID:           core.NewID(),
		AssignmentID: a.ID,
		StudentID:    ng.StudentID,
		Score:        ng.Score,
		LetterGrade:  LetterGrade(ng.Score, a.MaxScore),
		Feedback:     ng.Feedback,
		GradedByID:   actor.ID,
		GradedAt:     core.NowFunc(),
	})
	if err != nil {
		return Grade{}, errors.Wrap(err, "saving grade")
	}
	return g, svc.record(ctx, audit.ActionUpdate, "grade", g.ID, map[string]interface{}{"score": g.Score})
}

// Grades lists what viewer may see: everything for admins, their courses' grades for instructors,
// their own for students.
func (svc *Service) Grades(ctx context.Context, viewer user.User, filter GradeFilter) ([]Grade, error) {
	if !viewer.IsAdmin() {
		if viewer.IsStudent() {
			filter.StudentID = viewer.ID
		} else {
			ids, err := svc.taughtCourseIDs(ctx, viewer)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				return []Grade{}, nil
			}
			filter.CourseIDs = ids
		}
	}
	return svc.repo.QueryGrades(ctx, filter)
}

func (svc *Service) record(ctx context.Context, action, entity, id string, details map[string]interface{}) error {
	if err := svc.auditor.Record(ctx, action, entity, id, details); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}
