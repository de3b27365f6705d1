package inmemdb

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/student"
)

type studentRepository struct {
	db *studentTables
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

// Courses

func (repo *studentRepository) CreateCourse(ctx context.Context, c student.Course) (student.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, prev := range repo.db.courses {
		if strings.EqualFold(prev.Code, c.Code) {
			return student.Course{}, student.ErrCodeExists
		}
	}
	c.ID = ensureID(c.ID)
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *studentRepository) QueryCourses(ctx context.Context, filter student.CourseFilter, ordering []core.DBOrdering) ([]student.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := lo.Filter(rows(repo.db.courses), func(c student.Course, _ int) bool {
		switch {
		case !matches(filter.Search, c.Code, c.Title, c.Description):
			return false
		case filter.InstructorID != "" && c.InstructorID != filter.InstructorID:
			return false
		case filter.IsActive != nil && c.IsActive != *filter.IsActive:
			return false
		case filter.IDs != nil && !lo.Contains(filter.IDs, c.ID):
			return false
		}
		return true
	})
	orderBy(courses, ordering, []core.DBOrdering{{Field: "code", Ascending: true}}, func(c student.Course, field string) interface{} {
		switch field {
		case "code":
			return c.Code
		case "title":
			return c.Title
		case "starts_on":
			return c.StartsOn
		default:
			return c.CreatedAt
		}
	})
	return courses, nil
}

func (repo *studentRepository) GetCourse(ctx context.Context, id string) (student.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return getRow(repo.db.courses, id, student.ErrCourseNotFound)
}

func (repo *studentRepository) UpdateCourse(ctx context.Context, c student.Course) (student.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return replaceRow(repo.db.courses, c.ID, c, student.ErrCourseNotFound)
}

// DeleteCourse also drops the enrollments, coursework and grades of the course.
func (repo *studentRepository) DeleteCourse(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := deleteRow(repo.db.courses, id, student.ErrCourseNotFound); err != nil {
		return err
	}
	for eid, e := range repo.db.enrollments {
		if e.CourseID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for aid, a := range repo.db.assignments {
		if a.CourseID == id {
			repo.deleteGradesOf(aid)
			delete(repo.db.assignments, aid)
		}
	}
	return nil
}

func (repo *studentRepository) deleteGradesOf(assignmentID string) {
	for gid, g := range repo.db.grades {
		if g.AssignmentID == assignmentID {
			delete(repo.db.grades, gid)
		}
	}
}

// Enrollments

func (repo *studentRepository) CreateEnrollment(ctx context.Context, e student.Enrollment) (student.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, prev := range repo.db.enrollments {
		if prev.CourseID == e.CourseID && prev.StudentID == e.StudentID {
			return student.Enrollment{}, student.ErrAlreadyEnrolled
		}
	}
	e.ID = ensureID(e.ID)
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *studentRepository) QueryEnrollments(ctx context.Context, filter student.EnrollmentFilter) ([]student.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.enrollments), func(e student.Enrollment, _ int) bool {
		switch {
		case filter.CourseID != "" && e.CourseID != filter.CourseID:
			return false
		case filter.StudentID != "" && e.StudentID != filter.StudentID:
			return false
		case filter.Status != "" && e.Status != filter.Status:
			return false
		case filter.CourseIDs != nil && !lo.Contains(filter.CourseIDs, e.CourseID):
			return false
		}
		return true
	})
	orderBy(list, nil, []core.DBOrdering{{Field: "enrolled_at"}}, func(e student.Enrollment, _ string) interface{} { return e.EnrolledAt })
	return list, nil
}

func (repo *studentRepository) GetEnrollment(ctx context.Context, id string) (student.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return getRow(repo.db.enrollments, id, student.ErrEnrollmentNotFound)
}

func (repo *studentRepository) UpdateEnrollment(ctx context.Context, e student.Enrollment) (student.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return replaceRow(repo.db.enrollments, e.ID, e, student.ErrEnrollmentNotFound)
}

// Coursework

func (repo *studentRepository) CreateAssignment(ctx context.Context, a student.Assignment) (student.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[a.CourseID]; !ok {
		return student.Assignment{}, student.ErrCourseNotFound
	}
	a.ID = ensureID(a.ID)
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *studentRepository) QueryAssignments(ctx context.Context, filter student.AssignmentFilter) ([]student.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.assignments), func(a student.Assignment, _ int) bool {
		if filter.CourseID != "" && a.CourseID != filter.CourseID {
			return false
		}
		return filter.CourseIDs == nil || lo.Contains(filter.CourseIDs, a.CourseID)
	})
	orderBy(list, nil, []core.DBOrdering{{Field: "due_at", Ascending: true}}, func(a student.Assignment, _ string) interface{} { return a.DueAt })
	return list, nil
}

func (repo *studentRepository) GetAssignment(ctx context.Context, id string) (student.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return getRow(repo.db.assignments, id, student.ErrAssignmentNotFound)
}

func (repo *studentRepository) DeleteAssignment(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := deleteRow(repo.db.assignments, id, student.ErrAssignmentNotFound); err != nil {
		return err
	}
	repo.deleteGradesOf(id)
	return nil
}

// Grades

func (repo *studentRepository) UpsertGrade(ctx context.Context, g student.Grade) (student.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[g.AssignmentID]; !ok {
		return student.Grade{}, student.ErrAssignmentNotFound
	}
	for _, prev := range repo.db.grades {
		if prev.AssignmentID == g.AssignmentID && prev.StudentID == g.StudentID {
			g.ID = prev.ID
			break
		}
	}
	g.ID = ensureID(g.ID)
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *studentRepository) QueryGrades(ctx context.Context, filter student.GradeFilter) ([]student.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := lo.Filter(rows(repo.db.grades), func(g student.Grade, _ int) bool {
		switch {
		case filter.AssignmentID != "" && g.AssignmentID != filter.AssignmentID:
			return false
		case filter.StudentID != "" && g.StudentID != filter.StudentID:
			return false
		}
		if filter.CourseIDs == nil {
			return true
		}
		a, ok := repo.db.assignments[g.AssignmentID]
		return ok && lo.Contains(filter.CourseIDs, a.CourseID)
	})
	orderBy(list, nil, []core.DBOrdering{{Field: "graded_at"}}, func(g student.Grade, _ string) interface{} { return g.GradedAt })
	return list, nil
}
