package boiledrepos

import (
	"context"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/student"
)

const (
	coursesTable           = "courses"
	enrollmentsTable       = "enrollments"
	courseAssignmentsTable = "course_assignments"
	gradesTable            = "grades"
)

type (
	courseRow struct {
		ID           string      `boil:"id"`
		Code         string      `boil:"code"`
		Title        string      `boil:"title"`
		Description  string      `boil:"description"`
		InstructorID null.String `boil:"instructor_id"`
		Credits      int         `boil:"credits"`
		IsActive     bool        `boil:"is_active"`
		StartsOn     null.Time   `boil:"starts_on"`
		EndsOn       null.Time   `boil:"ends_on"`
		CreatedAt    time.Time   `boil:"created_at"`
		UpdatedAt    time.Time   `boil:"updated_at"`
	}

	enrollmentRow struct {
		ID          string    `boil:"id"`
		CourseID    string    `boil:"course_id"`
		StudentID   string    `boil:"student_id"`
		Status      string    `boil:"status"`
		EnrolledAt  time.Time `boil:"enrolled_at"`
		CompletedAt null.Time `boil:"completed_at"`
	}

	courseAssignmentRow struct {
		ID          string    `boil:"id"`
		CourseID    string    `boil:"course_id"`
		Title       string    `boil:"title"`
		Description string    `boil:"description"`
		DueAt       time.Time `boil:"due_at"`
		MaxScore    float64   `boil:"max_score"`
		CreatedAt   time.Time `boil:"created_at"`
	}

	gradeRow struct {
		ID           string      `boil:"id"`
		AssignmentID string      `boil:"assignment_id"`
		StudentID    string      `boil:"student_id"`
		Score        float64     `boil:"score"`
		LetterGrade  string      `boil:"letter_grade"`
		Feedback     string      `boil:"feedback"`
		GradedByID   null.String `boil:"graded_by_id"`
		GradedAt     time.Time   `boil:"graded_at"`
	}
)

func (r *courseRow) columns() []string {
	return []string{"id", "code", "title", "description", "instructor_id", "credits", "is_active", "starts_on",
		"ends_on", "created_at", "updated_at"}
}

func (r *courseRow) values() []interface{} {
	return []interface{}{r.ID, r.Code, r.Title, r.Description, r.InstructorID, r.Credits, r.IsActive, r.StartsOn,
		r.EndsOn, r.CreatedAt, r.UpdatedAt}
}

func (r *enrollmentRow) columns() []string {
	return []string{"id", "course_id", "student_id", "status", "enrolled_at", "completed_at"}
}

func (r *enrollmentRow) values() []interface{} {
	return []interface{}{r.ID, r.CourseID, r.StudentID, r.Status, r.EnrolledAt, r.CompletedAt}
}

func (r *courseAssignmentRow) columns() []string {
	return []string{"id", "course_id", "title", "description", "due_at", "max_score", "created_at"}
}

func (r *courseAssignmentRow) values() []interface{} {
	return []interface{}{r.ID, r.CourseID, r.Title, r.Description, r.DueAt, r.MaxScore, r.CreatedAt}
}

type studentRepository struct {
	db core.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db core.DB) *studentRepository {
	return &studentRepository{db: db}
}

// Courses

func (repo studentRepository) boilCourse(c student.Course) *courseRow {
	return &courseRow{
		ID:           c.ID,
		Code:         c.Code,
		Title:        c.Title,
		Description:  c.Description,
		InstructorID: nullString(c.InstructorID),
		Credits:      c.Credits,
		IsActive:     c.IsActive,
		StartsOn:     nullTimePtr(c.StartsOn),
		EndsOn:       nullTimePtr(c.EndsOn),
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
}

func (repo studentRepository) unboilCourse(r *courseRow) student.Course {
	return student.Course{
		ID:           r.ID,
		Code:         r.Code,
		Title:        r.Title,
		Description:  r.Description,
		InstructorID: r.InstructorID.String,
		Credits:      r.Credits,
		IsActive:     r.IsActive,
		StartsOn:     r.StartsOn.Ptr(),
		EndsOn:       r.EndsOn.Ptr(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (repo studentRepository) CreateCourse(ctx context.Context, c student.Course) (student.Course, error) {
	taken, err := exists(ctx, repo.db, qm.From(coursesTable), qm.Where("lower(code) = lower(?)", c.Code))
	if err != nil {
		return student.Course{}, errors.Wrap(err, "checking course code")
	}
	if taken {
		return student.Course{}, student.ErrCodeExists
	}

	if c.ID == "" {
		c.ID = core.NewID()
	}
	r := repo.boilCourse(c)
	if err = insert(ctx, repo.db, coursesTable, r); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return student.Course{}, student.ErrCodeExists
		}
		return student.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.unboilCourse(r), nil
}

func (repo studentRepository) QueryCourses(ctx context.Context, filter student.CourseFilter, ordering []core.DBOrdering) ([]student.Course, error) {
	mods := []qm.QueryMod{qm.From(coursesTable)}
	mods = append(mods, search(filter.Search, "code", "title", "description")...)
	mods = append(mods, eqID("instructor_id", filter.InstructorID)...)
	mods = append(mods, eqBool("is_active", filter.IsActive)...)
	mods = append(mods, in("id", filter.IDs)...)
	mods = append(mods, orderBy(ordering, "", map[string]string{"code": "lower(code)", "title": "lower(title)"}, "lower(code) ASC"))

	var rows []*courseRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	list := make([]student.Course, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilCourse(r))
	}
	return list, nil
}

func (repo studentRepository) GetCourse(ctx context.Context, id string) (student.Course, error) {
	r := new(courseRow)
	if err := findByID(ctx, repo.db, coursesTable, id, r); err != nil {
		return student.Course{}, trap(err, student.ErrCourseNotFound, "selecting course")
	}
	return repo.unboilCourse(r), nil
}

func (repo studentRepository) UpdateCourse(ctx context.Context, c student.Course) (student.Course, error) {
	r := repo.boilCourse(c)
	if err := update(ctx, repo.db, coursesTable, r); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return student.Course{}, student.ErrCodeExists
		}
		return student.Course{}, trap(err, student.ErrCourseNotFound, "updating course")
	}
	return repo.unboilCourse(r), nil
}

// DeleteCourse relies on the foreign keys to drop the enrollments, assignments and grades.
func (repo studentRepository) DeleteCourse(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, coursesTable, id), student.ErrCourseNotFound, "deleting course")
}

// Enrollments

func (repo studentRepository) unboilEnrollment(r *enrollmentRow) student.Enrollment {
	return student.Enrollment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		StudentID:   r.StudentID,
		Status:      r.Status,
		EnrolledAt:  r.EnrolledAt,
		CompletedAt: r.CompletedAt.Ptr(),
	}
}

func (repo studentRepository) boilEnrollment(e student.Enrollment) *enrollmentRow {
	return &enrollmentRow{
		ID:          e.ID,
		CourseID:    e.CourseID,
		StudentID:   e.StudentID,
		Status:      e.Status,
		EnrolledAt:  e.EnrolledAt.UTC(),
		CompletedAt: nullTimePtr(e.CompletedAt),
	}
}

func (repo studentRepository) CreateEnrollment(ctx context.Context, e student.Enrollment) (student.Enrollment, error) {
	if !core.IsValidID(e.CourseID) {
		return student.Enrollment{}, student.ErrCourseNotFound
	}
	if e.ID == "" {
		e.ID = core.NewID()
	}
	r := repo.boilEnrollment(e)
	if err := insert(ctx, repo.db, enrollmentsTable, r); err != nil {
		if _, ok := violatedConstraint(err); ok {
			return student.Enrollment{}, student.ErrAlreadyEnrolled
		}
		if violatesForeignKey(err) {
			return student.Enrollment{}, student.ErrCourseNotFound
		}
		return student.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.unboilEnrollment(r), nil
}

func (repo studentRepository) QueryEnrollments(ctx context.Context, filter student.EnrollmentFilter) ([]student.Enrollment, error) {
	mods := []qm.QueryMod{qm.From(enrollmentsTable)}
	mods = append(mods, eqID("course_id", filter.CourseID)...)
	mods = append(mods, eqID("student_id", filter.StudentID)...)
	mods = append(mods, eq("status", filter.Status)...)
	mods = append(mods, in("course_id", filter.CourseIDs)...)
	mods = append(mods, qm.OrderBy("enrolled_at DESC"))

	var rows []*enrollmentRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	list := make([]student.Enrollment, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilEnrollment(r))
	}
	return list, nil
}

func (repo studentRepository) GetEnrollment(ctx context.Context, id string) (student.Enrollment, error) {
	r := new(enrollmentRow)
	if err := findByID(ctx, repo.db, enrollmentsTable, id, r); err != nil {
		return student.Enrollment{}, trap(err, student.ErrEnrollmentNotFound, "selecting enrollment")
	}
	return repo.unboilEnrollment(r), nil
}

func (repo studentRepository) UpdateEnrollment(ctx context.Context, e student.Enrollment) (student.Enrollment, error) {
	r := repo.boilEnrollment(e)
	if err := update(ctx, repo.db, enrollmentsTable, r); err != nil {
		return student.Enrollment{}, trap(err, student.ErrEnrollmentNotFound, "updating enrollment")
	}
	return repo.unboilEnrollment(r), nil
}

// Assignments

func (repo studentRepository) unboilAssignment(r *courseAssignmentRow) student.Assignment {
	return student.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		DueAt:       r.DueAt,
		MaxScore:    r.MaxScore,
		CreatedAt:   r.CreatedAt,
	}
}

func (repo studentRepository) CreateAssignment(ctx context.Context, a student.Assignment) (student.Assignment, error) {
	if !core.IsValidID(a.CourseID) {
		return student.Assignment{}, student.ErrCourseNotFound
	}
	if a.ID == "" {
		a.ID = core.NewID()
	}
	r := &courseAssignmentRow{
		ID:          a.ID,
		CourseID:    a.CourseID,
		Title:       a.Title,
		Description: a.Description,
		DueAt:       a.DueAt.UTC(),
		MaxScore:    a.MaxScore,
		CreatedAt:   a.CreatedAt.UTC(),
	}
	if err := insert(ctx, repo.db, courseAssignmentsTable, r); err != nil {
		if violatesForeignKey(err) {
			return student.Assignment{}, student.ErrCourseNotFound
		}
		return student.Assignment{}, errors.Wrap(err, "inserting course assignment")
	}
	return repo.unboilAssignment(r), nil
}

func (repo studentRepository) QueryAssignments(ctx context.Context, filter student.AssignmentFilter) ([]student.Assignment, error) {
	mods := []qm.QueryMod{qm.From(courseAssignmentsTable)}
	mods = append(mods, eqID("course_id", filter.CourseID)...)
	mods = append(mods, in("course_id", filter.CourseIDs)...)
	mods = append(mods, qm.OrderBy("due_at ASC"))

	var rows []*courseAssignmentRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting course assignments")
	}
	list := make([]student.Assignment, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilAssignment(r))
	}
	return list, nil
}

func (repo studentRepository) GetAssignment(ctx context.Context, id string) (student.Assignment, error) {
	r := new(courseAssignmentRow)
	if err := findByID(ctx, repo.db, courseAssignmentsTable, id, r); err != nil {
		return student.Assignment{}, trap(err, student.ErrAssignmentNotFound, "selecting course assignment")
	}
	return repo.unboilAssignment(r), nil
}

// DeleteAssignment relies on the foreign key to drop the grades.
func (repo studentRepository) DeleteAssignment(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, courseAssignmentsTable, id), student.ErrAssignmentNotFound, "deleting course assignment")
}

// Grades

const upsertGradeQuery = `INSERT INTO grades (id, assignment_id, student_id, score, letter_grade, feedback, graded_by_id, graded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (assignment_id, student_id) DO UPDATE
SET score = EXCLUDED.score, letter_grade = EXCLUDED.letter_grade, feedback = EXCLUDED.feedback,
    graded_by_id = EXCLUDED.graded_by_id, graded_at = EXCLUDED.graded_at
RETURNING id`

func (repo studentRepository) UpsertGrade(ctx context.Context, g student.Grade) (student.Grade, error) {
	if !core.IsValidID(g.AssignmentID) {
		return student.Grade{}, student.ErrAssignmentNotFound
	}
	if g.ID == "" {
		g.ID = core.NewID()
	}
	g.GradedAt = g.GradedAt.UTC()

	q := queries.Raw(upsertGradeQuery, g.ID, g.AssignmentID, g.StudentID, g.Score, g.LetterGrade, g.Feedback,
		nullString(g.GradedByID), g.GradedAt)
	if err := q.QueryRowContext(ctx, repo.db).Scan(&g.ID); err != nil {
		if violatesForeignKey(err) {
			return student.Grade{}, student.ErrAssignmentNotFound
		}
		return student.Grade{}, errors.Wrap(err, "upserting grade")
	}
	return g, nil
}

func (repo studentRepository) QueryGrades(ctx context.Context, filter student.GradeFilter) ([]student.Grade, error) {
	mods := []qm.QueryMod{
		qm.Select("g.*"),
		qm.From(gradesTable + " g"),
	}
	mods = append(mods, eqID("g.assignment_id", filter.AssignmentID)...)
	mods = append(mods, eqID("g.student_id", filter.StudentID)...)
	if filter.CourseIDs != nil {
		mods = append(mods, qm.InnerJoin(courseAssignmentsTable+" ca ON ca.id = g.assignment_id"))
		mods = append(mods, in("ca.course_id", filter.CourseIDs)...)
	}
	mods = append(mods, qm.OrderBy("g.graded_at DESC"))

	var rows []*gradeRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	list := make([]student.Grade, 0, len(rows))
	for _, r := range rows {
		list = append(list, student.Grade{
			ID:           r.ID,
			AssignmentID: r.AssignmentID,
			StudentID:    r.StudentID,
			Score:        r.Score,
			LetterGrade:  r.LetterGrade,
			Feedback:     r.Feedback,
			GradedByID:   r.GradedByID.String,
			GradedAt:     r.GradedAt,
		})
	}
	return list, nil
}
