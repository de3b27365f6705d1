package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core/student"
	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

func Test_studentApi(t *testing.T) {
	app, stack := setup(t)
	c := newCommunity(t, stack)
	instructor := testutil.CreateUser(t, stack.UserRepo, "Dr Husain", "drhusain", "husain@test.local", "", user.RoleDoctor, true)
	stu1 := testutil.CreateUser(t, stack.UserRepo, "Student One", "student1", "student1@test.local", "", user.RoleStudent, true)
	stu2 := testutil.CreateUser(t, stack.UserRepo, "Student Two", "student2", "student2@test.local", "", user.RoleStudent, true)
	instructorToken := getToken(t, stack.Conf, instructor)
	stu1Token := getToken(t, stack.Conf, stu1)
	stu2Token := getToken(t, stack.Conf, stu2)

	rec := do(t, app, http.MethodPost, "/v1/students/courses", stu1Token, student.NewCourse{Code: "MED101", Title: "Anatomy"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, app, http.MethodPost, "/v1/students/courses", instructorToken, student.NewCourse{Code: "MED 101", Title: "Anatomy"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var course student.Course
	rec = do(t, app, http.MethodPost, "/v1/students/courses", instructorToken, student.NewCourse{Code: "MED101", Title: "Anatomy", Credits: 4}, &course)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, instructor.ID, course.InstructorID)
	assert.True(t, course.IsActive)

	rec = do(t, app, http.MethodPost, "/v1/students/courses", instructorToken, student.NewCourse{Code: "MED101", Title: "Anatomy II"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "course codes are unique")

	inactive := false
	var draft student.Course
	rec = do(t, app, http.MethodPost, "/v1/students/courses", instructorToken, student.NewCourse{Code: "MED102", Title: "Physiology", IsActive: &inactive}, &draft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("courses", func(t *testing.T) {
		var courses []student.Course
		do(t, app, http.MethodGet, "/v1/students/courses", stu1Token, nil, &courses)
		assert.Len(t, courses, 1, "inactive courses are hidden from students")
		do(t, app, http.MethodGet, "/v1/students/courses", instructorToken, nil, &courses)
		assert.Len(t, courses, 2)

		rec := do(t, app, http.MethodGet, "/v1/students/courses/"+draft.ID, stu1Token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	var enrollment student.Enrollment
	t.Run("enrollments", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, "/v1/students/enrollments", getToken(t, stack.Conf, c.member1), student.NewEnrollment{CourseID: course.ID}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "only students enroll")
		rec = do(t, app, http.MethodPost, "/v1/students/enrollments", stu1Token, student.NewEnrollment{CourseID: course.ID, StudentID: stu2.ID}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(t, app, http.MethodPost, "/v1/students/enrollments", stu1Token, student.NewEnrollment{CourseID: course.ID}, &enrollment)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, student.EnrollmentActive, enrollment.Status)

		rec = do(t, app, http.MethodPost, "/v1/students/enrollments", stu1Token, student.NewEnrollment{CourseID: course.ID}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = do(t, app, http.MethodPost, "/v1/students/enrollments", instructorToken, student.NewEnrollment{CourseID: course.ID, StudentID: stu2.ID}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var list []student.Enrollment
		do(t, app, http.MethodGet, "/v1/students/enrollments", stu1Token, nil, &list)
		assert.Len(t, list, 1)
		do(t, app, http.MethodGet, "/v1/students/enrollments?course_id="+course.ID, instructorToken, nil, &list)
		assert.Len(t, list, 2)
	})

	var assignment student.Assignment
	t.Run("coursework", func(t *testing.T) {
		na := student.NewAssignment{CourseID: course.ID, Title: "Skeleton quiz", DueAt: time.Now().Add(72 * time.Hour), MaxScore: 20}
		rec := do(t, app, http.MethodPost, "/v1/students/assignments", stu1Token, na, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(t, app, http.MethodPost, "/v1/students/assignments", instructorToken, na, &assignment)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var list []student.Assignment
		do(t, app, http.MethodGet, "/v1/students/assignments", stu1Token, nil, &list)
		assert.Len(t, list, 1)
		do(t, app, http.MethodGet, "/v1/students/assignments", getToken(t, stack.Conf, c.member2), nil, &list)
		assert.Len(t, list, 0)
	})

	t.Run("grades", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, "/v1/students/grades", instructorToken, student.NewGrade{AssignmentID: assignment.ID, StudentID: stu1.ID, Score: 21}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "scores are bounded")
		rec = do(t, app, http.MethodPost, "/v1/students/grades", stu1Token, student.NewGrade{AssignmentID: assignment.ID, StudentID: stu1.ID, Score: 20}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var g student.Grade
		rec = do(t, app, http.MethodPost, "/v1/students/grades", instructorToken, student.NewGrade{AssignmentID: assignment.ID, StudentID: stu1.ID, Score: 15}, &g)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "C", g.LetterGrade)

		rec = do(t, app, http.MethodPost, "/v1/students/grades", instructorToken, student.NewGrade{AssignmentID: assignment.ID, StudentID: stu1.ID, Score: 19, Feedback: "Regraded"}, &g)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "A", g.LetterGrade)

		var grades []student.Grade
		do(t, app, http.MethodGet, "/v1/students/grades", stu1Token, nil, &grades)
		require.Len(t, grades, 1, "a regrade replaces the previous grade")
		assert.Equal(t, 19.0, grades[0].Score)
		do(t, app, http.MethodGet, "/v1/students/grades", stu2Token, nil, &grades)
		assert.Len(t, grades, 0)
	})

	t.Run("drop", func(t *testing.T) {
		rec := do(t, app, http.MethodPut, "/v1/students/enrollments/"+enrollment.ID, stu1Token, student.EnrollmentUpdate{Status: student.EnrollmentCompleted}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, app, http.MethodPut, "/v1/students/enrollments/"+enrollment.ID, stu2Token, student.EnrollmentUpdate{Status: student.EnrollmentDropped}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var e student.Enrollment
		rec = do(t, app, http.MethodPut, "/v1/students/enrollments/"+enrollment.ID, stu1Token, student.EnrollmentUpdate{Status: student.EnrollmentDropped}, &e)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, student.EnrollmentDropped, e.Status)

		rec = do(t, app, http.MethodPost, "/v1/students/grades", instructorToken, student.NewGrade{AssignmentID: assignment.ID, StudentID: stu1.ID, Score: 10}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "dropped students are not graded")
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, "/v1/students/assignments/"+assignment.ID, stu1Token, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, app, http.MethodDelete, "/v1/students/assignments/"+assignment.ID, instructorToken, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(t, app, http.MethodDelete, "/v1/students/courses/"+draft.ID, instructorToken, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
