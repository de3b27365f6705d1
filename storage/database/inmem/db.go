// Package inmemdb keeps every repository in process memory. It backs the test suites and `database.in_memory`.
package inmemdb

import (
	"cmp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/araz"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/evaluation"
	"github.com/umoorsehhat/sehhat/core/medical"
	"github.com/umoorsehhat/sehhat/core/moze"
	"github.com/umoorsehhat/sehhat/core/notification"
	"github.com/umoorsehhat/sehhat/core/petition"
	"github.com/umoorsehhat/sehhat/core/policy"
	"github.com/umoorsehhat/sehhat/core/student"
	"github.com/umoorsehhat/sehhat/core/user"
)

type (
	DB struct {
		user         *userTable
		audit        *auditTable
		moze         *mozeTable
		notification *notificationTable
		petition     *petitionTables
		araz         *arazTables
		evaluation   *evaluationTables
		medical      *medicalTables
		student      *studentTables
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	auditTable struct {
		mutex sync.RWMutex
		table []audit.Entry
	}

	mozeTable struct {
		mutex sync.RWMutex
		table map[string]*moze.Moze
	}

	notificationTable struct {
		mutex sync.RWMutex
		table map[string]*notification.Notification
	}

	// petitionTables share one lock: petitions derive their assignee from the assignments.
	petitionTables struct {
		mutex       sync.RWMutex
		categories  map[string]*petition.Category
		petitions   map[string]*petition.Petition
		comments    map[string]*petition.Comment
		assignments map[string]*petition.Assignment
		attachments map[string]*petition.Attachment
	}

	arazTables struct {
		mutex       sync.RWMutex
		araz        map[string]*araz.Araz
		comments    map[string]*araz.Comment
		assignments map[string]*araz.Assignment
	}

	evaluationTables struct {
		mutex       sync.RWMutex
		forms       map[string]*evaluation.Form
		submissions map[string]*evaluation.Submission
	}

	medicalTables struct {
		mutex     sync.RWMutex
		hospitals map[string]*medical.Hospital
		doctors   map[string]*medical.Doctor
		patients  map[string]*medical.Patient
	}

	studentTables struct {
		mutex       sync.RWMutex
		courses     map[string]*student.Course
		enrollments map[string]*student.Enrollment
		assignments map[string]*student.Assignment
		grades      map[string]*student.Grade
	}
)

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		audit:        &auditTable{},
		moze:         &mozeTable{table: make(map[string]*moze.Moze)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		petition: &petitionTables{
			categories:  make(map[string]*petition.Category),
			petitions:   make(map[string]*petition.Petition),
			comments:    make(map[string]*petition.Comment),
			assignments: make(map[string]*petition.Assignment),
			attachments: make(map[string]*petition.Attachment),
		},
		araz: &arazTables{
			araz:        make(map[string]*araz.Araz),
			comments:    make(map[string]*araz.Comment),
			assignments: make(map[string]*araz.Assignment),
		},
		evaluation: &evaluationTables{
			forms:       make(map[string]*evaluation.Form),
			submissions: make(map[string]*evaluation.Submission),
		},
		medical: &medicalTables{
			hospitals: make(map[string]*medical.Hospital),
			doctors:   make(map[string]*medical.Doctor),
			patients:  make(map[string]*medical.Patient),
		},
		student: &studentTables{
			courses:     make(map[string]*student.Course),
			enrollments: make(map[string]*student.Enrollment),
			assignments: make(map[string]*student.Assignment),
			grades:      make(map[string]*student.Grade),
		},
	}
}

// rows copies the values of table.
func rows[T any](table map[string]*T) []T {
	list := make([]T, 0, len(table))
	for _, row := range table {
		list = append(list, *row)
	}
	return list
}

func ensureID(id string) string {
	if id == "" {
		return core.NewID()
	}
	return id
}

// matches reports whether search is found, case-insensitively, in any of fields.
func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

// within reports whether t is in [from, to]; zero bounds are open.
func within(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// orderBy sorts items by ordering, or by defaults when ordering is empty.
// value returns the value of a field: string, int, float64, bool, time.Time or *time.Time.
func orderBy[T any](items []T, ordering, defaults []core.DBOrdering, value func(item T, field string) interface{}) {
	if len(ordering) == 0 {
		ordering = defaults
	}
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(value(items[i], ord.Field), value(items[j], ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compare(a, b interface{}) int {
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return strings.Compare(strings.ToLower(x), strings.ToLower(y))
	case int:
		y, _ := b.(int)
		return cmp.Compare(x, y)
	case float64:
		y, _ := b.(float64)
		return cmp.Compare(x, y)
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	case *time.Time:
		y, _ := b.(*time.Time)
		switch {
		case x == nil && y == nil:
			return 0
		case x == nil:
			return -1
		case y == nil:
			return 1
		default:
			return x.Compare(*y)
		}
	}
	return 0
}

var newestFirst = []core.DBOrdering{{Field: "created_at", Ascending: false}}

// levelRank orders priorities and urgencies from the least to the most pressing.
var levelRank = map[string]int{
	policy.LevelLow:       1,
	policy.LevelMedium:    2,
	policy.LevelHigh:      3,
	policy.LevelUrgent:    4,
	policy.LevelEmergency: 5,
}

// getRow, replaceRow and deleteRow expect the caller to hold the lock of table.

func getRow[T any](table map[string]*T, id string, notFound error) (T, error) {
	if row, ok := table[id]; ok {
		return *row, nil
	}
	var zero T
	return zero, notFound
}

func replaceRow[T any](table map[string]*T, id string, row T, notFound error) (T, error) {
	if _, ok := table[id]; !ok {
		var zero T
		return zero, notFound
	}
	table[id] = &row
	return row, nil
}

func deleteRow[T any](table map[string]*T, id string, notFound error) error {
	if _, ok := table[id]; !ok {
		return notFound
	}
	delete(table, id)
	return nil
}
