package boiledrepos

import (
	"context"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/araz"
)

const (
	arazTable            = "araz"
	arazCommentsTable    = "araz_comments"
	arazAssignmentsTable = "araz_assignments"
)

type arazRow struct {
	ID                string      `boil:"id"`
	PatientID         string      `boil:"patient_id"`
	PatientITSID      string      `boil:"patient_its_id"`
	PatientName       string      `boil:"patient_name"`
	Ailment           string      `boil:"ailment"`
	Symptoms          string      `boil:"symptoms"`
	Urgency           string      `boil:"urgency"`
	Status            string      `boil:"status"`
	PreferredDoctorID null.String `boil:"preferred_doctor_id"`
	MozeID            null.String `boil:"moze_id"`
	AppointmentAt     null.Time   `boil:"appointment_at"`
	CompletedAt       null.Time   `boil:"completed_at"`
	CreatedAt         time.Time   `boil:"created_at"`
	UpdatedAt         time.Time   `boil:"updated_at"`
	AssigneeID        string      `boil:"assignee_id"` // selected only
}

func (r *arazRow) columns() []string {
	return []string{"id", "patient_id", "patient_its_id", "patient_name", "ailment", "symptoms", "urgency", "status",
		"preferred_doctor_id", "moze_id", "appointment_at", "completed_at", "created_at", "updated_at"}
}

func (r *arazRow) values() []interface{} {
	return []interface{}{r.ID, r.PatientID, r.PatientITSID, r.PatientName, r.Ailment, r.Symptoms, r.Urgency, r.Status,
		r.PreferredDoctorID, r.MozeID, r.AppointmentAt, r.CompletedAt, r.CreatedAt, r.UpdatedAt}
}

type arazRepository struct {
	db core.DB
}

var _ araz.Repository = (*arazRepository)(nil) // interface compliance check

func NewArazRepository(db core.DB) *arazRepository {
	return &arazRepository{db: db}
}

func (repo arazRepository) boil(a araz.Araz) *arazRow {
	return &arazRow{
		ID:                a.ID,
		PatientID:         a.PatientID,
		PatientITSID:      a.PatientITSID,
		PatientName:       a.PatientName,
		Ailment:           a.Ailment,
		Symptoms:          a.Symptoms,
		Urgency:           a.Urgency,
		Status:            a.Status,
		PreferredDoctorID: nullString(a.PreferredDoctorID),
		MozeID:            nullString(a.MozeID),
		AppointmentAt:     nullTimePtr(a.AppointmentAt),
		CompletedAt:       nullTimePtr(a.CompletedAt),
		CreatedAt:         a.CreatedAt.UTC(),
		UpdatedAt:         a.UpdatedAt.UTC(),
		AssigneeID:        a.AssigneeID,
	}
}

func (repo arazRepository) unboil(r *arazRow) araz.Araz {
	return araz.Araz{
		ID:                r.ID,
		PatientID:         r.PatientID,
		PatientITSID:      r.PatientITSID,
		PatientName:       r.PatientName,
		Ailment:           r.Ailment,
		Symptoms:          r.Symptoms,
		Urgency:           r.Urgency,
		Status:            r.Status,
		PreferredDoctorID: r.PreferredDoctorID.String,
		AssigneeID:        r.AssigneeID,
		MozeID:            r.MozeID.String,
		AppointmentAt:     r.AppointmentAt.Ptr(),
		CompletedAt:       r.CompletedAt.Ptr(),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// selectAraz joins the active assignment to fill the assignee.
func selectAraz(mods ...qm.QueryMod) []qm.QueryMod {
	return append([]qm.QueryMod{
		qm.Select("a.*", "COALESCE(aa.assignee_id::text, '') AS assignee_id"),
		qm.From(arazTable + " a"),
		qm.LeftOuterJoin(arazAssignmentsTable + " aa ON aa.araz_id = a.id AND aa.is_active"),
	}, mods...)
}

func (repo arazRepository) CreateAraz(ctx context.Context, a araz.Araz) (araz.Araz, error) {
	if a.ID == "" {
		a.ID = core.NewID()
	}
	a.AssigneeID = ""
	r := repo.boil(a)
	if err := insert(ctx, repo.db, arazTable, r); err != nil {
		return araz.Araz{}, errors.Wrap(err, "inserting araz")
	}
	return repo.unboil(r), nil
}

func (repo arazRepository) QueryAraz(ctx context.Context, filter araz.QueryFilter, ordering []core.DBOrdering) ([]araz.Araz, error) {
	var mods []qm.QueryMod
	mods = append(mods, search(filter.Search, "a.ailment", "a.symptoms", "a.patient_name", "a.patient_its_id")...)
	mods = append(mods, oneOf("a.status", filter.Statuses)...)
	mods = append(mods, oneOf("a.urgency", filter.Urgencies)...)
	mods = append(mods, eqID("a.moze_id", filter.MozeID)...)
	mods = append(mods, eqID("aa.assignee_id", filter.AssigneeID)...)
	mods = append(mods, eqID("a.preferred_doctor_id", filter.PreferredDoctorID)...)
	mods = append(mods, eqID("a.patient_id", filter.PatientID)...)
	mods = append(mods, overdue("a.urgency", "a.status", "a.created_at", filter.Overdue, filter.Now)...)
	mods = append(mods, between("a.created_at", filter.CreatedFrom, filter.CreatedTo)...)
	mods = append(mods, scoped(filter.Scope, subjectColumns{
		creator:   "a.patient_id",
		moze:      "a.moze_id",
		assignee:  "aa.assignee_id",
		preferred: "a.preferred_doctor_id",
	})...)
	mods = append(mods, orderBy(ordering, "a.", map[string]string{
		"ailment": "lower(a.ailment)",
		"urgency": levelRank("a.urgency"),
	}, "a.created_at DESC"))

	var rows []*arazRow
	if err := newQuery(selectAraz(mods...)...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting araz")
	}
	list := make([]araz.Araz, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboil(r))
	}
	return list, nil
}

func (repo arazRepository) GetAraz(ctx context.Context, id string) (araz.Araz, error) {
	if !core.IsValidID(id) {
		return araz.Araz{}, araz.ErrNotFound
	}
	r := new(arazRow)
	if err := newQuery(selectAraz(qm.Where("a.id = ?", id))...).Bind(ctx, repo.db, r); err != nil {
		return araz.Araz{}, trap(err, araz.ErrNotFound, "selecting araz")
	}
	return repo.unboil(r), nil
}

func (repo arazRepository) UpdateAraz(ctx context.Context, a araz.Araz) (araz.Araz, error) {
	if err := update(ctx, repo.db, arazTable, repo.boil(a)); err != nil {
		return araz.Araz{}, trap(err, araz.ErrNotFound, "updating araz")
	}
	return repo.GetAraz(ctx, a.ID)
}

// DeleteAraz relies on the foreign keys to drop the comments and assignments.
func (repo arazRepository) DeleteAraz(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, arazTable, id), araz.ErrNotFound, "deleting araz")
}

// Comments

func (repo arazRepository) CreateComment(ctx context.Context, c araz.Comment) (araz.Comment, error) {
	if !core.IsValidID(c.ArazID) {
		return araz.Comment{}, araz.ErrNotFound
	}
	if c.ID == "" {
		c.ID = core.NewID()
	}
	c.CreatedAt = c.CreatedAt.UTC()
	r := &commentRow{
		ID:         c.ID,
		ParentID:   c.ArazID,
		AuthorID:   c.AuthorID,
		Content:    c.Content,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt,
	}
	if err := insert(ctx, repo.db, arazCommentsTable, r.as("araz_id")); err != nil {
		if violatesForeignKey(err) {
			return araz.Comment{}, araz.ErrNotFound
		}
		return araz.Comment{}, errors.Wrap(err, "inserting araz comment")
	}
	return c, nil
}

func (repo arazRepository) QueryComments(ctx context.Context, arazID string, includeInternal bool) ([]araz.Comment, error) {
	if !core.IsValidID(arazID) {
		return []araz.Comment{}, nil
	}
	mods := childSelect(arazCommentsTable, "araz_id", arazID, commentColumns, qm.OrderBy("created_at ASC"))
	if !includeInternal {
		mods = append(mods, qm.Where("NOT is_internal"))
	}

	var rows []*commentRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting araz comments")
	}
	comments := make([]araz.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, araz.Comment{
			ID:         r.ID,
			ArazID:     r.ParentID,
			AuthorID:   r.AuthorID,
			Content:    r.Content,
			IsInternal: r.IsInternal,
			CreatedAt:  r.CreatedAt,
		})
	}
	return comments, nil
}

// Assignments

func (repo arazRepository) Assign(ctx context.Context, a araz.Assignment) (araz.Assignment, error) {
	if !core.IsValidID(a.ArazID) {
		return araz.Assignment{}, araz.ErrNotFound
	}
	if a.ID == "" {
		a.ID = core.NewID()
	}
	a.IsActive = true
	a.CreatedAt = a.CreatedAt.UTC()
	r := &assignmentRow{
		ID:           a.ID,
		ParentID:     a.ArazID,
		AssigneeID:   a.AssigneeID,
		AssignedByID: nullString(a.AssignedByID),
		Notes:        a.Notes,
		IsActive:     true,
		CreatedAt:    a.CreatedAt,
	}
	if err := assign(ctx, repo.db, arazAssignmentsTable, "araz_id", r); err != nil {
		if violatesForeignKey(err) {
			return araz.Assignment{}, araz.ErrNotFound
		}
		return araz.Assignment{}, errors.Wrap(err, "assigning araz")
	}
	return a, nil
}

func (repo arazRepository) QueryAssignments(ctx context.Context, arazID string) ([]araz.Assignment, error) {
	if !core.IsValidID(arazID) {
		return []araz.Assignment{}, nil
	}

	var rows []*assignmentRow
	q := newQuery(childSelect(arazAssignmentsTable, "araz_id", arazID, assignmentColumns, qm.OrderBy("created_at DESC"))...)
	if err := q.Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting araz assignments")
	}
	list := make([]araz.Assignment, 0, len(rows))
	for _, r := range rows {
		list = append(list, araz.Assignment{
			ID:           r.ID,
			ArazID:       r.ParentID,
			AssigneeID:   r.AssigneeID,
			AssignedByID: r.AssignedByID.String,
			Notes:        r.Notes,
			IsActive:     r.IsActive,
			CreatedAt:    r.CreatedAt,
		})
	}
	return list, nil
}
