package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/petition"
)

const (
	petitionCategoriesTable  = "petition_categories"
	petitionsTable           = "petitions"
	petitionCommentsTable    = "petition_comments"
	petitionAssignmentsTable = "petition_assignments"
	petitionAttachmentsTable = "petition_attachments"

	petitionAssigneeExpr = "COALESCE(pa.assignee_id::text, '')"
)

type (
	categoryRow struct {
		ID          string    `boil:"id"`
		Name        string    `boil:"name"`
		Description string    `boil:"description"`
		IsActive    bool      `boil:"is_active"`
		CreatedAt   time.Time `boil:"created_at"`
	}

	petitionRow struct {
		ID          string      `boil:"id"`
		Title       string      `boil:"title"`
		Description string      `boil:"description"`
		CategoryID  null.String `boil:"category_id"`
		Status      string      `boil:"status"`
		Priority    string      `boil:"priority"`
		CreatorID   string      `boil:"creator_id"`
		MozeID      null.String `boil:"moze_id"`
		IsAnonymous bool        `boil:"is_anonymous"`
		ResolvedAt  null.Time   `boil:"resolved_at"`
		CreatedAt   time.Time   `boil:"created_at"`
		UpdatedAt   time.Time   `boil:"updated_at"`
		AssigneeID  string      `boil:"assignee_id"` // selected only
	}

	commentRow struct {
		ID         string    `boil:"id"`
		ParentID   string    `boil:"parent_id"`
		AuthorID   string    `boil:"author_id"`
		Content    string    `boil:"content"`
		IsInternal bool      `boil:"is_internal"`
		CreatedAt  time.Time `boil:"created_at"`
	}

	assignmentRow struct {
		ID           string      `boil:"id"`
		ParentID     string      `boil:"parent_id"`
		AssigneeID   string      `boil:"assignee_id"`
		AssignedByID null.String `boil:"assigned_by_id"`
		Notes        string      `boil:"notes"`
		IsActive     bool        `boil:"is_active"`
		CreatedAt    time.Time   `boil:"created_at"`
	}

	attachmentRow struct {
		ID           string      `boil:"id"`
		PetitionID   string      `boil:"petition_id"`
		UploadedByID null.String `boil:"uploaded_by_id"`
		Filename     string      `boil:"filename"`
		ContentType  string      `boil:"content_type"`
		Size         int64       `boil:"size"`
		Key          string      `boil:"key"`
		CreatedAt    time.Time   `boil:"created_at"`
	}
)

func (r *categoryRow) columns() []string {
	return []string{"id", "name", "description", "is_active", "created_at"}
}

func (r *categoryRow) values() []interface{} {
	return []interface{}{r.ID, r.Name, r.Description, r.IsActive, r.CreatedAt}
}

func (r *petitionRow) columns() []string {
	return []string{"id", "title", "description", "category_id", "status", "priority", "creator_id", "moze_id",
		"is_anonymous", "resolved_at", "created_at", "updated_at"}
}

func (r *petitionRow) values() []interface{} {
	return []interface{}{r.ID, r.Title, r.Description, r.CategoryID, r.Status, r.Priority, r.CreatorID, r.MozeID,
		r.IsAnonymous, r.ResolvedAt, r.CreatedAt, r.UpdatedAt}
}

// comments and assignments are shared by petitions and araz; parent names the owning column.
type childRow struct {
	cols []string
	vals []interface{}
}

func (r childRow) columns() []string     { return r.cols }
func (r childRow) values() []interface{} { return r.vals }

func (r *commentRow) as(parent string) childRow {
	return childRow{
		cols: []string{"id", parent, "author_id", "content", "is_internal", "created_at"},
		vals: []interface{}{r.ID, r.ParentID, r.AuthorID, r.Content, r.IsInternal, r.CreatedAt},
	}
}

func (r *assignmentRow) as(parent string) childRow {
	return childRow{
		cols: []string{"id", parent, "assignee_id", "assigned_by_id", "notes", "is_active", "created_at"},
		vals: []interface{}{r.ID, r.ParentID, r.AssigneeID, r.AssignedByID, r.Notes, r.IsActive, r.CreatedAt},
	}
}

var (
	commentColumns    = []string{"id", "author_id", "content", "is_internal", "created_at"}
	assignmentColumns = []string{"id", "assignee_id", "assigned_by_id", "notes", "is_active", "created_at"}
)

// childSelect selects cols of the rows of a comments or assignments table, aliasing parent as parent_id.
func childSelect(table, parent, parentID string, cols []string, mods ...qm.QueryMod) []qm.QueryMod {
	return append([]qm.QueryMod{
		qm.Select(append([]string{parent + " AS parent_id"}, cols...)...),
		qm.From(table),
		qm.Where(parent+" = ?", parentID),
	}, mods...)
}

func (r *attachmentRow) columns() []string {
	return []string{"id", "petition_id", "uploaded_by_id", "filename", "content_type", "size", "key", "created_at"}
}

func (r *attachmentRow) values() []interface{} {
	return []interface{}{r.ID, r.PetitionID, r.UploadedByID, r.Filename, r.ContentType, r.Size, r.Key, r.CreatedAt}
}

type petitionRepository struct {
	db core.DB
}

var _ petition.Repository = (*petitionRepository)(nil) // interface compliance check

func NewPetitionRepository(db core.DB) *petitionRepository {
	return &petitionRepository{db: db}
}

// Categories

func (repo petitionRepository) boilCategory(cat petition.Category) *categoryRow {
	return &categoryRow{
		ID:          cat.ID,
		Name:        cat.Name,
		Description: cat.Description,
		IsActive:    cat.IsActive,
		CreatedAt:   cat.CreatedAt.UTC(),
	}
}

func (repo petitionRepository) unboilCategory(c *categoryRow) petition.Category {
	return petition.Category{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
	}
}

func (repo petitionRepository) CreateCategory(ctx context.Context, cat petition.Category) (petition.Category, error) {
	if cat.ID == "" {
		cat.ID = core.NewID()
	}
	c := repo.boilCategory(cat)
	if err := insert(ctx, repo.db, petitionCategoriesTable, c); err != nil {
		return petition.Category{}, errors.Wrap(err, "inserting petition category")
	}
	return repo.unboilCategory(c), nil
}

func (repo petitionRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]petition.Category, error) {
	mods := []qm.QueryMod{qm.From(petitionCategoriesTable), qm.OrderBy("lower(name) ASC")}
	if activeOnly {
		mods = append(mods, qm.Where("is_active"))
	}

	var rows []*categoryRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting petition categories")
	}
	cats := make([]petition.Category, 0, len(rows))
	for _, c := range rows {
		cats = append(cats, repo.unboilCategory(c))
	}
	return cats, nil
}

func (repo petitionRepository) GetCategory(ctx context.Context, id string) (petition.Category, error) {
	c := new(categoryRow)
	if err := findByID(ctx, repo.db, petitionCategoriesTable, id, c); err != nil {
		return petition.Category{}, trap(err, petition.ErrCategoryNotFound, "selecting petition category")
	}
	return repo.unboilCategory(c), nil
}

func (repo petitionRepository) UpdateCategory(ctx context.Context, cat petition.Category) (petition.Category, error) {
	c := repo.boilCategory(cat)
	if err := update(ctx, repo.db, petitionCategoriesTable, c); err != nil {
		return petition.Category{}, trap(err, petition.ErrCategoryNotFound, "updating petition category")
	}
	return repo.unboilCategory(c), nil
}

// DeleteCategory relies on the foreign key to detach the petitions of the category.
func (repo petitionRepository) DeleteCategory(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, petitionCategoriesTable, id), petition.ErrCategoryNotFound, "deleting petition category")
}

// Petitions

func (repo petitionRepository) boil(p petition.Petition) *petitionRow {
	return &petitionRow{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		CategoryID:  nullString(p.CategoryID),
		Status:      p.Status,
		Priority:    p.Priority,
		CreatorID:   p.CreatorID,
		MozeID:      nullString(p.MozeID),
		IsAnonymous: p.IsAnonymous,
		ResolvedAt:  nullTimePtr(p.ResolvedAt),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
		AssigneeID:  p.AssigneeID,
	}
}

func (repo petitionRepository) unboil(r *petitionRow) petition.Petition {
	return petition.Petition{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		CategoryID:  r.CategoryID.String,
		Status:      r.Status,
		Priority:    r.Priority,
		CreatorID:   r.CreatorID,
		MozeID:      r.MozeID.String,
		IsAnonymous: r.IsAnonymous,
		AssigneeID:  r.AssigneeID,
		ResolvedAt:  r.ResolvedAt.Ptr(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// selectPetitions joins the active assignment to fill the assignee.
func selectPetitions(mods ...qm.QueryMod) []qm.QueryMod {
	return append([]qm.QueryMod{
		qm.Select("p.*", petitionAssigneeExpr+" AS assignee_id"),
		qm.From(petitionsTable + " p"),
		qm.LeftOuterJoin(petitionAssignmentsTable + " pa ON pa.petition_id = p.id AND pa.is_active"),
	}, mods...)
}

func (repo petitionRepository) getPetition(ctx context.Context, exec boil.Executor, id string) (petition.Petition, error) {
	if !core.IsValidID(id) {
		return petition.Petition{}, petition.ErrNotFound
	}
	r := new(petitionRow)
	if err := newQuery(selectPetitions(qm.Where("p.id = ?", id))...).Bind(ctx, exec, r); err != nil {
		return petition.Petition{}, trap(err, petition.ErrNotFound, "selecting petition")
	}
	return repo.unboil(r), nil
}

func (repo petitionRepository) CreatePetition(ctx context.Context, p petition.Petition) (petition.Petition, error) {
	if p.ID == "" {
		p.ID = core.NewID()
	}
	p.AssigneeID = ""
	r := repo.boil(p)
	if err := insert(ctx, repo.db, petitionsTable, r); err != nil {
		return petition.Petition{}, errors.Wrap(err, "inserting petition")
	}
	return repo.unboil(r), nil
}

func (repo petitionRepository) QueryPetitions(ctx context.Context, filter petition.QueryFilter, ordering []core.DBOrdering) ([]petition.Petition, error) {
	var mods []qm.QueryMod
	mods = append(mods, search(filter.Search, "p.title", "p.description")...)
	mods = append(mods, oneOf("p.status", filter.Statuses)...)
	mods = append(mods, oneOf("p.priority", filter.Priorities)...)
	mods = append(mods, eqID("p.category_id", filter.CategoryID)...)
	mods = append(mods, eqID("p.moze_id", filter.MozeID)...)
	mods = append(mods, eqID("pa.assignee_id", filter.AssigneeID)...)
	mods = append(mods, eqID("p.creator_id", filter.CreatorID)...)
	if filter.HideAnonymous {
		mods = append(mods, qm.Where("NOT p.is_anonymous"))
	}
	mods = append(mods, overdue("p.priority", "p.status", "p.created_at", filter.Overdue, filter.Now)...)
	if filter.Unassigned {
		mods = append(mods, qm.Where("pa.assignee_id IS NULL"))
	}
	mods = append(mods, between("p.created_at", filter.CreatedFrom, filter.CreatedTo)...)
	mods = append(mods, scoped(filter.Scope, subjectColumns{
		creator:  "p.creator_id",
		moze:     "p.moze_id",
		assignee: "pa.assignee_id",
	})...)
	mods = append(mods, orderBy(ordering, "p.", map[string]string{
		"title":    "lower(p.title)",
		"priority": levelRank("p.priority"),
	}, "p.created_at DESC"))

	var rows []*petitionRow
	if err := newQuery(selectPetitions(mods...)...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting petitions")
	}
	petitions := make([]petition.Petition, 0, len(rows))
	for _, r := range rows {
		petitions = append(petitions, repo.unboil(r))
	}
	return petitions, nil
}

func (repo petitionRepository) GetPetition(ctx context.Context, id string) (petition.Petition, error) {
	return repo.getPetition(ctx, repo.db, id)
}

func (repo petitionRepository) UpdatePetition(ctx context.Context, p petition.Petition) (petition.Petition, error) {
	if err := update(ctx, repo.db, petitionsTable, repo.boil(p)); err != nil {
		return petition.Petition{}, trap(err, petition.ErrNotFound, "updating petition")
	}
	return repo.getPetition(ctx, repo.db, p.ID)
}

// DeletePetition relies on the foreign keys to drop the comments, assignments and attachments.
func (repo petitionRepository) DeletePetition(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, petitionsTable, id), petition.ErrNotFound, "deleting petition")
}

// Comments

func (repo petitionRepository) CreateComment(ctx context.Context, c petition.Comment) (petition.Comment, error) {
	if !core.IsValidID(c.PetitionID) {
		return petition.Comment{}, petition.ErrNotFound
	}
	if c.ID == "" {
		c.ID = core.NewID()
	}
	r := &commentRow{
		ID:         c.ID,
		ParentID:   c.PetitionID,
		AuthorID:   c.AuthorID,
		Content:    c.Content,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt.UTC(),
	}
	if err := insert(ctx, repo.db, petitionCommentsTable, r.as("petition_id")); err != nil {
		if violatesForeignKey(err) {
			return petition.Comment{}, petition.ErrNotFound
		}
		return petition.Comment{}, errors.Wrap(err, "inserting petition comment")
	}
	c.CreatedAt = r.CreatedAt
	return c, nil
}

func (repo petitionRepository) QueryComments(ctx context.Context, petitionID string, includeInternal bool) ([]petition.Comment, error) {
	if !core.IsValidID(petitionID) {
		return []petition.Comment{}, nil
	}
	mods := childSelect(petitionCommentsTable, "petition_id", petitionID, commentColumns, qm.OrderBy("created_at ASC"))
	if !includeInternal {
		mods = append(mods, qm.Where("NOT is_internal"))
	}

	var rows []*commentRow
	if err := newQuery(mods...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting petition comments")
	}
	comments := make([]petition.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, petition.Comment{
			ID:         r.ID,
			PetitionID: r.ParentID,
			AuthorID:   r.AuthorID,
			Content:    r.Content,
			IsInternal: r.IsInternal,
			CreatedAt:  r.CreatedAt,
		})
	}
	return comments, nil
}

// Assignments

// assign deactivates the active assignment of parentID in table and inserts r, in a transaction.
// A concurrent assignment of the same parent trips the partial unique index and yields a conflict.
func assign(ctx context.Context, db core.DB, table, parent string, r *assignmentRow) error {
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		deactivate := "UPDATE " + table + " SET is_active = false WHERE " + parent + " = $1 AND is_active"
		if _, err := queries.Raw(deactivate, r.ParentID).ExecContext(ctx, tx); err != nil {
			return errors.Wrap(err, "deactivating assignments")
		}
		return insert(ctx, tx, table, r.as(parent))
	})
	if _, ok := violatedConstraint(err); ok {
		return core.NewConflictError("assignment changed concurrently, retry")
	}
	return err
}

func (repo petitionRepository) Assign(ctx context.Context, a petition.Assignment) (petition.Assignment, error) {
	if !core.IsValidID(a.PetitionID) {
		return petition.Assignment{}, petition.ErrNotFound
	}
	if a.ID == "" {
		a.ID = core.NewID()
	}
	a.IsActive = true
	r := &assignmentRow{
		ID:           a.ID,
		ParentID:     a.PetitionID,
		AssigneeID:   a.AssigneeID,
		AssignedByID: nullString(a.AssignedByID),
		Notes:        a.Notes,
		IsActive:     true,
		CreatedAt:    a.CreatedAt.UTC(),
	}
	if err := assign(ctx, repo.db, petitionAssignmentsTable, "petition_id", r); err != nil {
		if violatesForeignKey(err) {
			return petition.Assignment{}, petition.ErrNotFound
		}
		return petition.Assignment{}, errors.Wrap(err, "assigning petition")
	}
	a.CreatedAt = r.CreatedAt
	return a, nil
}

func (repo petitionRepository) QueryAssignments(ctx context.Context, petitionID string) ([]petition.Assignment, error) {
	if !core.IsValidID(petitionID) {
		return []petition.Assignment{}, nil
	}

	var rows []*assignmentRow
	q := newQuery(childSelect(petitionAssignmentsTable, "petition_id", petitionID, assignmentColumns, qm.OrderBy("created_at DESC"))...)
	if err := q.Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting petition assignments")
	}
	list := make([]petition.Assignment, 0, len(rows))
	for _, r := range rows {
		list = append(list, petition.Assignment{
			ID:           r.ID,
			PetitionID:   r.ParentID,
			AssigneeID:   r.AssigneeID,
			AssignedByID: r.AssignedByID.String,
			Notes:        r.Notes,
			IsActive:     r.IsActive,
			CreatedAt:    r.CreatedAt,
		})
	}
	return list, nil
}

// Attachments

func (repo petitionRepository) unboilAttachment(r *attachmentRow) petition.Attachment {
	return petition.Attachment{
		ID:           r.ID,
		PetitionID:   r.PetitionID,
		UploadedByID: r.UploadedByID.String,
		Filename:     r.Filename,
		ContentType:  r.ContentType,
		Size:         r.Size,
		Key:          r.Key,
		CreatedAt:    r.CreatedAt,
	}
}

func (repo petitionRepository) CreateAttachment(ctx context.Context, at petition.Attachment) (petition.Attachment, error) {
	if !core.IsValidID(at.PetitionID) {
		return petition.Attachment{}, petition.ErrNotFound
	}
	if at.ID == "" {
		at.ID = core.NewID()
	}
	r := &attachmentRow{
		ID:           at.ID,
		PetitionID:   at.PetitionID,
		UploadedByID: nullString(at.UploadedByID),
		Filename:     at.Filename,
		ContentType:  at.ContentType,
		Size:         at.Size,
		Key:          at.Key,
		CreatedAt:    at.CreatedAt.UTC(),
	}
	if err := insert(ctx, repo.db, petitionAttachmentsTable, r); err != nil {
		if violatesForeignKey(err) {
			return petition.Attachment{}, petition.ErrNotFound
		}
		return petition.Attachment{}, errors.Wrap(err, "inserting petition attachment")
	}
	return repo.unboilAttachment(r), nil
}

func (repo petitionRepository) QueryAttachments(ctx context.Context, petitionID string) ([]petition.Attachment, error) {
	if !core.IsValidID(petitionID) {
		return []petition.Attachment{}, nil
	}

	var rows []*attachmentRow
	q := newQuery(qm.From(petitionAttachmentsTable), qm.Where("petition_id = ?", petitionID), qm.OrderBy("created_at ASC"))
	if err := q.Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting petition attachments")
	}
	list := make([]petition.Attachment, 0, len(rows))
	for _, r := range rows {
		list = append(list, repo.unboilAttachment(r))
	}
	return list, nil
}

func (repo petitionRepository) GetAttachment(ctx context.Context, id string) (petition.Attachment, error) {
	r := new(attachmentRow)
	if err := findByID(ctx, repo.db, petitionAttachmentsTable, id, r); err != nil {
		return petition.Attachment{}, trap(err, petition.ErrAttachmentNotFound, "selecting petition attachment")
	}
	return repo.unboilAttachment(r), nil
}

func (repo petitionRepository) DeleteAttachment(ctx context.Context, id string) error {
	return trap(deleteByID(ctx, repo.db, petitionAttachmentsTable, id), petition.ErrAttachmentNotFound, "deleting petition attachment")
}
