// Package petition handles the grievances and requests the community files with its mozes.
package petition

import (
	"context"
	"fmt"
	"io"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
	"github.com/umoorsehhat/sehhat/core/moze"
	"github.com/umoorsehhat/sehhat/core/notification"
	"github.com/umoorsehhat/sehhat/core/policy"
	"github.com/umoorsehhat/sehhat/core/user"
)

const (
	entityType         = "petition"
	categoryEntityType = "petition_category"

	// MaxAttachmentSize bounds a single uploaded file.
	MaxAttachmentSize = 10 << 20
)

var (
	ErrNotFound           = core.NewNotFoundError("petition")
	ErrCategoryNotFound   = core.NewNotFoundError("petition category")
	ErrAttachmentNotFound = core.NewNotFoundError("attachment")
	ErrInvalidTransition  = errors.New("status transition not allowed")
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		QueryCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		CreatePetition(ctx context.Context, p Petition) (Petition, error)
		// QueryPetitions applies QueryFilter.Scope and the other non-empty filters; Overdue is judged at QueryFilter.Now.
		// Petition.AssigneeID is filled from the active assignment.
		QueryPetitions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Petition, error)
		GetPetition(ctx context.Context, id string) (Petition, error)
		UpdatePetition(ctx context.Context, p Petition) (Petition, error)
		DeletePetition(ctx context.Context, id string) error

		CreateComment(ctx context.Context, c Comment) (Comment, error)
		QueryComments(ctx context.Context, petitionID string, includeInternal bool) ([]Comment, error)

		// Assign deactivates every active assignment of the petition and inserts a, atomically.
		Assign(ctx context.Context, a Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, petitionID string) ([]Assignment, error)

		CreateAttachment(ctx context.Context, at Attachment) (Attachment, error)
		QueryAttachments(ctx context.Context, petitionID string) ([]Attachment, error)
		GetAttachment(ctx context.Context, id string) (Attachment, error)
		DeleteAttachment(ctx context.Context, id string) error
	}

	// AttachmentStore keeps the content of the attachments.
	AttachmentStore interface {
		Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}

	Service struct {
		repo     Repository
		store    AttachmentStore
		users    *user.Service
		mozes    *moze.Service
		notifier *notification.Service
		auditor  audit.Recorder
	}
)

func NewService(
	repo Repository,
	store AttachmentStore,
	users *user.Service,
	mozes *moze.Service,
	notifier *notification.Service,
	auditor audit.Recorder,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mozes, "mozes"),
		vala.IsNotNil(notifier, "notifier"),
		vala.IsNotNil(auditor, "auditor"),
	).CheckAndPanic()

	return &Service{repo: repo, store: store, users: users, mozes: mozes, notifier: notifier, auditor: auditor}
}

// CanManage reports whether viewer handles p: admins, managers of its moze and its assignee.
func CanManage(viewer policy.Viewer, p Petition) bool {
	if viewer.IsAdmin {
		return true
	}
	if p.AssigneeID != "" && p.AssigneeID == viewer.UserID {
		return true
	}
	return p.MozeID != "" && lo.Contains(viewer.MozeIDs, p.MozeID)
}

// Categories

func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	cat := Category{
		ID:          core.NewID(),
		Name:        nc.Name,
		Description: nc.Description,
		IsActive:    nc.IsActive == nil || *nc.IsActive,
		CreatedAt:   core.NowFunc(),
	}
	cat, err := svc.repo.CreateCategory(ctx, cat)
	if err != nil {
		return Category{}, errors.Wrap(err, "creating category")
	}
	return cat, svc.record(ctx, audit.ActionCreate, categoryEntityType, cat.ID, nil)
}

func (svc *Service) Categories(ctx context.Context, activeOnly bool) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, activeOnly)
}

func (svc *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategory(ctx, id)
}

func (svc *Service) UpdateCategory(ctx context.Context, cat Category, nc NewCategory) (Category, error) {
	cat.Name = nc.Name
	cat.Description = nc.Description
	if nc.IsActive != nil {
		cat.IsActive = *nc.IsActive
	}
	cat, err := svc.repo.UpdateCategory(ctx, cat)
	if err != nil {
		return Category{}, errors.Wrap(err, "updating category")
	}
	return cat, svc.record(ctx, audit.ActionUpdate, categoryEntityType, cat.ID, nil)
}

func (svc *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := svc.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	return svc.record(ctx, audit.ActionDelete, categoryEntityType, id, nil)
}

// Petitions

func (svc *Service) checkRelations(ctx context.Context, categoryID, mozeID string) error {
	if categoryID != "" {
		if _, err := svc.repo.GetCategory(ctx, categoryID); err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(err, core.FieldError{Field: "category_id", Error: err.Error()})
			}
			return err
		}
	}
	if mozeID != "" {
		if _, err := svc.mozes.Get(ctx, mozeID); err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(err, core.FieldError{Field: "moze_id", Error: err.Error()})
			}
			return err
		}
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, creator user.User, np NewPetition) (Petition, error) {
	if np.MozeID == "" {
		np.MozeID = creator.MozeID
	}
	if err := svc.checkRelations(ctx, np.CategoryID, np.MozeID); err != nil {
		return Petition{}, err
	}

	now := core.NowFunc()
	p, err := svc.repo.CreatePetition(ctx, Petition{
		ID:          core.NewID(),
		Title:       np.Title,
		Description: np.Description,
		CategoryID:  np.CategoryID,
		Status:      StatusPending,
		Priority:    np.Priority,
		CreatorID:   creator.ID,
		MozeID:      np.MozeID,
		IsAnonymous: np.IsAnonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Petition{}, errors.Wrap(err, "creating petition")
	}
	return svc.present(policy.Viewer{UserID: creator.ID}, p), svc.record(ctx, audit.ActionCreate, entityType, p.ID, nil)
}

// present derives the computed fields of p and hides the creator of anonymous petitions from non-managers.
func (svc *Service) present(viewer policy.Viewer, p Petition) Petition {
	p.IsOverdue = policy.IsOverdue(p.Priority, p.Status, p.CreatedAt, core.NowFunc())
	if p.IsAnonymous && p.CreatorID != viewer.UserID && !viewer.IsAdmin {
		p.CreatorID = ""
	}
	return p
}

// get returns the petition if viewer may see it; invisible petitions are reported as not found.
func (svc *Service) get(ctx context.Context, viewer policy.Viewer, id string) (Petition, error) {
	p, err := svc.repo.GetPetition(ctx, id)
	if err != nil {
		return Petition{}, err
	}
	if !policy.ScopeFor(viewer).Allows(p.subject()) {
		return Petition{}, ErrNotFound
	}
	return p, nil
}

func (svc *Service) Get(ctx context.Context, viewer policy.Viewer, id string) (Petition, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Petition{}, err
	}
	return svc.present(viewer, p), nil
}

func (svc *Service) Query(ctx context.Context, viewer policy.Viewer, filter QueryFilter, ordering []core.DBOrdering) ([]Petition, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.Scope = policy.ScopeFor(viewer)
	filter.Now = core.NowFunc()
	// an anonymous petition must not be traceable to its creator through the filter
	filter.HideAnonymous = filter.CreatorID != "" && filter.CreatorID != viewer.UserID && !viewer.IsAdmin
	petitions, err := svc.repo.QueryPetitions(ctx, filter, core.AllowedOrderings(ordering, OrderingFields...))
	if err != nil {
		return nil, errors.Wrap(err, "querying petitions")
	}

	for i := range petitions {
		petitions[i] = svc.present(viewer, petitions[i])
	}
	return petitions, nil
}

// Update edits the petition; its creator may do so while it is pending, managers at any time.
func (svc *Service) Update(ctx context.Context, viewer policy.Viewer, id string, up UpdatePetition) (Petition, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Petition{}, err
	}
	isCreator := p.CreatorID == viewer.UserID
	if !CanManage(viewer, p) && !(isCreator && p.Status == StatusPending) {
		return Petition{}, core.ErrPermissionDenied
	}

	if up.Title != "" {
		p.Title = up.Title
	}
	if up.Description != "" {
		p.Description = up.Description
	}
	if up.Priority != "" {
		p.Priority = up.Priority
	}
	if up.CategoryID != nil {
		p.CategoryID = *up.CategoryID
	}
	if up.MozeID != nil {
		p.MozeID = *up.MozeID
	}
	if err = svc.checkRelations(ctx, p.CategoryID, p.MozeID); err != nil {
		return Petition{}, err
	}
	p.UpdatedAt = core.NowFunc()

	if p, err = svc.repo.UpdatePetition(ctx, p); err != nil {
		return Petition{}, errors.Wrap(err, "updating petition")
	}
	return svc.present(viewer, p), svc.record(ctx, audit.ActionUpdate, entityType, p.ID, nil)
}

// UpdateStatus moves the petition along its workflow. Its creator may only cancel it.
func (svc *Service) UpdateStatus(ctx context.Context, viewer policy.Viewer, id string, su StatusUpdate) (Petition, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Petition{}, err
	}
	if !CanManage(viewer, p) {
		if p.CreatorID != viewer.UserID || su.Status != StatusCancelled {
			return Petition{}, core.ErrPermissionDenied
		}
	}
	if !CanTransition(p.Status, su.Status) {
		return Petition{}, core.NewValidationError(ErrInvalidTransition, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("cannot move from %s to %s", p.Status, su.Status),
		})
	}

	from := p.Status
	now := core.NowFunc()
	p.Status = su.Status
	p.UpdatedAt = now
	if p.Status == StatusResolved {
		p.ResolvedAt = &now
	} else {
		p.ResolvedAt = nil
	}
	if p, err = svc.repo.UpdatePetition(ctx, p); err != nil {
		return Petition{}, errors.Wrap(err, "updating petition")
	}
	if err = svc.record(ctx, audit.ActionStatus, entityType, p.ID, map[string]interface{}{"from": from, "to": p.Status, "note": su.Note}); err != nil {
		return Petition{}, err
	}

	if p.CreatorID != viewer.UserID {
		svc.notify(ctx, p.CreatorID, notification.Notification{
			Kind:    notification.KindStatus,
			Title:   "Petition status updated",
			Message: fmt.Sprintf("Your petition %q is now %s.", p.Title, p.Status),
		}, p.ID)
	}
	return svc.present(viewer, p), nil
}

// Delete removes the petition; admins may always do so, its creator only while it is pending.
func (svc *Service) Delete(ctx context.Context, viewer policy.Viewer, id string) error {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin && !(p.CreatorID == viewer.UserID && p.Status == StatusPending) {
		return core.ErrPermissionDenied
	}

	attachments, err := svc.repo.QueryAttachments(ctx, p.ID)
	if err != nil {
		return errors.Wrap(err, "querying attachments")
	}
	if err = svc.repo.DeletePetition(ctx, p.ID); err != nil {
		return errors.Wrap(err, "deleting petition")
	}
	for _, at := range attachments {
		if err = svc.store.Delete(ctx, at.Key); err != nil {
			return errors.Wrap(err, "deleting attachment content")
		}
	}
	return svc.record(ctx, audit.ActionDelete, entityType, p.ID, nil)
}

// Comments

func (svc *Service) AddComment(ctx context.Context, viewer policy.Viewer, id string, nc NewComment) (Comment, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Comment{}, err
	}
	if nc.IsInternal && !CanManage(viewer, p) {
		return Comment{}, core.ErrPermissionDenied
	}

	c, err := svc.repo.CreateComment(ctx, Comment{
		ID:         core.NewID(),
		PetitionID: p.ID,
		AuthorID:   viewer.UserID,
		Content:    nc.Content,
		IsInternal: nc.IsInternal,
		CreatedAt:  core.NowFunc(),
	})
	if err != nil {
		return Comment{}, errors.Wrap(err, "creating comment")
	}

	msg := notification.Notification{
		Kind:    notification.KindComment,
		Title:   "New comment on a petition",
		Message: fmt.Sprintf("A comment was added to the petition %q.", p.Title),
	}
	if !c.IsInternal && p.CreatorID != viewer.UserID {
		svc.notify(ctx, p.CreatorID, msg, p.ID)
	}
	if p.AssigneeID != "" && p.AssigneeID != viewer.UserID {
		svc.notify(ctx, p.AssigneeID, msg, p.ID)
	}
	return c, nil
}

// Comments lists the comment thread; internal comments are only shown to managers.
func (svc *Service) Comments(ctx context.Context, viewer policy.Viewer, id string) ([]Comment, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, p.ID, CanManage(viewer, p))
}

// Assignments

// Assign hands the petition over to a staff member; the previous assignment, if any, is deactivated.
func (svc *Service) Assign(ctx context.Context, viewer policy.Viewer, id string, na NewAssignment) (Assignment, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Assignment{}, err
	}
	if !viewer.IsAdmin && !(p.MozeID != "" && lo.Contains(viewer.MozeIDs, p.MozeID)) {
		return Assignment{}, core.ErrPermissionDenied
	}
	if policy.IsTerminal(p.Status) {
		return Assignment{}, core.NewConflictError("petition is " + p.Status)
	}

	assignee, err := svc.users.GetByID(ctx, na.AssigneeID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "assignee_id", Error: err.Error()})
		}
		return Assignment{}, err
	}
	if !assignee.IsActive || !assignee.IsStaff() {
		return Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "assignee_id", Error: "assignee must be an active staff member"})
	}

	a, err := svc.repo.Assign(ctx, Assignment{
		ID:           core.NewID(),
		PetitionID:   p.ID,
		AssigneeID:   assignee.ID,
		AssignedByID: viewer.UserID,
		Notes:        na.Notes,
		IsActive:     true,
		CreatedAt:    core.NowFunc(),
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "assigning petition")
	}

	if p.Status == StatusPending {
		p.Status = StatusInProgress
		p.UpdatedAt = core.NowFunc()
		if _, err = svc.repo.UpdatePetition(ctx, p); err != nil {
			return Assignment{}, errors.Wrap(err, "updating petition")
		}
	}
	if err = svc.record(ctx, audit.ActionAssign, entityType, p.ID, map[string]interface{}{"assignee_id": a.AssigneeID}); err != nil {
		return Assignment{}, err
	}

	svc.notifyUser(ctx, assignee, notification.Notification{
		Kind:    notification.KindAssignment,
		Title:   "Petition assigned to you",
		Message: fmt.Sprintf("The petition %q has been assigned to you.", p.Title),
	}, p.ID)
	return a, nil
}

func (svc *Service) Assignments(ctx context.Context, viewer policy.Viewer, id string) ([]Assignment, error) {
	p, err := svc.get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, p.ID)
}

// Stats aggregates the petitions visible to viewer.
func (svc *Service) Stats(ctx context.Context, viewer policy.Viewer) (Stats, error) {
	petitions, err := svc.Query(ctx, viewer, QueryFilter{}, nil)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:      len(petitions),
		ByStatus:   make(map[string]int, len(Statuses)),
		ByPriority: make(map[string]int, len(Priorities)),
	}
	for _, s := range Statuses {
		stats.ByStatus[s] = 0
	}
	for _, pr := range Priorities {
		stats.ByPriority[pr] = 0
	}
	for _, p := range petitions {
		stats.ByStatus[p.Status]++
		stats.ByPriority[p.Priority]++
		if p.IsOverdue {
			stats.Overdue++
		}
		if p.AssigneeID == "" && !policy.IsTerminal(p.Status) {
			stats.Unassigned++
		}
	}
	return stats, nil
}

func (svc *Service) notify(ctx context.Context, recipientID string, n notification.Notification, petitionID string) {
	if recipientID == "" {
		return
	}
	recipient, err := svc.users.GetByID(ctx, recipientID)
	if err != nil {
		return
	}
	svc.notifyUser(ctx, recipient, n, petitionID)
}

// notifyUser does not fail the operation it reports on.
func (svc *Service) notifyUser(ctx context.Context, recipient user.User, n notification.Notification, petitionID string) {
	n.EntityType = entityType
	n.EntityID = petitionID
	_, _ = svc.notifier.Notify(ctx, recipient, n)
}

func (svc *Service) record(ctx context.Context, action, entity, id string, details map[string]interface{}) error {
	if err := svc.auditor.Record(ctx, action, entity, id, details); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}
