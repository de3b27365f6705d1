// Package araz handles Dua Araz: patients' requests for care, routed to doctors.
package araz

import (
	"context"
	"fmt"

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

const entityType = "araz"

var (
	ErrNotFound          = core.NewNotFoundError("araz")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

type (
	Repository interface {
		CreateAraz(ctx context.Context, a Araz) (Araz, error)
		// QueryAraz applies QueryFilter.Scope and the other non-empty filters; Overdue is judged at QueryFilter.Now.
		// Araz.AssigneeID is filled from the active assignment.
		QueryAraz(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Araz, error)
		GetAraz(ctx context.Context, id string) (Araz, error)
		UpdateAraz(ctx context.Context, a Araz) (Araz, error)
		DeleteAraz(ctx context.Context, id string) error

		CreateComment(ctx context.Context, c Comment) (Comment, error)
		QueryComments(ctx context.Context, arazID string, includeInternal bool) ([]Comment, error)

		// Assign deactivates every active assignment of the araz and inserts a, atomically.
		Assign(ctx context.Context, a Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, arazID string) ([]Assignment, error)
	}

	Service struct {
		repo     Repository
		users    *user.Service
		mozes    *moze.Service
		notifier *notification.Service
		auditor  audit.Recorder
	}
)

func NewService(repo Repository, users *user.Service, mozes *moze.Service, notifier *notification.Service, auditor audit.Recorder) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mozes, "mozes"),
		vala.IsNotNil(notifier, "notifier"),
		vala.IsNotNil(auditor, "auditor"),
	).CheckAndPanic()

	return &Service{repo: repo, users: users, mozes: mozes, notifier: notifier, auditor: auditor}
}

// CanManage reports whether viewer handles a: admins, managers of its moze and its assigned doctor.
func CanManage(viewer policy.Viewer, a Araz) bool {
	if viewer.IsAdmin {
		return true
	}
	if a.AssigneeID != "" && a.AssigneeID == viewer.UserID {
		return true
	}
	return a.MozeID != "" && lo.Contains(viewer.MozeIDs, a.MozeID)
}

// canDispatch reports whether viewer may assign doctors to a.
func canDispatch(viewer policy.Viewer, a Araz) bool {
	return viewer.IsAdmin || (a.MozeID != "" && lo.Contains(viewer.MozeIDs, a.MozeID))
}

func (svc *Service) doctor(ctx context.Context, field, id string) (user.User, error) {
	doc, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return user.User{}, err
	}
	if !doc.IsActive || !doc.IsDoctor() {
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: field, Error: "user must be an active doctor"})
	}
	return doc, nil
}

func (svc *Service) checkRelations(ctx context.Context, preferredDoctorID, mozeID string) error {
	if preferredDoctorID != "" {
		if _, err := svc.doctor(ctx, "preferred_doctor_id", preferredDoctorID); err != nil {
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

// Create files a request for patient. The patient's ITS ID and name default to the patient's own.
func (svc *Service) Create(ctx context.Context, patient user.User, na NewAraz) (Araz, error) {
	if na.PatientITSID == "" {
		na.PatientITSID = patient.ITSID
	}
	if na.PatientName == "" {
		na.PatientName = patient.Name
	}
	if na.MozeID == "" {
		na.MozeID = patient.MozeID
	}
	if err := svc.checkRelations(ctx, na.PreferredDoctorID, na.MozeID); err != nil {
		return Araz{}, err
	}

	now := core.NowFunc()
	a, err := svc.repo.CreateAraz(ctx, Araz{
		ID:                core.NewID(),
		PatientID:         patient.ID,
		PatientITSID:      na.PatientITSID,
		PatientName:       na.PatientName,
		Ailment:           na.Ailment,
		Symptoms:          na.Symptoms,
		Urgency:           na.Urgency,
		Status:            StatusSubmitted,
		PreferredDoctorID: na.PreferredDoctorID,
		MozeID:            na.MozeID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Araz{}, errors.Wrap(err, "creating araz")
	}
	if err = svc.record(ctx, audit.ActionCreate, a.ID, nil); err != nil {
		return Araz{}, err
	}

	if a.PreferredDoctorID != "" {
		svc.notify(ctx, a.PreferredDoctorID, notification.Notification{
			Kind:    notification.KindGeneral,
			Title:   "New Dua Araz",
			Message: fmt.Sprintf("%s named you as preferred doctor for %q.", a.PatientName, a.Ailment),
		}, a.ID)
	}
	return present(a), nil
}

func present(a Araz) Araz {
	a.IsOverdue = policy.IsOverdue(a.Urgency, a.Status, a.CreatedAt, core.NowFunc())
	return a
}

func (svc *Service) get(ctx context.Context, viewer policy.Viewer, id string) (Araz, error) {
	a, err := svc.repo.GetAraz(ctx, id)
	if err != nil {
		return Araz{}, err
	}
	if !policy.ScopeFor(viewer).Allows(a.subject()) {
		return Araz{}, ErrNotFound
	}
	return a, nil
}

func (svc *Service) Get(ctx context.Context, viewer policy.Viewer, id string) (Araz, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Araz{}, err
	}
	return present(a), nil
}

func (svc *Service) Query(ctx context.Context, viewer policy.Viewer, filter QueryFilter, ordering []core.DBOrdering) ([]Araz, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.Scope = policy.ScopeFor(viewer)
	filter.Now = core.NowFunc()
	requests, err := svc.repo.QueryAraz(ctx, filter, core.AllowedOrderings(ordering, OrderingFields...))
	if err != nil {
		return nil, errors.Wrap(err, "querying araz")
	}

	for i := range requests {
		requests[i] = present(requests[i])
	}
	return requests, nil
}

// Update edits the request; its patient may do so until it is reviewed, managers at any time.
func (svc *Service) Update(ctx context.Context, viewer policy.Viewer, id string, ua UpdateAraz) (Araz, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Araz{}, err
	}
	if !CanManage(viewer, a) && !(a.PatientID == viewer.UserID && a.Status == StatusSubmitted) {
		return Araz{}, core.ErrPermissionDenied
	}

	if ua.Ailment != "" {
		a.Ailment = ua.Ailment
	}
	if ua.Symptoms != nil {
		a.Symptoms = core.CleanString(*ua.Symptoms)
	}
	if ua.Urgency != "" {
		a.Urgency = ua.Urgency
	}
	if ua.PreferredDoctorID != nil {
		a.PreferredDoctorID = *ua.PreferredDoctorID
	}
	if ua.MozeID != nil {
		a.MozeID = *ua.MozeID
	}
	if err = svc.checkRelations(ctx, a.PreferredDoctorID, a.MozeID); err != nil {
		return Araz{}, err
	}
	a.UpdatedAt = core.NowFunc()

	if a, err = svc.repo.UpdateAraz(ctx, a); err != nil {
		return Araz{}, errors.Wrap(err, "updating araz")
	}
	return present(a), svc.record(ctx, audit.ActionUpdate, a.ID, nil)
}

// UpdateStatus moves the request along its workflow. Its patient may only cancel it.
func (svc *Service) UpdateStatus(ctx context.Context, viewer policy.Viewer, id string, su StatusUpdate) (Araz, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Araz{}, err
	}
	if !CanManage(viewer, a) {
		if a.PatientID != viewer.UserID || su.Status != StatusCancelled {
			return Araz{}, core.ErrPermissionDenied
		}
	}
	if !CanTransition(a.Status, su.Status) {
		return Araz{}, core.NewValidationError(ErrInvalidTransition, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("cannot move from %s to %s", a.Status, su.Status),
		})
	}
	return svc.setStatus(ctx, viewer, a, su.Status, map[string]interface{}{"note": su.Note})
}

// Schedule books an appointment and moves the request to scheduled.
func (svc *Service) Schedule(ctx context.Context, viewer policy.Viewer, id string, s Schedule) (Araz, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Araz{}, err
	}
	if !CanManage(viewer, a) {
		return Araz{}, core.ErrPermissionDenied
	}
	if a.Status != StatusScheduled && !CanTransition(a.Status, StatusScheduled) {
		return Araz{}, core.NewValidationError(ErrInvalidTransition, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("cannot schedule a request that is %s", a.Status),
		})
	}
	if !s.AppointmentAt.After(core.NowFunc()) {
		return Araz{}, core.NewValidationError(nil, core.FieldError{Field: "appointment_at", Error: "appointment must be in the future"})
	}

	at := s.AppointmentAt
	a.AppointmentAt = &at
	a, err = svc.setStatus(ctx, viewer, a, StatusScheduled, map[string]interface{}{"appointment_at": at})
	if err != nil {
		return Araz{}, err
	}
	if a.PatientID != viewer.UserID {
		svc.notify(ctx, a.PatientID, notification.Notification{
			Kind:    notification.KindSchedule,
			Title:   "Appointment scheduled",
			Message: fmt.Sprintf("Your appointment for %q is scheduled on %s.", a.Ailment, at.Format("Mon 02 Jan 2006 15:04 MST")),
		}, a.ID)
	}
	return a, nil
}

func (svc *Service) setStatus(ctx context.Context, viewer policy.Viewer, a Araz, status string, details map[string]interface{}) (Araz, error) {
	from := a.Status
	now := core.NowFunc()
	a.Status = status
	a.UpdatedAt = now
	if status == StatusCompleted {
		a.CompletedAt = &now
	}

	a, err := svc.repo.UpdateAraz(ctx, a)
	if err != nil {
		return Araz{}, errors.Wrap(err, "updating araz")
	}
	details["from"] = from
	details["to"] = status
	if err = svc.record(ctx, audit.ActionStatus, a.ID, details); err != nil {
		return Araz{}, err
	}

	if from != status && a.PatientID != viewer.UserID {
		svc.notify(ctx, a.PatientID, notification.Notification{
			Kind:    notification.KindStatus,
			Title:   "Dua Araz status updated",
			Message: fmt.Sprintf("Your request %q is now %s.", a.Ailment, a.Status),
		}, a.ID)
	}
	return present(a), nil
}

// Delete removes the request; admins may always do so, its patient only until it is reviewed.
func (svc *Service) Delete(ctx context.Context, viewer policy.Viewer, id string) error {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !viewer.IsAdmin && !(a.PatientID == viewer.UserID && a.Status == StatusSubmitted) {
		return core.ErrPermissionDenied
	}
	if err = svc.repo.DeleteAraz(ctx, a.ID); err != nil {
		return errors.Wrap(err, "deleting araz")
	}
	return svc.record(ctx, audit.ActionDelete, a.ID, nil)
}

func (svc *Service) AddComment(ctx context.Context, viewer policy.Viewer, id string, nc NewComment) (Comment, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Comment{}, err
	}
	if nc.IsInternal && !CanManage(viewer, a) {
		return Comment{}, core.ErrPermissionDenied
	}

	c, err := svc.repo.CreateComment(ctx, Comment{
		ID:         core.NewID(),
		ArazID:     a.ID,
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
		Title:   "New comment on a Dua Araz",
		Message: fmt.Sprintf("A comment was added to the request %q.", a.Ailment),
	}
	if !c.IsInternal && a.PatientID != viewer.UserID {
		svc.notify(ctx, a.PatientID, msg, a.ID)
	}
	if a.AssigneeID != "" && a.AssigneeID != viewer.UserID {
		svc.notify(ctx, a.AssigneeID, msg, a.ID)
	}
	return c, nil
}

// Comments lists the comment thread; internal comments are only shown to managers.
func (svc *Service) Comments(ctx context.Context, viewer policy.Viewer, id string) ([]Comment, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, a.ID, CanManage(viewer, a))
}

// Assign routes the request to a doctor; the previous assignment, if any, is deactivated.
func (svc *Service) Assign(ctx context.Context, viewer policy.Viewer, id string, na NewAssignment) (Assignment, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return Assignment{}, err
	}
	if !canDispatch(viewer, a) {
		return Assignment{}, core.ErrPermissionDenied
	}
	if policy.IsTerminal(a.Status) {
		return Assignment{}, core.NewConflictError("araz is " + a.Status)
	}
	doc, err := svc.doctor(ctx, "assignee_id", na.AssigneeID)
	if err != nil {
		return Assignment{}, err
	}

	asg, err := svc.repo.Assign(ctx, Assignment{
		ID:           core.NewID(),
		ArazID:       a.ID,
		AssigneeID:   doc.ID,
		AssignedByID: viewer.UserID,
		Notes:        na.Notes,
		IsActive:     true,
		CreatedAt:    core.NowFunc(),
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "assigning araz")
	}
	if err = svc.record(ctx, audit.ActionAssign, a.ID, map[string]interface{}{"assignee_id": asg.AssigneeID}); err != nil {
		return Assignment{}, err
	}

	n := notification.Notification{
		Kind:    notification.KindAssignment,
		Title:   "Dua Araz assigned to you",
		Message: fmt.Sprintf("The request %q of %s has been assigned to you.", a.Ailment, a.PatientName),
	}
	n.EntityType, n.EntityID = entityType, a.ID
	_, _ = svc.notifier.Notify(ctx, doc, n)
	return asg, nil
}

func (svc *Service) Assignments(ctx context.Context, viewer policy.Viewer, id string) ([]Assignment, error) {
	a, err := svc.get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, a.ID)
}

// Stats aggregates the requests visible to viewer.
func (svc *Service) Stats(ctx context.Context, viewer policy.Viewer) (Stats, error) {
	requests, err := svc.Query(ctx, viewer, QueryFilter{}, nil)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:     len(requests),
		ByStatus:  lo.SliceToMap(Statuses, func(s string) (string, int) { return s, 0 }),
		ByUrgency: lo.SliceToMap(Urgencies, func(u string) (string, int) { return u, 0 }),
	}
	for _, a := range requests {
		stats.ByStatus[a.Status]++
		stats.ByUrgency[a.Urgency]++
		if a.IsOverdue {
			stats.Overdue++
		}
		if a.AssigneeID == "" && !policy.IsTerminal(a.Status) {
			stats.Unassigned++
		}
		if a.Status == StatusScheduled {
			stats.Scheduled++
		}
	}
	return stats, nil
}

// notify does not fail the operation it reports on.
func (svc *Service) notify(ctx context.Context, recipientID string, n notification.Notification, arazID string) {
	recipient, err := svc.users.GetByID(ctx, recipientID)
	if err != nil {
		return
	}
	n.EntityType = entityType
	n.EntityID = arazID
	_, _ = svc.notifier.Notify(ctx, recipient, n)
}

func (svc *Service) record(ctx context.Context, action, id string, details map[string]interface{}) error {
	if err := svc.auditor.Record(ctx, action, entityType, id, details); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}
