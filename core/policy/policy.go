// Package policy decides which requests a user may see and when a request is overdue.
// Every list, detail, search and stats query goes through ScopeFor.
package policy

import (
	"time"

	"github.com/samber/lo"
)

// Roles, mirrored from core/user to keep this package free of dependencies.
const (
	roleAamil           = "aamil"
	roleMozeCoordinator = "moze_coordinator"
	roleDoctor          = "doctor"
)

type (
	// Viewer is the user a query is run for.
	Viewer struct {
		UserID  string
		Role    string
		IsAdmin bool
		MozeIDs []string // mozes managed by the viewer
	}

	// Subject holds the relationships of a record that visibility depends on.
	Subject struct {
		CreatorID   string
		MozeID      string
		AssigneeID  string // active assignee
		PreferredID string // preferred handler, e.g. the doctor picked by a patient
	}

	// Scope is the visibility predicate of a Viewer: a record is visible when Unrestricted is set
	// or when any of the non-empty relationships matches.
	Scope struct {
		Unrestricted bool
		CreatorID    string
		MozeIDs      []string
		AssigneeID   string
		PreferredID  string
	}
)

// ScopeFor returns the Scope of viewer:
// - admins see everything;
// - aamils and moze coordinators see what they created, what is in their mozes and what is assigned to them;
// - doctors see what is assigned to them, what names them as preferred handler and what they created;
// - everyone else only sees what they created.
func ScopeFor(viewer Viewer) Scope {
	if viewer.IsAdmin {
		return Scope{Unrestricted: true}
	}

	scope := Scope{CreatorID: viewer.UserID}
	switch viewer.Role {
	case roleAamil, roleMozeCoordinator:
		scope.MozeIDs = lo.Uniq(lo.Compact(viewer.MozeIDs))
		scope.AssigneeID = viewer.UserID
	case roleDoctor:
		scope.AssigneeID = viewer.UserID
		scope.PreferredID = viewer.UserID
	}
	return scope
}

// Allows reports whether subject is visible within scope.
func (s Scope) Allows(subject Subject) bool {
	if s.Unrestricted {
		return true
	}
	switch {
	case s.CreatorID != "" && subject.CreatorID == s.CreatorID:
		return true
	case s.AssigneeID != "" && subject.AssigneeID == s.AssigneeID:
		return true
	case s.PreferredID != "" && subject.PreferredID == s.PreferredID:
		return true
	case subject.MozeID != "" && lo.Contains(s.MozeIDs, subject.MozeID):
		return true
	}
	return false
}

// Filter keeps the items of which subject is visible within scope.
func Filter[T any](s Scope, items []T, subject func(T) Subject) []T {
	if s.Unrestricted {
		return items
	}
	return lo.Filter(items, func(item T, _ int) bool { return s.Allows(subject(item)) })
}

// Levels of urgency / priority
const (
	LevelEmergency = "emergency"
	LevelUrgent    = "urgent"
	LevelHigh      = "high"
	LevelMedium    = "medium"
	LevelLow       = "low"
)

const day = 24 * time.Hour

// Thresholds is the time a request may stay open per level before it is overdue.
// Petitions and Dua Araz share it.
var Thresholds = map[string]time.Duration{
	LevelEmergency: 1 * day,
	LevelUrgent:    3 * day,
	LevelHigh:      3 * day,
	LevelMedium:    7 * day,
	LevelLow:       14 * day,
}

// TerminalStatuses never become overdue.
var TerminalStatuses = []string{"completed", "cancelled", "rejected", "resolved", "closed"}

// IsTerminal reports whether status ends a request's workflow.
func IsTerminal(status string) bool {
	return lo.Contains(TerminalStatuses, status)
}

// Threshold returns the threshold of level; unknown levels are treated as medium.
func Threshold(level string) time.Duration {
	if d, ok := Thresholds[level]; ok {
		return d
	}
	return Thresholds[LevelMedium]
}

// IsOverdue reports whether a request of the given level, created at createdAt, is overdue at now.
func IsOverdue(level, status string, createdAt, now time.Time) bool {
	if IsTerminal(status) {
		return false
	}
	return now.Sub(createdAt) > Threshold(level)
}

// OverdueBefore returns the creation time before which an open request of level is overdue at now.
func OverdueBefore(level string, now time.Time) time.Time {
	return now.Add(-Threshold(level))
}
