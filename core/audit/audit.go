// Package audit keeps the trail of who changed what.
package audit

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
)

// Actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionSync   = "sync"
	ActionAssign = "assign"
	ActionStatus = "status"
)

var AllActions = []string{ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout, ActionSync, ActionAssign, ActionStatus}

type (
	Entry struct {
		ID         string                 `json:"id"`
		ActorID    string                 `json:"actor_id"`
		Action     string                 `json:"action"`
		EntityType string                 `json:"entity_type"`
		EntityID   string                 `json:"entity_id"`
		Details    map[string]interface{} `json:"details"`
		IPAddress  string                 `json:"ip_address"`
		CreatedAt  time.Time              `json:"created_at"` // UTC
	}

	QueryFilter struct {
		ActorID     string    `query:"actor_id"`
		Action      string    `query:"action"`
		EntityType  string    `query:"entity_type"`
		EntityID    string    `query:"entity_id"`
		CreatedFrom time.Time `query:"-"` // created_from
		CreatedTo   time.Time `query:"-"` // created_to
		Limit       int       `query:"limit"`
	}

	// Recorder is implemented by anything able to persist an audit entry.
	Recorder interface {
		Record(ctx context.Context, action, entityType, entityID string, details map[string]interface{}) error
	}

	Repository interface {
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		// QueryEntries returns the matching entries, newest first.
		QueryEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
	}

	Service struct {
		repo Repository
	}
)

const DefaultLimit = 100

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{repo: repo}
}

// Record stores an entry attributed to the actor carried by ctx.
func (svc *Service) Record(ctx context.Context, action, entityType, entityID string, details map[string]interface{}) error {
	actor := ActorFromContext(ctx)
	entry := Entry{
		ID:         core.NewID(),
		ActorID:    actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  actor.IPAddress,
		CreatedAt:  core.NowFunc(),
	}
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}
	if _, err := svc.repo.CreateEntry(ctx, entry); err != nil {
		return errors.Wrap(err, "creating audit entry")
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = DefaultLimit
	}
	return svc.repo.QueryEntries(ctx, filter)
}

// Actor identifies who triggers the audited operations of a request.
type Actor struct {
	UserID    string
	IPAddress string
}

type ctxKey int

const actorKey ctxKey = iota

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the zero Actor when ctx carries none (system operations).
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey).(Actor)
	return actor
}
