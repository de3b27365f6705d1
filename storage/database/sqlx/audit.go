package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
	"github.com/umoorsehhat/sehhat/core/audit"
)

type auditRow struct {
	ID         string         `db:"id"`
	ActorID    sql.NullString `db:"actor_id"`
	Action     string         `db:"action"`
	EntityType string         `db:"entity_type"`
	EntityID   string         `db:"entity_id"`
	Details    types.JSONText `db:"details"`
	IPAddress  string         `db:"ip_address"`
	CreatedAt  time.Time      `db:"created_at"`
}

const insertAuditEntry = `INSERT INTO audit_entries (id, actor_id, action, entity_type, entity_id, details, ip_address, created_at)
VALUES (:id, :actor_id, :action, :entity_type, :entity_id, :details, :ip_address, :created_at)`

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) CreateEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == "" {
		entry.ID = core.NewID()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	row := auditRow{
		ID:         entry.ID,
		ActorID:    sql.NullString{String: entry.ActorID, Valid: core.IsValidID(entry.ActorID)},
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		IPAddress:  entry.IPAddress,
		CreatedAt:  entry.CreatedAt,
	}
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	if err := row.Details.Marshal(details); err != nil {
		return audit.Entry{}, errors.Wrap(err, "encoding audit details")
	}

	if _, err := repo.db.NamedExecContext(ctx, insertAuditEntry, row); err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return entry, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter) ([]audit.Entry, error) {
	var w where
	if filter.ActorID != "" {
		if !core.IsValidID(filter.ActorID) {
			return []audit.Entry{}, nil
		}
		w.add("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		w.add("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		w.add("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		w.add("entity_id = ?", filter.EntityID)
	}
	w.addRange("created_at", filter.CreatedFrom, filter.CreatedTo)

	query := "SELECT * FROM audit_entries" + w.String() + " ORDER BY created_at DESC"
	args := w.args
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []auditRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting audit entries")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, r := range rows {
		e := audit.Entry{
			ID:         r.ID,
			ActorID:    r.ActorID.String,
			Action:     r.Action,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			IPAddress:  r.IPAddress,
			CreatedAt:  r.CreatedAt,
		}
		if err := r.Details.Unmarshal(&e.Details); err != nil {
			return nil, errors.Wrap(err, "decoding audit details")
		}
		entries = append(entries, e)
	}
	return entries, nil
}
