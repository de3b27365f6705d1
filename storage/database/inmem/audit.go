package inmemdb

import (
	"context"

	"github.com/samber/lo"

	"github.com/umoorsehhat/sehhat/core/audit"
)

type auditRepository struct {
	db *auditTable
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db.audit}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entry.ID = ensureID(entry.ID)
	repo.db.table = append(repo.db.table, entry)
	return entry, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter) ([]audit.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// entries are appended in order, walk them backwards for newest first
	entries := make([]audit.Entry, 0)
	for _, e := range lo.Reverse(append([]audit.Entry(nil), repo.db.table...)) {
		switch {
		case filter.ActorID != "" && e.ActorID != filter.ActorID,
			filter.Action != "" && e.Action != filter.Action,
			filter.EntityType != "" && e.EntityType != filter.EntityType,
			filter.EntityID != "" && e.EntityID != filter.EntityID,
			!within(e.CreatedAt, filter.CreatedFrom, filter.CreatedTo):
			continue
		}
		entries = append(entries, e)
		if filter.Limit > 0 && len(entries) == filter.Limit {
			break
		}
	}
	return entries, nil
}
