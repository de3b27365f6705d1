package boiledrepos

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/umoorsehhat/sehhat/core/policy"
)

func Test_overdue(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	yes, no := true, false

	assert.Nil(t, overdue("p.priority", "p.status", "p.created_at", nil, now))

	build := func(want *bool) (string, []interface{}) {
		mods := append([]qm.QueryMod{qm.From("petitions p")}, overdue("p.priority", "p.status", "p.created_at", want, now)...)
		return queries.BuildQuery(newQuery(mods...))
	}

	query, args := build(&yes)
	assert.Contains(t, query, `NOT (p.status = ANY($1::text[]))`)
	assert.Contains(t, query, `(p.priority = $2 AND p.created_at < $3)`)
	assert.NotContains(t, query, "WHERE NOT (NOT")

	wantArgs := []interface{}{types.StringArray(policy.TerminalStatuses)}
	for _, lvl := range []string{policy.LevelEmergency, policy.LevelHigh, policy.LevelLow, policy.LevelMedium, policy.LevelUrgent} {
		wantArgs = append(wantArgs, lvl, policy.OverdueBefore(lvl, now))
	}
	wantArgs = append(wantArgs,
		types.StringArray{policy.LevelEmergency, policy.LevelHigh, policy.LevelLow, policy.LevelMedium, policy.LevelUrgent},
		now.Add(-7*24*time.Hour),
	)
	require.Equal(t, wantArgs, args)
	assert.Equal(t, now.Add(-24*time.Hour), args[2])
	assert.Equal(t, now.Add(-14*24*time.Hour), args[6])

	negated, negArgs := build(&no)
	assert.True(t, strings.Contains(negated, "WHERE (NOT (NOT (p.status"), negated)
	assert.Equal(t, args, negArgs)
}

func Test_scopeClause(t *testing.T) {
	cols := subjectColumns{creator: "a.patient_id", moze: "a.moze_id", assignee: "aa.assignee_id", preferred: "a.preferred_doctor_id"}

	tests := []struct {
		name       string
		scope      policy.Scope
		wantClause string
		wantArgs   []interface{}
	}{
		{"unrestricted", policy.Scope{Unrestricted: true}, "TRUE", nil},
		{"empty", policy.Scope{}, "FALSE", nil},
		{"creator", policy.Scope{CreatorID: "u1"}, "(a.patient_id = ?)", []interface{}{"u1"}},
		{
			"doctor",
			policy.ScopeFor(policy.Viewer{UserID: "d1", Role: "doctor"}),
			"(a.patient_id = ? OR aa.assignee_id = ? OR a.preferred_doctor_id = ?)",
			[]interface{}{"d1", "d1", "d1"},
		},
		{
			"aamil",
			policy.ScopeFor(policy.Viewer{UserID: "a1", Role: "aamil", MozeIDs: []string{"m1"}}),
			"(a.patient_id = ? OR aa.assignee_id = ? OR a.moze_id = ANY(?::uuid[]))",
			[]interface{}{"a1", "a1", types.StringArray{"m1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args := scopeClause(tt.scope, cols)
			assert.Equal(t, tt.wantClause, clause)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
