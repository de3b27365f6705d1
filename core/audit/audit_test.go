package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoMock struct {
	mu      sync.Mutex
	entries []Entry
	filter  QueryFilter
}

func (r *repoMock) CreateEntry(_ context.Context, entry Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *repoMock) QueryEntries(_ context.Context, filter QueryFilter) ([]Entry, error) {
	r.filter = filter
	return r.entries, nil
}

func TestService_Record(t *testing.T) {
	repo := &repoMock{}
	svc := NewService(repo)

	ctx := WithActor(context.Background(), Actor{UserID: "u1", IPAddress: "10.0.0.1"})
	require.NoError(t, svc.Record(ctx, ActionLogin, "user", "u1", nil))
	require.NoError(t, svc.Record(context.Background(), ActionSync, "user", "u2", map[string]interface{}{"created": true}))

	require.Len(t, repo.entries, 2)
	login := repo.entries[0]
	assert.Equal(t, "u1", login.ActorID)
	assert.Equal(t, "10.0.0.1", login.IPAddress)
	assert.Equal(t, ActionLogin, login.Action)
	assert.NotEmpty(t, login.ID)
	assert.NotNil(t, login.Details)
	assert.False(t, login.CreatedAt.IsZero())

	synced := repo.entries[1]
	assert.Empty(t, synced.ActorID)
	assert.Equal(t, true, synced.Details["created"])
}

func TestService_QueryLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default", limit: 0, want: DefaultLimit},
		{name: "negative", limit: -3, want: DefaultLimit},
		{name: "too big", limit: 5000, want: DefaultLimit},
		{name: "kept", limit: 20, want: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &repoMock{}
			_, err := NewService(repo).Query(context.Background(), QueryFilter{Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.want, repo.filter.Limit)
		})
	}
}
