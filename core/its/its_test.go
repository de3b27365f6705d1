package its

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func mustPools(t *testing.T) Pools {
	t.Helper()
	pools, err := LoadPools()
	require.NoError(t, err)
	return pools
}

func TestLoadPools(t *testing.T) {
	pools := mustPools(t)
	assert.NotEmpty(t, pools.MaleFirstNames)
	assert.NotEmpty(t, pools.Cities[0].Country)

	fsys := fstest.MapFS{"pools.yaml": {Data: []byte("prefixes: [Mulla]\n")}}
	_, err := loadPools(fsys, "pools.yaml")
	assert.Error(t, err)
}

func TestMockProvider_Deterministic(t *testing.T) {
	ctx := context.Background()
	pools := mustPools(t)

	p1, err := NewMockProvider(pools).Lookup(ctx, "30361114")
	require.NoError(t, err)
	p2, err := NewMockProvider(pools).Lookup(ctx, "30361114")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, "30361114", p1.ITSID)
	assert.NotEmpty(t, p1.FullName)
	assert.Contains(t, []string{"male", "female"}, p1.Gender)
	assert.GreaterOrEqual(t, p1.Age, 18)

	other, err := NewMockProvider(pools).Lookup(ctx, "30361115")
	require.NoError(t, err)
	assert.NotEqual(t, p1, other)
}

func TestMockProvider_Errors(t *testing.T) {
	pools := mustPools(t)
	tests := []struct {
		name    string
		allowed []string
		itsID   string
		wantErr error
	}{
		{name: "too short", itsID: "1234", wantErr: ErrInvalidITSID},
		{name: "not numeric", itsID: "1234567a", wantErr: ErrInvalidITSID},
		{name: "not allowed", allowed: []string{"11111111"}, itsID: "22222222", wantErr: ErrProfileNotFound},
		{name: "allowed", allowed: []string{"11111111", " 22222222"}, itsID: "22222222"},
		{name: "no allow-list", itsID: "87654321"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMockProvider(pools, tt.allowed...).Lookup(context.Background(), tt.itsID)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

type mapCache struct {
	data map[string][]byte
	ttl  time.Duration
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	c.ttl = ttl
	return nil
}

type countingProvider struct {
	Provider
	calls int
}

func (p *countingProvider) Lookup(ctx context.Context, itsID string) (Profile, error) {
	p.calls++
	return p.Provider.Lookup(ctx, itsID)
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{Provider: NewMockProvider(mustPools(t))}
	cache := &mapCache{data: map[string][]byte{}}
	p := NewCachedProvider(inner, cache, time.Hour, nopLogger{})

	first, err := p.Lookup(ctx, "30361114")
	require.NoError(t, err)
	second, err := p.Lookup(ctx, "30361114")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, time.Hour, cache.ttl)
	assert.Contains(t, cache.data, "its:profile:30361114")

	_, err = p.Lookup(ctx, "bad")
	assert.Equal(t, ErrInvalidITSID, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRESTProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/profiles/12345678":
			_ = json.NewEncoder(w).Encode(Profile{FullName: "Ali Bohra", City: "Pune"})
		case "/profiles/99999999":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	p := NewRESTProvider(srv.URL+"/", "key")

	profile, err := p.Lookup(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, "12345678", profile.ITSID)
	assert.Equal(t, "Ali Bohra", profile.FullName)

	_, err = p.Lookup(ctx, "87654321")
	assert.Equal(t, ErrProfileNotFound, err)

	_, err = p.Lookup(ctx, "99999999")
	assert.Error(t, err)

	_, err = NewRESTProvider(srv.URL, "wrong").Lookup(ctx, "12345678")
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Lookup(cancelled, "12345678")
	assert.ErrorIs(t, err, context.Canceled)
}
