package blobsvc

import (
	"context"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core/petition"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "a/b.txt", strings.NewReader("hello"), 5, "text/plain"))
	assert.Equal(t, 1, s.Len())

	rc, err := s.Open(ctx, "a/b.txt")
	require.NoError(t, err)
	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	assert.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(ctx, "a/b.txt"))
	_, err = s.Open(ctx, "a/b.txt")
	assert.Equal(t, petition.ErrAttachmentNotFound, err)
	assert.Equal(t, 0, s.Len())
}
