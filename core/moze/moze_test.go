package moze_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umoorsehhat/sehhat/core/user"
	"github.com/umoorsehhat/sehhat/tests"
)

func TestService_ViewerFor(t *testing.T) {
	stack := testutil.NewStack()
	ctx := context.Background()

	admin := testutil.CreateUser(t, stack.UserRepo, "Admin", "admin1", "admin@sehhat.test", "", user.RoleBadriMahalAdmin, true)
	aamil := testutil.CreateUser(t, stack.UserRepo, "Aamil", "aamil1", "aamil@sehhat.test", "", user.RoleAamil, true)
	coord := testutil.CreateUser(t, stack.UserRepo, "Coordinator", "coord1", "coord@sehhat.test", "", user.RoleMozeCoordinator, true)
	member := testutil.CreateUser(t, stack.UserRepo, "Member", "member1", "member@sehhat.test", "", user.RolePatient, true)

	mz1 := testutil.CreateMoze(t, stack.MozeRepo, "Saifee Masjid", "SM01", aamil.ID, coord.ID)
	mz2 := testutil.CreateMoze(t, stack.MozeRepo, "Burhani Masjid", "BM01", aamil.ID, "")
	closed := testutil.CreateMoze(t, stack.MozeRepo, "Old Masjid", "OM01", aamil.ID, "")
	closed.IsActive = false
	if _, err := stack.MozeRepo.UpdateMoze(ctx, closed); err != nil {
		t.Fatalf("UpdateMoze() failed: %v", err)
	}

	t.Run("admin", func(t *testing.T) {
		v, err := stack.MozeSvc.ViewerFor(ctx, admin)
		assert.NoError(t, err)
		assert.True(t, v.IsAdmin)
		assert.Empty(t, v.MozeIDs)
	})

	t.Run("aamil", func(t *testing.T) {
		v, err := stack.MozeSvc.ViewerFor(ctx, aamil)
		assert.NoError(t, err)
		assert.False(t, v.IsAdmin)
		assert.Equal(t, aamil.ID, v.UserID)
		assert.ElementsMatch(t, []string{mz1.ID, mz2.ID}, v.MozeIDs)
	})

	t.Run("coordinator", func(t *testing.T) {
		v, err := stack.MozeSvc.ViewerFor(ctx, coord)
		assert.NoError(t, err)
		assert.Equal(t, []string{mz1.ID}, v.MozeIDs)
	})

	t.Run("member", func(t *testing.T) {
		v, err := stack.MozeSvc.ViewerFor(ctx, member)
		assert.NoError(t, err)
		assert.Equal(t, user.RolePatient, v.Role)
		assert.Empty(t, v.MozeIDs)
	})
}
