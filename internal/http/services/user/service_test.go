package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/store/memory"
)

type userFixture struct {
	svc   Service
	users *memory.UserRepository
	conns *memory.ConnectionRepository
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	users := memory.NewUserRepository()
	conns := memory.NewConnectionRepository()
	return &userFixture{
		svc:   NewService(Deps{Users: users, Connections: conns}),
		users: users,
		conns: conns,
	}
}

func (f *userFixture) seed(t *testing.T, did, name string) *repository.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), did, repository.Profile{DisplayName: name})
	require.NoError(t, err)
	return u
}

func strptr(s string) *string { return &s }

func TestGetByIDAndDID(t *testing.T) {
	f := newUserFixture(t)
	seeded := f.seed(t, "did:plc:alice", "Alice")

	byID, err := f.svc.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Profile.DisplayName)

	byDID, err := f.svc.GetByDID(context.Background(), "did:plc:alice")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byDID.ID)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.svc.GetByDID(context.Background(), "did:plc:nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfilePatchSemantics(t *testing.T) {
	f := newUserFixture(t)
	seeded := f.seed(t, "did:plc:alice", "Alice")

	updated, err := f.svc.UpdateProfile(context.Background(), seeded.ID, repository.UpdateUserInput{
		Description: strptr("builds things"),
	})
	require.NoError(t, err)
	// Untouched fields keep their stored value.
	assert.Equal(t, "Alice", updated.Profile.DisplayName)
	require.NotNil(t, updated.Profile.Description)
	assert.Equal(t, "builds things", *updated.Profile.Description)
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	f := newUserFixture(t)

	_, err := f.svc.UpdateProfile(context.Background(), "missing", repository.UpdateUserInput{
		DisplayName: strptr("Ghost"),
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteRemovesAccountAndConnection(t *testing.T) {
	f := newUserFixture(t)
	seeded := f.seed(t, "did:plc:alice", "Alice")
	_, err := f.conns.Create(context.Background(), seeded.ID, repository.TokenPair{AccessToken: "ghu_x"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), seeded.ID))

	_, err = f.users.GetByID(context.Background(), seeded.ID)
	assert.True(t, repository.IsNotFound(err))
	_, err = f.conns.GetByUserID(context.Background(), seeded.ID)
	assert.True(t, repository.IsNotFound(err))
}

func TestDeleteWithoutConnection(t *testing.T) {
	f := newUserFixture(t)
	seeded := f.seed(t, "did:plc:alice", "Alice")

	require.NoError(t, f.svc.Delete(context.Background(), seeded.ID))
}

func TestDeleteIdempotent(t *testing.T) {
	f := newUserFixture(t)
	seeded := f.seed(t, "did:plc:alice", "Alice")

	require.NoError(t, f.svc.Delete(context.Background(), seeded.ID))
	// Already gone: same final state, same outcome.
	require.NoError(t, f.svc.Delete(context.Background(), seeded.ID))
	require.NoError(t, f.svc.Delete(context.Background(), "never-existed"))
}
