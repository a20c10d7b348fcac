package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/identity"
	"github.com/prn-tf/warden/internal/pkg/crypto"
	"github.com/prn-tf/warden/internal/repository"
)

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.mustCreate(t, "gooduserx", "longenough1", domain.DefaultStandardLevel)

	t.Run("success", func(t *testing.T) {
		res, err := e.auth.Authenticate(ctx, "gooduserx", "longenough1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		require.NotNil(t, res.User)
		assert.Equal(t, created, *res.User)
	})

	t.Run("wrong password", func(t *testing.T) {
		res, err := e.auth.Authenticate(ctx, "gooduserx", "wrongpass")
		require.NoError(t, err)
		assert.Equal(t, AuthResult{}, res)
	})

	t.Run("unknown user", func(t *testing.T) {
		before := e.hasher.verifies.Load()

		res, err := e.auth.Authenticate(ctx, "nobody.here", "longenough1")
		require.NoError(t, err)
		assert.Equal(t, AuthResult{}, res)
		assert.Equal(t, before+1, e.hasher.verifies.Load())
	})
}

func TestAuthenticate_SameWorkForUnknownAndWrongPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mustCreate(t, "gooduserx", "longenough1", domain.DefaultStandardLevel)

	start := e.hasher.verifies.Load()
	_, err := e.auth.Authenticate(ctx, "gooduserx", "wrongpass")
	require.NoError(t, err)
	wrong := e.hasher.verifies.Load() - start

	start = e.hasher.verifies.Load()
	_, err = e.auth.Authenticate(ctx, "unknown.user", "wrongpass")
	require.NoError(t, err)
	unknown := e.hasher.verifies.Load() - start

	assert.Equal(t, wrong, unknown)
	assert.Equal(t, int32(1), unknown)
}

func TestAuthenticate_DatastoreErrorIsReturned(t *testing.T) {
	repo := &mockUserRepository{}
	repo.On("FindByUsername", mock.Anything, "gooduserx").
		Return(repository.Credential{}, datastoreDown("lookup by username"))

	hasher := crypto.NewBcryptHasher(crypto.HasherConfig{}, zerolog.Nop(), nil)
	svc, err := NewAuthService(context.Background(), repo, hasher, zerolog.Nop(), nil)
	require.NoError(t, err)

	res, err := svc.Authenticate(context.Background(), "gooduserx", "longenough1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDatastoreUnavailable)
	assert.False(t, res.Success)
	assert.Nil(t, res.User)
	repo.AssertExpectations(t)
}

func TestAuthenticate_PoolExhaustedIsReturned(t *testing.T) {
	repo := &mockUserRepository{}
	repo.On("FindByUsername", mock.Anything, "gooduserx").
		Return(repository.Credential{}, domain.NewDomainError(domain.ErrPoolExhausted, "no connection free", ""))

	hasher := crypto.NewBcryptHasher(crypto.HasherConfig{}, zerolog.Nop(), nil)
	svc, err := NewAuthService(context.Background(), repo, hasher, zerolog.Nop(), nil)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "gooduserx", "longenough1")
	assert.Equal(t, domain.CodePoolExhausted, domain.CodeOf(err))
}

func TestNewAuthService_PreparesDecoy(t *testing.T) {
	e := newEnv(t)
	assert.True(t, identity.ValidateHashShape(e.auth.decoyHash))
	assert.False(t, e.hasher.Verify(context.Background(), "", e.auth.decoyHash))
}

func TestNewAuthService_HasherFailure(t *testing.T) {
	svc, err := NewAuthService(context.Background(), &mockUserRepository{}, brokenHasher{}, zerolog.Nop(), nil)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Equal(t, domain.CodeHashError, domain.CodeOf(err))
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.mustCreate(t, "rotate.user", "oldpassword", domain.DefaultStandardLevel)

	err := e.auth.ChangePassword(ctx, u.ID(), "not.the.password", "newpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = e.auth.ChangePassword(ctx, u.ID(), "oldpassword", "short")
	assert.ErrorIs(t, err, domain.ErrBadPassword)

	require.NoError(t, e.auth.ChangePassword(ctx, u.ID(), "oldpassword", "newpassword"))

	res, err := e.auth.Authenticate(ctx, "rotate.user", "newpassword")
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = e.auth.Authenticate(ctx, "rotate.user", "oldpassword")
	require.NoError(t, err)
	assert.False(t, res.Success)

	err = e.auth.ChangePassword(ctx, u.ID()+100, "oldpassword", "newpassword")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
