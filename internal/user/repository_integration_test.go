package user_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db/dbtest"
	"github.com/yuankeMiao/Marmotshop-backend/internal/user"
)

func TestPostgres_UserRepository(t *testing.T) {
	pg := dbtest.Open(t)
	repo := user.NewRepository(pg.Pool)
	ctx := context.Background()

	id := dbtest.SeedUser(t, pg)

	found, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, user.RoleCustomer, found.Role)

	exists, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	missing := uuid.Must(uuid.NewV4())
	_, err = repo.GetByID(ctx, missing)
	require.ErrorIs(t, err, user.ErrNotFound)

	exists, err = repo.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)
}
