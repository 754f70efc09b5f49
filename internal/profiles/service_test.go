package profiles_test

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"ms-events/internal/auth"
	"ms-events/internal/clock"
	"ms-events/internal/events"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/profiles"
	profile_db "ms-events/internal/profiles/db"
)

func setupService(t *testing.T) (*profiles.Service, *auth.Issuer) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	_, err = bunDB.NewCreateTable().Model((*models.User)(nil)).Exec(context.Background())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	issuer := auth.NewIssuer("secret", time.Minute, time.Hour)
	svc := profiles.NewService(
		&profile_db.DB{Bun: bunDB},
		issuer,
		auth.NewRefreshStore(client),
		clock.NewFixed(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		logger.NewWithWriter(io.Discard),
		bcrypt.MinCost,
	)
	return svc, issuer
}

func signup(t *testing.T, svc *profiles.Service, username string) *models.UserSummary {
	t.Helper()
	user, err := svc.Signup(context.Background(), models.SignupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	return user
}

func TestSignup(t *testing.T) {
	svc, _ := setupService(t)
	user := signup(t, svc, "alice")

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestSignupDuplicateUsername(t *testing.T) {
	svc, _ := setupService(t)
	signup(t, svc, "alice")

	_, err := svc.Signup(context.Background(), models.SignupRequest{Username: "alice", Email: "other@example.com", Password: "x"})
	var verr *events.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
}

func TestSignupValidation(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Signup(context.Background(), models.SignupRequest{Username: " ", Email: "not-an-email"})
	var verr *events.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
}

func TestObtainToken(t *testing.T) {
	svc, issuer := setupService(t)
	user := signup(t, svc, "alice")
	ctx := context.Background()

	pair, err := svc.ObtainToken(ctx, models.TokenRequest{Username: "alice", Password: "s3cret-pass"})
	require.NoError(t, err)

	id, err := issuer.VerifyAccess(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = svc.ObtainToken(ctx, models.TokenRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, profiles.ErrInvalidCredentials)

	_, err = svc.ObtainToken(ctx, models.TokenRequest{Username: "nobody", Password: "wrong"})
	assert.ErrorIs(t, err, profiles.ErrInvalidCredentials)
}

func TestRotateRefreshTokenIsSingleUse(t *testing.T) {
	svc, issuer := setupService(t)
	user := signup(t, svc, "alice")
	ctx := context.Background()

	pair, err := svc.ObtainToken(ctx, models.TokenRequest{Username: "alice", Password: "s3cret-pass"})
	require.NoError(t, err)

	next, err := svc.Rotate(ctx, models.RefreshRequest{Refresh: pair.Refresh})
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, next.Refresh)

	id, err := issuer.VerifyAccess(ctx, next.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = svc.Rotate(ctx, models.RefreshRequest{Refresh: pair.Refresh})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = svc.Rotate(ctx, models.RefreshRequest{Refresh: pair.Access})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}
