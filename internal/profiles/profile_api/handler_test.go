package profile_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"ms-events/internal/auth"
	"ms-events/internal/clock"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/profiles"
	profile_db "ms-events/internal/profiles/db"
	"ms-events/internal/profiles/profile_api"
)

func setupRouter(t *testing.T) http.Handler {
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

	log := logger.NewWithWriter(io.Discard)
	svc := profiles.NewService(&profile_db.DB{Bun: bunDB}, auth.NewIssuer("secret", time.Minute, time.Hour),
		auth.NewRefreshStore(client), clock.System{}, log, bcrypt.MinCost)

	r := chi.NewRouter()
	r.Route("/v1", (&profile_api.Handler{Service: svc, Logger: log}).RegisterRoutes)
	return r
}

func post(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))
	return rr
}

func TestSignupAndTokenFlow(t *testing.T) {
	h := setupRouter(t)

	rr := post(t, h, "/v1/profile/signup", map[string]string{"username": "alice", "email": "alice@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")

	rr = post(t, h, "/v1/profile/signup", map[string]string{"username": "alice", "email": "alice@example.com", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(t, h, "/v1/profile/token", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(t, h, "/v1/profile/token", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, rr.Code)
	var pair models.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	rr = post(t, h, "/v1/profile/token/refresh", map[string]string{"refresh": pair.Refresh})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = post(t, h, "/v1/profile/token/refresh", map[string]string{"refresh": pair.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMalformedBody(t *testing.T) {
	h := setupRouter(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/profile/signup", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
