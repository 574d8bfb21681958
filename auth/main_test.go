package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coachmastery/auth"
	"coachmastery/database/memorydb"
	"coachmastery/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *auth.Service {
	return auth.Connect(auth.ServiceConnectProps{
		Logger: logger.Connect(logger.LoggerConnectProps{Production: false}),
		Store:  memorydb.Connect(),
		Secret: "test-secret",
	})
}

func TestRegisterThenLogin(t *testing.T) {
	service := testService()
	ctx := context.Background()

	token, user, err := service.Register(ctx, "Coach@Example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "coach@example.com", user.Email)

	loginToken, loginUser, err := service.Login(ctx, "coach@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, loginToken)
	assert.Equal(t, user.ID, loginUser.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service := testService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, "coach@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = service.Register(ctx, "coach@example.com", "different")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	service := testService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, "coach@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = service.Login(ctx, "coach@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = service.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestVerifyToken(t *testing.T) {
	service := testService()

	token, user, err := service.Register(context.Background(), "coach@example.com", "hunter22")
	require.NoError(t, err)

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "coach@example.com", claims.Email)

	_, err = service.VerifyToken(token + "tampered")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	service := testService()

	token, user, err := service.Register(context.Background(), "coach@example.com", "hunter22")
	require.NoError(t, err)

	var seenUserID string
	handler := service.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = auth.UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, seenUserID)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	service := testService()

	handler := service.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
