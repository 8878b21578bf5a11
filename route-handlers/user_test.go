package routehandlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreybb/doorman/api"
	"github.com/coreybb/doorman/auth"
	"github.com/coreybb/doorman/datastore"
	"github.com/coreybb/doorman/models"
	rh "github.com/coreybb/doorman/route-handlers"
	"github.com/coreybb/doorman/webutil"
)

const (
	testPhone    = "5551234567"
	testPassword = "rightpw"
)

type env struct {
	router http.Handler
	users  *datastore.UserRepository
	tokens *datastore.TokenRepository
}

// newEnv wires real repositories in a temp directory through the real
// router, so tests exercise the full dispatch path.
func newEnv(t *testing.T, strictUpdateAuth bool) *env {
	t.Helper()
	store, err := datastore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	users := datastore.NewUserRepository(store)
	tokens := datastore.NewTokenRepository(store)
	hasher := webutil.NewHMACHasher("test-secret")
	authenticator := auth.NewAuthenticator(users, tokens, hasher, time.Hour)

	userHandler := rh.NewUserHandler(users, authenticator, hasher, strictUpdateAuth)
	tokenHandler := rh.NewTokenHandler(tokens, authenticator)
	router := api.SetupRoutes(userHandler, tokenHandler, api.NewClientRateLimiter(0, 0))

	return &env{
		router: router,
		users:  users,
		tokens: tokens,
	}
}

func (e *env) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set(webutil.HeaderToken, token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) signup(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/users", map[string]any{
		"firstName":    "Ada",
		"lastName":     "Lovelace",
		"phone":        testPhone,
		"password":     testPassword,
		"tosAgreement": true,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func (e *env) login(t *testing.T) *models.Token {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/tokens", map[string]any{
		"phone":    testPhone,
		"password": testPassword,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var token models.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	return &token
}

// expiredToken persists a token whose expiry is already in the past.
func (e *env) expiredToken(t *testing.T, phone string) string {
	t.Helper()
	id, err := webutil.GenerateRandomString(auth.TokenIDLength)
	require.NoError(t, err)
	require.NoError(t, e.tokens.CreateToken(context.Background(), &models.Token{
		ID:      id,
		Phone:   phone,
		Expires: time.Now().Add(-time.Minute).UnixMilli(),
	}))
	return id
}

func errorPayload(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload["error"]
}

func TestCreateUser(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)

	user, err := env.users.GetUserByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, "Lovelace", user.LastName)
	assert.True(t, user.TOSAgreement)
	assert.NotEmpty(t, user.HashedPassword)
	assert.NotEqual(t, testPassword, user.HashedPassword)
}

func TestCreateUserMissingFields(t *testing.T) {
	env := newEnv(t, false)

	cases := map[string]map[string]any{
		"no firstName": {
			"lastName": "Lovelace", "phone": testPhone, "password": testPassword, "tosAgreement": true,
		},
		"blank lastName": {
			"firstName": "Ada", "lastName": "   ", "phone": testPhone, "password": testPassword, "tosAgreement": true,
		},
		"no phone": {
			"firstName": "Ada", "lastName": "Lovelace", "password": testPassword, "tosAgreement": true,
		},
		"no password": {
			"firstName": "Ada", "lastName": "Lovelace", "phone": testPhone, "tosAgreement": true,
		},
		"tos not agreed": {
			"firstName": "Ada", "lastName": "Lovelace", "phone": testPhone, "password": testPassword, "tosAgreement": false,
		},
		"unsafe phone": {
			"firstName": "Ada", "lastName": "Lovelace", "phone": "555/123", "password": testPassword, "tosAgreement": true,
		},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/users", payload, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorPayload(t, rec))
		})
	}
}

func TestCreateUserDuplicatePhone(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)

	rec := env.do(t, http.MethodPost, "/users", map[string]any{
		"firstName":    "Eve",
		"lastName":     "Impostor",
		"phone":        testPhone,
		"password":     "otherpw",
		"tosAgreement": true,
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A user with that phone number already exists", errorPayload(t, rec))

	// The first user's data is unchanged.
	user, err := env.users.GetUserByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)
}

func TestGetUser(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)
	token := env.login(t)

	rec := env.do(t, http.MethodGet, "/users?phone="+testPhone, nil, token.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Ada", payload["firstName"])
	assert.Equal(t, "Lovelace", payload["lastName"])
	assert.Equal(t, testPhone, payload["phone"])

	// The stored digest must never leave the boundary.
	assert.NotContains(t, payload, "hashedPassword")
	assert.NotContains(t, rec.Body.String(), "hashedPassword")
}

func TestGetUserMissingPhone(t *testing.T) {
	env := newEnv(t, false)

	rec := env.do(t, http.MethodGet, "/users", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserUnauthorized(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)

	t.Run("no token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/users?phone="+testPhone, nil, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/users?phone="+testPhone, nil, "aaaaaaaaaaaaaaaaaaaa")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		id := env.expiredToken(t, testPhone)
		rec := env.do(t, http.MethodGet, "/users?phone="+testPhone, nil, id)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotEmpty(t, errorPayload(t, rec))
	})

	t.Run("token for another phone", func(t *testing.T) {
		token := env.login(t)
		rec := env.do(t, http.MethodGet, "/users?phone=5559999999", nil, token.ID)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetUserNotFound(t *testing.T) {
	env := newEnv(t, false)

	// A valid token bound to a phone with no user document behind it.
	const ghost = "5550001111"
	id, err := webutil.GenerateRandomString(auth.TokenIDLength)
	require.NoError(t, err)
	require.NoError(t, env.tokens.CreateToken(context.Background(), &models.Token{
		ID:      id,
		Phone:   ghost,
		Expires: time.Now().Add(time.Hour).UnixMilli(),
	}))

	rec := env.do(t, http.MethodGet, "/users?phone="+ghost, nil, id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUser(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)
	token := env.login(t)

	rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{
		"firstName": "Augusta",
	}, token.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := env.users.GetUserByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, "Lovelace", user.LastName, "untouched field preserved")
}

func TestUpdateUserPassword(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)
	token := env.login(t)

	rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{
		"password": "newpw",
	}, token.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	// The old password no longer logs in; the new one does.
	rec = env.do(t, http.MethodPost, "/tokens", map[string]any{"phone": testPhone, "password": testPassword}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/tokens", map[string]any{"phone": testPhone, "password": "newpw"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateUserValidation(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)
	token := env.login(t)

	t.Run("missing phone", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/users", map[string]any{"firstName": "X"}, token.ID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no updatable fields", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{}, token.ID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/users?phone=5559999999", map[string]any{"firstName": "X"}, token.ID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "The specified user does not exist", errorPayload(t, rec))
	})
}

// Legacy behavior: update only checks that some token header is present,
// not that it verifies against the target phone.
func TestUpdateUserLegacyTokenCheck(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{"firstName": "X"}, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unverified token accepted", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{"firstName": "Augusta"}, "bogus-token-value")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUpdateUserStrictTokenCheck(t *testing.T) {
	env := newEnv(t, true)
	env.signup(t)

	t.Run("unverified token rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{"firstName": "X"}, "bogus-token-value")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bound token accepted", func(t *testing.T) {
		token := env.login(t)
		rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{"firstName": "Augusta"}, token.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		id := env.expiredToken(t, testPhone)
		rec := env.do(t, http.MethodPut, "/users?phone="+testPhone, map[string]any{"firstName": "X"}, id)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestDeleteUser(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)
	token := env.login(t)

	rec := env.do(t, http.MethodDelete, "/users?phone="+testPhone, nil, token.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.users.GetUserByPhone(context.Background(), testPhone)
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestDeleteUserValidation(t *testing.T) {
	env := newEnv(t, false)
	env.signup(t)
	token := env.login(t)

	t.Run("missing phone", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/users", nil, token.ID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/users?phone="+testPhone, nil, "aaaaaaaaaaaaaaaaaaaa")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		const ghost = "5550001111"
		id, err := webutil.GenerateRandomString(auth.TokenIDLength)
		require.NoError(t, err)
		require.NoError(t, env.tokens.CreateToken(context.Background(), &models.Token{
			ID:      id,
			Phone:   ghost,
			Expires: time.Now().Add(time.Hour).UnixMilli(),
		}))

		rec := env.do(t, http.MethodDelete, "/users?phone="+ghost, nil, id)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUsersMethodNotAllowed(t *testing.T) {
	env := newEnv(t, false)

	rec := env.do(t, http.MethodPatch, "/users", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestPing(t *testing.T) {
	env := newEnv(t, false)

	rec := env.do(t, http.MethodGet, "/ping", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestUnmatchedPath(t *testing.T) {
	env := newEnv(t, false)

	rec := env.do(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}
