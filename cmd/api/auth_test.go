package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/store"
)

type stubUsersStore struct {
	byEmail map[string]*store.User
	nextID  int64
}

func newStubUsersStore() *stubUsersStore {
	return &stubUsersStore{byEmail: make(map[string]*store.User)}
}

func (s *stubUsersStore) Create(ctx context.Context, u *store.User) error {
	if _, ok := s.byEmail[u.Email]; ok {
		return store.ErrConflict
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now()
	s.byEmail[u.Email] = u
	return nil
}

func (s *stubUsersStore) GetByID(ctx context.Context, id int64) (*store.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubUsersStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func postJSON(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return executeRequest(req, mux)
}

func TestRegisterUser(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	rr := postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)
	rr := postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"0therPass!"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	tests := []struct {
		name string
		body string
	}{
		{"bad email", `{"email":"not-an-email","password":"sw0rdfish99"}`},
		{"short password", `{"email":"jo@example.com","password":"short"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(t, mux, "/api/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	rr := postJSON(t, mux, "/api/login", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Data.Token)
	assert.NotEmpty(t, resp.Data.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	rr := postJSON(t, mux, "/api/login", `{"email":"jo@example.com","password":"wrong-pass"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	rr := postJSON(t, mux, "/api/login", `{"email":"ghost@example.com","password":"whatever99"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefreshToken(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)
	login := postJSON(t, mux, "/api/login", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	var loginResp struct {
		Data struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(login.Body).Decode(&loginResp))

	rr := postJSON(t, mux, "/api/refresh", `{"refresh_token":"`+loginResp.Data.RefreshToken+`"}`)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Data.Token)
	assert.NotEmpty(t, resp.Data.RefreshToken)

	// the fresh access token works against a guarded route
	req := httptest.NewRequest(http.MethodGet, "/api/protected_route", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Data.Token)
	assert.Equal(t, http.StatusOK, executeRequest(req, mux).Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)
	login := postJSON(t, mux, "/api/login", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(login.Body).Decode(&loginResp))

	// signed with the access secret, must not pass refresh validation
	rr := postJSON(t, mux, "/api/refresh", `{"refresh_token":"`+loginResp.Data.Token+`"}`)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	rr := postJSON(t, mux, "/api/refresh", `{"refresh_token":"not-a-jwt"}`)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProtectedRoute(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)
	login := postJSON(t, mux, "/api/login", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(login.Body).Decode(&resp))

	req := httptest.NewRequest(http.MethodGet, "/api/protected_route", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Data.Token)
	rr := executeRequest(req, mux)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	rr := executeRequest(httptest.NewRequest(http.MethodGet, "/api/protected_route", nil), mux)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
