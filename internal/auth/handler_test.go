package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/psi-backoffice/psi/internal/auth"
	"github.com/psi-backoffice/psi/internal/shared"
	"github.com/psi-backoffice/psi/internal/view"
	_ "github.com/psi-backoffice/psi/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = map[string]int64{}
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	handler := auth.NewHandler(nil, auth.NewService(repo), templates, sessionManager, csrfManager)
	return handler, sessionManager
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{ID: 1, OrganizationID: 4, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}
}

// postLogin primes a session through the login page and submits credentials with it.
func postLogin(t *testing.T, handler *auth.Handler, sm *shared.SessionManager, email, password string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	getReq := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sm.Load(context.Background(), getReq)
	require.NoError(t, err)
	getCtx := shared.ContextWithSession(getReq.Context(), sess)
	getReq = getReq.WithContext(getCtx)
	getRes := httptest.NewRecorder()
	handler.ShowLoginForTest(getRes, getReq)
	require.NoError(t, sm.Commit(getCtx, getRes, getReq, sess))

	token := sess.Get(shared.CSRFSessionKey)
	require.NotEmpty(t, token, "csrf token not set")

	postData := url.Values{}
	postData.Set("email", email)
	postData.Set("password", password)
	postData.Set("csrf_token", token)
	postReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})

	loaded, err := sm.Load(context.Background(), postReq)
	require.NoError(t, err)
	postCtx := shared.ContextWithSession(postReq.Context(), loaded)
	postReq = postReq.WithContext(postCtx)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, postReq)
	require.NoError(t, sm.Commit(postCtx, res, postReq, loaded))
	return res, loaded
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)
	require.NoError(t, sessionManager.Commit(ctx, res, req, sess))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	handler, sessionManager := newAuthHandler(t, repo)

	res, sess := postLogin(t, handler, sessionManager, "user@test.local", "wrongpass")

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
	_, ok := sess.Actor()
	assert.False(t, ok)
	assert.Empty(t, repo.sessions)
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "correctpass")
	user.IsActive = false
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: user})

	res, _ := postLogin(t, handler, sessionManager, "user@test.local", "correctpass")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginBindsActor(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	handler, sessionManager := newAuthHandler(t, repo)

	res, sess := postLogin(t, handler, sessionManager, "user@test.local", "correctpass")

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/sales/orders", res.Header().Get("Location"))
	actor, ok := sess.Actor()
	require.True(t, ok)
	assert.Equal(t, shared.Actor{UserID: 1, OrganizationID: 4}, actor)
	assert.Equal(t, int64(1), repo.sessions[sess.ID])

	// the actor survives a round trip through redis
	next := httptest.NewRequest(http.MethodGet, "/sales/orders", nil)
	next.AddCookie(&http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID})
	reloaded, err := sessionManager.Load(context.Background(), next)
	require.NoError(t, err)
	got, ok := reloaded.Actor()
	require.True(t, ok)
	assert.Equal(t, actor, got)
}

type failingRepo struct{ stubRepo }

func (failingRepo) FindByEmail(context.Context, string) (*auth.User, error) {
	return nil, errors.New("connection refused")
}

func TestAuthenticateSurfacesRepositoryFailure(t *testing.T) {
	svc := auth.NewService(&failingRepo{})
	_, err := svc.Authenticate(context.Background(), "user@test.local", "correctpass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginRotatesSessionID(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass")}
	handler, sessionManager := newAuthHandler(t, repo)

	res, after := postLogin(t, handler, sessionManager, "user@test.local", "correctpass")
	var issued string
	// the session is committed after the redirect header, so read the live header map
	for _, c := range (&http.Response{Header: res.Header()}).Cookies() {
		if c.Name == sessionManager.CookieName() {
			issued = c.Value
		}
	}
	assert.Equal(t, after.ID, issued)
	require.Len(t, repo.sessions, 1)
	assert.Contains(t, repo.sessions, after.ID)
	assert.Empty(t, after.Get(shared.CSRFSessionKey), "token is reissued for the signed-in session")
}
