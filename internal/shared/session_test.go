package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "cargotrail_session", "test-secret", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sess.SetUser("42")
	sess.Set("theme", "dark")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	require.Equal(t, "42", loaded.User())
	require.Equal(t, "dark", loaded.Get("theme"))
}

func TestSessionFlashPopsOnce(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sess.AddFlash(FlashMessage{Kind: "info", Message: "saved"})
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "saved", flash.Message)
	require.Nil(t, sess.PopFlash())
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	csrf := NewCSRFManager("csrf-secret")
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(ctx, sess, token))
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, "forged"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
}
