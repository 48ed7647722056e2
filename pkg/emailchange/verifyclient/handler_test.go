package verifyclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralis/accountd/pkg/emailchange"
)

func verifyServer(t *testing.T, respond func(token string) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		code, status := respond(req.Token)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status, "message": "test"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleLink(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		srv := verifyServer(t, func(token string) (int, string) {
			assert.Equal(t, "good-token", token)
			return http.StatusOK, string(emailchange.StatusSuccess)
		})

		var redirected atomic.Bool
		handler := NewHandler(srv.URL,
			WithRedirectDelay(10*time.Millisecond),
			WithOnRedirect(func() { redirected.Store(true) }),
		)

		status, err := handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change?token=good-token")
		require.NoError(t, err)
		assert.Equal(t, emailchange.StatusSuccess, status)
		assert.Equal(t, emailchange.StatusSuccess, handler.Status())

		assert.Eventually(t, redirected.Load, time.Second, 5*time.Millisecond, "redirect should fire after the delay")
	})

	t.Run("ExpiredQueryParamShortCircuits", func(t *testing.T) {
		called := false
		srv := verifyServer(t, func(string) (int, string) {
			called = true
			return http.StatusOK, ""
		})
		handler := NewHandler(srv.URL)

		status, err := handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change?error=expired")
		assert.ErrorIs(t, err, emailchange.ErrTokenExpired)
		assert.Equal(t, emailchange.StatusExpired, status)
		assert.False(t, called, "resolver must not be called for pre-classified links")
	})

	t.Run("OtherErrorParam", func(t *testing.T) {
		handler := NewHandler("http://unused.invalid")

		status, err := handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change?error=denied")
		assert.Error(t, err)
		assert.Equal(t, emailchange.StatusError, status)
	})

	t.Run("MissingToken", func(t *testing.T) {
		handler := NewHandler("http://unused.invalid")

		status, err := handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change")
		assert.ErrorIs(t, err, emailchange.ErrInvalidToken)
		assert.Equal(t, emailchange.StatusError, status)
		assert.Equal(t, emailchange.StatusError, handler.Status())
	})

	t.Run("ExpiredResponseBody", func(t *testing.T) {
		srv := verifyServer(t, func(string) (int, string) {
			return http.StatusBadRequest, string(emailchange.StatusExpired)
		})
		handler := NewHandler(srv.URL)

		status, err := handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change?token=stale")
		assert.ErrorIs(t, err, emailchange.ErrTokenExpired)
		assert.Equal(t, emailchange.StatusExpired, status)
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := verifyServer(t, func(string) (int, string) {
			return http.StatusInternalServerError, string(emailchange.StatusError)
		})
		handler := NewHandler(srv.URL)

		status, err := handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change?token=whatever")
		assert.Error(t, err)
		assert.Equal(t, emailchange.StatusError, status)
	})

	t.Run("UnreachableEndpoint", func(t *testing.T) {
		handler := NewHandler("http://127.0.0.1:1",
			WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}))

		status, err := handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change?token=whatever")
		assert.Error(t, err)
		assert.Equal(t, emailchange.StatusError, status)
	})

	t.Run("NoRedirectOnFailure", func(t *testing.T) {
		srv := verifyServer(t, func(string) (int, string) {
			return http.StatusBadRequest, string(emailchange.StatusError)
		})
		var redirected atomic.Bool
		handler := NewHandler(srv.URL,
			WithRedirectDelay(time.Millisecond),
			WithOnRedirect(func() { redirected.Store(true) }),
		)

		_, _ = handler.HandleLink(ctx, "http://localhost:3000/en/verify-email-change?token=bad")
		time.Sleep(20 * time.Millisecond)
		assert.False(t, redirected.Load())
	})
}
