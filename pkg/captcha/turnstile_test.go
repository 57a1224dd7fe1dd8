package captcha_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/pkg/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSiteverify(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("response") == "good" {
			w.Write([]byte(`{"success":true,"error-codes":[]}`))
			return
		}
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify(t *testing.T) {
	srv := newSiteverify(t)
	v := captcha.New("secret", captcha.WithEndpoint(srv.URL), captcha.WithHTTPClient(srv.Client()))

	assert.NoError(t, v.Verify(context.Background(), "good", "127.0.0.1"))
	assert.ErrorIs(t, v.Verify(context.Background(), "bad", ""), errorvalues.ErrCaptchaFailed)
	assert.ErrorIs(t, v.Verify(context.Background(), "  ", ""), errorvalues.ErrCaptchaMissing)
}

func TestVerifyDisabled(t *testing.T) {
	v := captcha.New("")
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify(context.Background(), "", ""))
}
