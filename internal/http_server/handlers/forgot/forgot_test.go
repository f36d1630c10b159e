package forgot

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/mwx2006/blessing-skin-server/internal/auth"
	resp "github.com/mwx2006/blessing-skin-server/internal/lib/api/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The recovery endpoint's code contract: frequent mail and a failed
// dispatch answer with the conflict code, an unregistered email with
// the plain failure code.
func TestWriteForgotErrorCodes(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"recovery disabled", auth.ErrRecoveryDisabled, resp.CodeForbidden},
		{"bad captcha", auth.ErrBadCaptcha, resp.CodeFailed},
		{"mail cooldown", auth.ErrMailCooldown, resp.CodeConflict},
		{"unregistered email", auth.ErrUnknownUser, resp.CodeFailed},
		{"dispatch failure", &auth.MailDispatchError{Err: errors.New("smtp: connection refused")}, resp.CodeConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("POST", "/auth/forgot", nil)

			writeForgotError(w, r, log, tc.err)

			var body resp.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
		})
	}
}
