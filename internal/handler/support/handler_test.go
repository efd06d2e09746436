package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/campusmind/portal/backend/internal/service/mail"
)

type stubMailer struct {
	err  error
	last mail.SupportRequest
}

func (s *stubMailer) SendSupportEmail(_ context.Context, req mail.SupportRequest) error {
	s.last = req
	return s.err
}

func send(t *testing.T, mailer Mailer, body string) (int, string) {
	t.Helper()
	r := chi.NewRouter()
	New(mailer, "").RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/support/email", strings.NewReader(body)))

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Code, out.Message
}

func TestSupportEmailSent(t *testing.T) {
	mailer := &stubMailer{}
	code, msg := send(t, mailer, `{"fromEmail":"sam@uni.edu","subject":"Help","body":"Hi"}`)
	if code != http.StatusOK || msg != msgSent {
		t.Fatalf("unexpected response %d %q", code, msg)
	}
	if mailer.last.ToEmail != defaultToEmail {
		t.Fatalf("expected default recipient, got %q", mailer.last.ToEmail)
	}
}

func TestSupportEmailIgnoresRequestedRecipient(t *testing.T) {
	mailer := &stubMailer{}
	code, _ := send(t, mailer, `{"toEmail":"victim@elsewhere.test","fromEmail":"sam@uni.edu","subject":"Help","body":"Hi"}`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if mailer.last.ToEmail != defaultToEmail {
		t.Fatalf("recipient must stay %q, got %q", defaultToEmail, mailer.last.ToEmail)
	}
	if mailer.last.FromEmail != "sam@uni.edu" {
		t.Fatalf("unexpected sender %q", mailer.last.FromEmail)
	}
}

func TestSupportEmailUsesConfiguredRecipient(t *testing.T) {
	mailer := &stubMailer{}
	r := chi.NewRouter()
	New(mailer, " help@campusmind.app ").RegisterRoutes(r)

	resp := httptest.NewRecorder()
	body := `{"toEmail":"other@uni.edu","subject":"Help","body":"Hi"}`
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/support/email", strings.NewReader(body)))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if mailer.last.ToEmail != "help@campusmind.app" {
		t.Fatalf("unexpected recipient %q", mailer.last.ToEmail)
	}
}

func TestSupportEmailErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{err: fmt.Errorf("%w: subject and body are required", mail.ErrInvalidForm), code: http.StatusBadRequest, msg: msgInvalidForm},
		{err: mail.ErrNotConfigured, code: http.StatusServiceUnavailable, msg: msgConnect},
		{err: fmt.Errorf("%w: dial tcp", mail.ErrConnect), code: http.StatusServiceUnavailable, msg: msgConnect},
		{err: errors.New("550 mailbox unavailable"), code: http.StatusInternalServerError, msg: msgSendFailed},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			code, msg := send(t, &stubMailer{err: tc.err}, `{"subject":"Help","body":"Hi"}`)
			if code != tc.code || msg != tc.msg {
				t.Fatalf("expected %d %q, got %d %q", tc.code, tc.msg, code, msg)
			}
		})
	}
}

func TestSupportEmailBadJSON(t *testing.T) {
	code, msg := send(t, &stubMailer{}, `not json`)
	if code != http.StatusBadRequest || msg != msgInvalidForm {
		t.Fatalf("unexpected response %d %q", code, msg)
	}
}
