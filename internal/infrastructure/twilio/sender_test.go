package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSMS_PostsForm(t *testing.T) {
	var (
		gotPath, gotUser, gotPass, gotType string
		gotTo, gotFrom, gotBody         string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotTo, gotFrom, gotBody = r.PostForm.Get("To"), r.PostForm.Get("From"), r.PostForm.Get("Body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	s := NewSender(srv.URL+"/", "AC123", "secret", "+15550001111")
	err := s.SendSMS(context.Background(), "+15551234567", "Your CIMS verification code is: 004211. Valid for 5 minutes.")
	require.NoError(t, err)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Contains(t, gotType, "application/x-www-form-urlencoded")
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "+15550001111", gotFrom)
	assert.Equal(t, "Your CIMS verification code is: 004211. Valid for 5 minutes.", gotBody)
}

func TestSendSMS_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number +15551234567 is not a valid phone number.","status":400}`))
	}))
	defer srv.Close()

	err := NewSender(srv.URL, "AC123", "secret", "+15550001111").SendSMS(context.Background(), "+15551234567", "x")
	require.Error(t, err)
	assert.EqualError(t, err, "twilio: status 400: code 21211")
	assert.NotContains(t, err.Error(), "+15551234567")
}

func TestSendSMS_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	err := NewSender(srv.URL, "AC123", "secret", "+15550001111").SendSMS(context.Background(), "+15551234567", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.NotContains(t, err.Error(), "+15551234567")
}

func TestSendSMS_ContextCancelled(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSender(srv.URL, "AC123", "secret", "+15550001111").SendSMS(ctx, "+15551234567", "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestNewSender_DefaultBaseURL(t *testing.T) {
	s := NewSender("", "AC123", "secret", "+15550001111")
	assert.Equal(t, DefaultBaseURL, s.baseURL)
}

func TestBaseURLTransport_RewritesHost(t *testing.T) {
	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "AC123", "secret", "+15550001111")
	assert.Equal(t, srv.URL, s.baseURL)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, DefaultBaseURL+"/2010-04-01/Accounts.json", nil)
	require.NoError(t, err)
	resp, err := (&baseURLTransport{base: base, next: http.DefaultTransport}).RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, srv.Listener.Addr().String(), gotHost)
}
