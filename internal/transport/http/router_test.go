package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/cims-otp/internal/config"
	jwtinfra "github.com/cims-otp/internal/infrastructure/jwt"
	"github.com/cims-otp/internal/infrastructure/memory"
	"github.com/cims-otp/internal/pkg/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`code is: (\d{6})\.`)

// inbox records every SMS instead of sending it.
type inbox struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (b *inbox) SendSMS(_ context.Context, to, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sent == nil {
		b.sent = make(map[string][]string)
	}
	b.sent[to] = append(b.sent[to], message)
	return nil
}

func (b *inbox) lastCode(t *testing.T, to string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.sent[to]
	require.NotEmpty(t, msgs)
	m := codePattern.FindStringSubmatch(msgs[len(msgs)-1])
	require.Len(t, m, 2)
	return m[1]
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.RateLimitRPS = 1000
	cfg.RateLimitBurst = 1000
	return cfg
}

func call(t *testing.T, h http.Handler, target string, body map[string]string, header http.Header) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return rr.Code, out
}

func TestRouter_SendThenVerify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sms := &inbox{}
	h := NewRouter(ctx, testConfig(), &Deps{Store: memory.NewStore(clk), SMSSender: sms, Clock: clk})
	phone := "+15551234567"

	status, body := call(t, h, "/v1/send-otp", map[string]string{"phone": phone, "action": "send"}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP sent successfully", body["message"])

	code := sms.lastCode(t, phone)
	assert.Contains(t, sms.sent[phone][0], "Valid for 5 minutes.")

	status, body = call(t, h, "/v1/otp/verify", map[string]string{"phone": phone, "otp": code}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["verified"])

	// the code is single use
	status, body = call(t, h, "/v1/otp/verify", map[string]string{"phone": phone, "otp": code}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "not_found", body["reason"])
}

func TestRouter_NoSMSProvider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRouter(ctx, testConfig(), &Deps{Store: memory.NewStore(nil)})

	status, body := call(t, h, "/v1/otp/send", map[string]string{"phone": "+15551234567"}, nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "SMS service not configured", body["error"])
}

func TestRouter_BearerGate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPath := filepath.Join(t.TempDir(), "identity.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))
	verifier, err := jwtinfra.NewVerifier(pubPath)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.IdentityAllowedRoles = []string{"authenticated"}
	h := NewRouter(ctx, cfg, &Deps{Store: memory.NewStore(nil), SMSSender: &inbox{}, Verifier: verifier})

	bearer := func(role string) http.Header {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &jwtinfra.Claims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString(key)
		require.NoError(t, err)
		return http.Header{"Authorization": {"Bearer " + signed}}
	}
	req := map[string]string{"phone": "+15551234567"}

	status, _ := call(t, h, "/v1/otp/send", req, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, h, "/v1/otp/send", req, bearer("anon"))
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, h, "/v1/otp/send", req, bearer("authenticated"))
	assert.Equal(t, http.StatusOK, status)

	// health checks stay public
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRouter(ctx, testConfig(), &Deps{Store: memory.NewStore(nil)})

	req := httptest.NewRequest(http.MethodOptions, "/v1/send-otp", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "apikey, x-client-info, content-type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Headers"))
}
