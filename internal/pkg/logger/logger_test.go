package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithServiceAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Level: "info", AppEnv: "production", Service: "cims-otp"})

	ctx := context.WithValue(context.Background(), chimiddleware.RequestIDKey, "req-42")
	log.InfoContext(ctx, "otp issued", "phone_ref", "ab12")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "otp issued", line["msg"])
	assert.Equal(t, "cims-otp", line["service"])
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "ab12", line["phone_ref"])
}

func TestNew_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Format: "json"})

	log.With("phone", "+15551234567").Info("debugging", "code", "004211", slog.Group("req", slog.String("otp", "004211")))

	out := buf.String()
	assert.NotContains(t, out, "004211")
	assert.NotContains(t, out, "+15551234567")
	assert.Contains(t, out, `"code":"***"`)
}

func TestNew_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Level: "warn", AppEnv: "development"})

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "msg=shown")
}
