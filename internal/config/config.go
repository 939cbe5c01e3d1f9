package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `validate:"required"`
	AppEnv   string `validate:"oneof=development staging production test"`
	LogLevel string `validate:"oneof=debug info warn error"`
	// LogFormat empty means text in development, JSON elsewhere.
	LogFormat string `validate:"omitempty,oneof=text json"`

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	StoreDriver  string `validate:"oneof=dynamo redis memory"`
	DynamoTables DynamoTables
	RedisURL     string `validate:"required_if=StoreDriver redis"`

	SMSProvider   string `validate:"oneof=sns twilio"`
	SNSRegion     string
	SNSSenderID   string
	TwilioBaseURL string
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string

	OTP OTPPolicy

	IdentityJWTPublicKeyPath string   // empty disables the bearer-token gate
	IdentityAllowedRoles     []string // empty allows any authenticated role

	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"gt=0"`
	// TrustProxyHeaders keys the per-IP limiter on X-Forwarded-For / X-Real-Ip.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
	AllowedOrigins    []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OTPRecords   string `validate:"required"`
	OTPIssuances string `validate:"required"`
}

// OTPPolicy holds the issuance and verification limits.
type OTPPolicy struct {
	TTL         time.Duration `validate:"gt=0"`
	MaxAttempts int           `validate:"gt=0"`
	IssueLimit  int           `validate:"gt=0"`
	IssueWindow time.Duration `validate:"gt=0"`
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:   getEnv("APP_PORT", "3000"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		StoreDriver: getEnv("STORE_DRIVER", "dynamo"),
		DynamoTables: DynamoTables{
			OTPRecords:   getEnv("DYNAMO_TABLE_OTP_RECORDS", "otp_records"),
			OTPIssuances: getEnv("DYNAMO_TABLE_OTP_ISSUANCES", "otp_issuances"),
		},
		RedisURL: getEnv("REDIS_URL", ""),

		SMSProvider:   getEnv("SMS_PROVIDER", "sns"),
		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		SNSSenderID:   getEnv("SNS_SENDER_ID", ""),
		TwilioBaseURL: getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:    getEnv("TWILIO_PHONE_NUMBER", ""),

		OTP: OTPPolicy{
			TTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
			MaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 5),
			IssueLimit:  getEnvInt("OTP_ISSUE_LIMIT", 3),
			IssueWindow: getEnvDuration("OTP_ISSUE_WINDOW", time.Hour),
		},

		IdentityJWTPublicKeyPath: getEnv("IDENTITY_JWT_PUBLIC_KEY_PATH", ""),
		IdentityAllowedRoles:     getEnvList("IDENTITY_ALLOWED_ROLES"),

		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvDuration accepts Go duration strings ("5m", "90s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
