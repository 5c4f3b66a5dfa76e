package types

import "time"

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	DatabaseSchema  string `envconfig:"DATABASE_SCHEMA" default:"causeconnect"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	// Tokens
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	// Refresh cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	RefreshCookieName string `envconfig:"REFRESH_COOKIE_NAME" default:"cc_refresh"`
	CookieHashKey     string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey    string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes

	// Cognito backs the admin login path only
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `envconfig:"COGNITO_CLIENT_ID"`
	CognitoIssuerURL  string `envconfig:"COGNITO_ISSUER_URL"`

	// Mail
	SMTPHost       string `envconfig:"SMTP_HOST"`
	SMTPPort       int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"SMTP_PASSWORD"`
	EmailFrom      string `envconfig:"EMAIL_FROM" default:"CauseConnect <noreply@causeconnect.org>"`
	SMTPTimeoutSec uint   `envconfig:"SMTP_TIMEOUT_SEC" default:"20"`
	FrontendURL    string `envconfig:"FRONTEND_URL" default:"http://localhost:8080"`

	// Uploads
	StorageDriver   string `envconfig:"STORAGE_DRIVER" default:"local"`
	UploadsDir      string `envconfig:"UPLOADS_DIR" default:"uploads"`
	S3BucketName    string `envconfig:"S3_BUCKET_NAME"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	// Hosts logo checks may fetch remote artwork from
	LogoFetchHosts []string `envconfig:"LOGO_FETCH_HOSTS"`

	// Payments
	StripeSecretKey            string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret        string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	PaymentSigningSecret       string `envconfig:"PAYMENT_SIGNING_SECRET"`
	DefaultCurrency            string `envconfig:"DEFAULT_CURRENCY" default:"inr"`
	SponsorshipAutoApprovePaid bool   `envconfig:"SPONSORSHIP_AUTO_APPROVE_PAID" default:"false"`
	ToteUnitPrice              int64  `envconfig:"TOTE_UNIT_PRICE" default:"10"`

	// OTP throttling, disabled when RedisAddr is empty
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD"`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	OTPRequestLimit  int64         `envconfig:"OTP_REQUEST_LIMIT" default:"5"`
	OTPRequestWindow time.Duration `envconfig:"OTP_REQUEST_WINDOW" default:"15m"`

	MetricsNamespace       string `envconfig:"METRICS_NAMESPACE" default:"causeconnect"`
	ExternalCallTimeoutSec uint   `envconfig:"EXTERNAL_CALL_TIMEOUT_SEC" default:"10"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) ExternalCallTimeout() time.Duration {
	return time.Duration(c.ExternalCallTimeoutSec) * time.Second
}

func (c *Config) AdminLoginEnabled() bool {
	return c.CognitoClientID != "" && c.CognitoIssuerURL != ""
}
