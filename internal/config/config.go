package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	DBHost      string `envconfig:"DB_HOST" required:"true"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" required:"true"`
	DBPassword  string `envconfig:"DB_PASSWORD" required:"true"`
	DBName      string `envconfig:"DB_NAME" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// Photo archive storage (S3-compatible)
	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Redis (premium flag cache)
	RedisURL           string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	PremiumCacheTTLSec int    `envconfig:"PREMIUM_CACHE_TTL_SEC" default:"300"`

	// Vision analysis provider
	VisionServiceBaseURL    string `envconfig:"VISION_SERVICE_BASE_URL" required:"true"`
	VisionAPIKey            string `envconfig:"VISION_API_KEY"` // fetched from Secret Manager when empty
	VisionSecretName        string `envconfig:"VISION_SECRET_NAME" default:"vision-api-key"`
	VisionRequestTimeoutSec int    `envconfig:"VISION_REQUEST_TIMEOUT_SEC" default:"60"`

	// Analysis cache tuning
	SimilarityThreshold int `envconfig:"SIMILARITY_THRESHOLD" default:"5"`
	CacheScanWindow     int `envconfig:"CACHE_SCAN_WINDOW" default:"50"`
	CacheTTLDays        int `envconfig:"CACHE_TTL_DAYS" default:"30"`

	// Free-tier feature limits
	MealScanDailyLimit         int `envconfig:"MEAL_SCAN_DAILY_LIMIT" default:"3"`
	LabelScanDailyLimit        int `envconfig:"LABEL_SCAN_DAILY_LIMIT" default:"3"`
	ProgressScanWeeklyLimit    int `envconfig:"PROGRESS_SCAN_WEEKLY_LIMIT" default:"1"`
	MealReplacementAdThreshold int `envconfig:"MEAL_REPLACEMENT_AD_THRESHOLD" default:"1"`

	// Expiry sweep settings
	PurgeQueueName      string `envconfig:"PURGE_QUEUE_NAME" default:"cache_purge_queue"`
	SweepPollTimeoutSec int    `envconfig:"SWEEP_POLL_TIMEOUT_SEC" default:"30"`
	SweepPollMaxMsg     int    `envconfig:"SWEEP_POLL_MAX_MSG" default:"10"`
	SweepIntervalSec    int    `envconfig:"SWEEP_INTERVAL_SEC" default:"3600"`

	// Pub/Sub (ad-network postbacks + audit fan-out)
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	AdRewardAuditTopic            string `envconfig:"AD_REWARD_AUDIT_TOPIC" default:"ad-reward-audit"`
	AdPostbackEndpointURL         string `envconfig:"AD_POSTBACK_ENDPOINT_URL"`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`

	// Stripe
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceMonthly    string `envconfig:"STRIPE_PRICE_MONTHLY"`
	StripePriceAnnual     string `envconfig:"STRIPE_PRICE_ANNUAL"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL"`
	StripeFreePlanID      string `envconfig:"STRIPE_FREE_PLAN_ID" default:"free"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DatabaseURL builds the Postgres connection string from the DB_* settings.
func (c *Config) DatabaseURL() string {
	sslmode := "require"
	if c.Environment == "development" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, sslmode)
}
