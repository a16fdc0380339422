package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Plans        PlansConfig
	Checkout     CheckoutConfig
	Eventing     EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ENROLLHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"ENROLLHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ENROLLHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ENROLLHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ENROLLHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ENROLLHUB_DB_DSN"`
	Driver string `envconfig:"ENROLLHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENROLLHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"ENROLLHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENROLLHUB_DB_USER"`
	LegacyPassword string `envconfig:"ENROLLHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENROLLHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENROLLHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENROLLHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENROLLHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENROLLHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENROLLHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENROLLHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ENROLLHUB_REDIS_ADDR"`
	Password     string        `envconfig:"ENROLLHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENROLLHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENROLLHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENROLLHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENROLLHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENROLLHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENROLLHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ENROLLHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ENROLLHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ENROLLHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ENROLLHUB_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ENROLLHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ENROLLHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ENROLLHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"ENROLLHUB_PUBSUB_NOTIFICATION_TOPIC" default:"eh-notification-events"`
	NotificationSubscription string `envconfig:"ENROLLHUB_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsTopic           string `envconfig:"ENROLLHUB_PUBSUB_ANALYTICS_TOPIC" default:"eh-payment-facts"`
	AnalyticsSubscription    string `envconfig:"ENROLLHUB_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"ENROLLHUB_BIGQUERY_DATASET" default:"enrollhub"`
	PaymentFactsTable string `envconfig:"ENROLLHUB_BIGQUERY_PAYMENT_FACTS_TABLE" default:"payment_facts"`
}

type OutboxConfig struct {
	BatchSize        int           `envconfig:"ENROLLHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS   int           `envconfig:"ENROLLHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts      int           `envconfig:"ENROLLHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionPeriod  time.Duration `envconfig:"ENROLLHUB_OUTBOX_RETENTION" default:"720h"`
	EffectsBatchSize int           `envconfig:"ENROLLHUB_OUTBOX_EFFECTS_BATCH_SIZE" default:"25"`
}

type PlansConfig struct {
	DefaultValidityDays int           `envconfig:"ENROLLHUB_PLANS_DEFAULT_VALIDITY_DAYS" default:"365"`
	ExpirySweepInterval time.Duration `envconfig:"ENROLLHUB_PLANS_EXPIRY_SWEEP_INTERVAL" default:"1h"`
}

type CheckoutConfig struct {
	AbandonedCartTTL time.Duration `envconfig:"ENROLLHUB_CHECKOUT_ABANDONED_CART_TTL" default:"72h"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"ENROLLHUB_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
