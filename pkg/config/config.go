package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Orders   OrdersConfig
	Returns  ReturnsConfig
	Shipping ShippingConfig
	Eventing EventingConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`

	AutoMigrateDev bool   `envconfig:"STOREFRONT_DB_AUTO_MIGRATE_DEV" default:"false"`
	MigrationsDir  string `envconfig:"STOREFRONT_DB_MIGRATIONS_DIR" default:"pkg/migrate/migrations"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	// ExpirationMinutes only matters for tokens minted by local tooling and tests.
	ExpirationMinutes int `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// OrdersConfig controls order and return number generation.
type OrdersConfig struct {
	NumberPrefix       string `envconfig:"STOREFRONT_ORDER_NUMBER_PREFIX" default:"ORD"`
	ReturnNumberPrefix string `envconfig:"STOREFRONT_RETURN_NUMBER_PREFIX" default:"RET"`
	NumberingStrategy  string `envconfig:"STOREFRONT_NUMBERING_STRATEGY" default:"counter"`
}

func (o OrdersConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.NumberingStrategy)) {
	case NumberingCounter, NumberingULID:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvNumberingStrategy, NumberingCounter, NumberingULID)
	}
}

// ReturnsConfig holds the fallback policy used when no default policy is stored.
type ReturnsConfig struct {
	FallbackWindowDays       int           `envconfig:"STOREFRONT_RETURNS_WINDOW_DAYS" default:"30"`
	FallbackRefundWindowDays int           `envconfig:"STOREFRONT_RETURNS_REFUND_WINDOW_DAYS" default:"45"`
	FlatShippingFee          string        `envconfig:"STOREFRONT_RETURNS_FLAT_SHIPPING_FEE" default:"9.99"`
	RefundClaimLease         time.Duration `envconfig:"STOREFRONT_RETURNS_REFUND_CLAIM_LEASE" default:"2m"`
}

type ShippingConfig struct {
	ReturnCarrier string `envconfig:"STOREFRONT_SHIPPING_RETURN_CARRIER" default:"USPS"`
	LabelBaseURL  string `envconfig:"STOREFRONT_SHIPPING_LABEL_BASE_URL" default:"https://labels.example.com/returns"`
}

type EventingConfig struct {
	PublisherEnabled bool `envconfig:"STOREFRONT_EVENTING_PUBLISHER_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	// PubSubEndpoint points the client at an emulator, e.g. "localhost:8085".
	PubSubEndpoint string `envconfig:"STOREFRONT_PUBSUB_ENDPOINT"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-order-events"`
	ReturnsTopic string `envconfig:"STOREFRONT_PUBSUB_RETURNS_TOPIC" default:"storefront-return-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"24h"`
	GuestCartTTLDays int           `envconfig:"STOREFRONT_CRON_GUEST_CART_TTL_DAYS" default:"30"`
	// MetricsAddr exposes /metrics for the worker when set, e.g. ":9102".
	MetricsAddr string `envconfig:"STOREFRONT_CRON_METRICS_ADDR"`
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
