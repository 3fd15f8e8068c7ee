package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	NumberingCounter = "counter"
	NumberingULID    = "ulid"
)

const (
	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvPort              = "STOREFRONT_APP_PORT"
	EnvDBDSN             = "STOREFRONT_DB_DSN"
	EnvDBHost            = "STOREFRONT_DB_HOST"
	EnvDBUser            = "STOREFRONT_DB_USER"
	EnvDBName            = "STOREFRONT_DB_NAME"
	EnvDBPassword        = "STOREFRONT_DB_PASSWORD"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvJWTSecret         = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer         = "STOREFRONT_JWT_ISSUER"
	EnvNumberingStrategy = "STOREFRONT_NUMBERING_STRATEGY"
	EnvReturnsWindowDays = "STOREFRONT_RETURNS_WINDOW_DAYS"
	EnvReturnsFlatFee    = "STOREFRONT_RETURNS_FLAT_SHIPPING_FEE"
	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrders      = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
