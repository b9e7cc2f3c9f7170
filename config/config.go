package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	KVBackendPostgres = "postgres"
	KVBackendRedis    = "redis"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	AppPort       int
	PublicBaseURL string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	KVBackend     string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	BackendBaseURL string
	BackendTimeout time.Duration
	BackendRetries int

	DriverBotToken      string
	TransporterBotToken string

	PendingSubscriptionTTL time.Duration
	PollAttempts           int
	PollInterval           time.Duration
	CheckoutTimeout        time.Duration
	CheckoutThemeColor     string
	CheckoutDisplayName    string

	CertificateDir         string
	VideoProgressExclusive bool
	PendingSweepSpec       string
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "truckmitr"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))
	cfg.PublicBaseURL = cast.ToString(getOrReturnDefault("PUBLIC_BASE_URL", "http://localhost:8080"))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "truckmitr"))

	cfg.KVBackend = cast.ToString(getOrReturnDefault("KV_BACKEND", KVBackendPostgres))
	cfg.RedisHost = cast.ToString(getOrReturnDefault("REDIS_HOST", "localhost"))
	cfg.RedisPort = cast.ToString(getOrReturnDefault("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))
	cfg.RedisDB = cast.ToInt(getOrReturnDefault("REDIS_DB", 0))

	cfg.BackendBaseURL = cast.ToString(getOrReturnDefault("BACKEND_BASE_URL", "https://api.truckmitr.com/api"))
	cfg.BackendTimeout = cast.ToDuration(getOrReturnDefault("BACKEND_TIMEOUT", "15s"))
	cfg.BackendRetries = cast.ToInt(getOrReturnDefault("BACKEND_RETRIES", 0))

	cfg.DriverBotToken = cast.ToString(getOrReturnDefault("DRIVER_BOT_TOKEN", ""))
	cfg.TransporterBotToken = cast.ToString(getOrReturnDefault("TRANSPORTER_BOT_TOKEN", ""))

	cfg.PendingSubscriptionTTL = cast.ToDuration(getOrReturnDefault("PENDING_SUBSCRIPTION_TTL", "24h"))
	cfg.PollAttempts = cast.ToInt(getOrReturnDefault("SUBSCRIPTION_POLL_ATTEMPTS", 5))
	cfg.PollInterval = cast.ToDuration(getOrReturnDefault("SUBSCRIPTION_POLL_INTERVAL", "3s"))
	cfg.CheckoutTimeout = cast.ToDuration(getOrReturnDefault("CHECKOUT_TIMEOUT", "15m"))
	cfg.CheckoutThemeColor = cast.ToString(getOrReturnDefault("CHECKOUT_THEME_COLOR", "#246BFD"))
	cfg.CheckoutDisplayName = cast.ToString(getOrReturnDefault("CHECKOUT_DISPLAY_NAME", "TruckMitr"))

	cfg.CertificateDir = cast.ToString(getOrReturnDefault("CERTIFICATE_DIR", "./certificates"))
	cfg.VideoProgressExclusive = cast.ToBool(getOrReturnDefault("VIDEO_PROGRESS_EXCLUSIVE", true))
	cfg.PendingSweepSpec = cast.ToString(getOrReturnDefault("PENDING_SWEEP_SPEC", "@hourly"))

	return cfg
}

func (c Config) PostgresURL() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword + "@" + c.PostgresHost + ":" + c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

func (c Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
