package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	AppPort    string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	JWTSecret  string
	RedisAddr  string
	RedisPass  string
	RedisDB    int
	IsProd     bool

	// Payment gateway
	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string        // also the webhook HMAC secret
	GatewayTimeout   time.Duration // per-call deadline; a timed-out verify leaves the order PENDING
	ReturnURL        string
	NotifyURL        string

	// Billing
	Timezone       string // business timezone; all day boundaries use it
	BillingHour    int    // hour of day the scheduler fires
	GracePeriodDay int    // day of month after which pending bills go overdue
	DepositEveryN  int    // every Nth delivery adds a bottle deposit charge
	DepositAmount  int64  // paise per deposit charge
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load()
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getenv("APP_PORT", "8080"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		RedisPass:  os.Getenv("REDIS_PASS"),
		RedisDB:    redisDB,
		IsProd:     os.Getenv("IS_PROD") == "true",

		GatewayBaseURL:   os.Getenv("GATEWAY_BASE_URL"),
		GatewayKeyID:     os.Getenv("GATEWAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		GatewayTimeout:   getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		ReturnURL:        os.Getenv("GATEWAY_RETURN_URL"),
		NotifyURL:        os.Getenv("GATEWAY_NOTIFY_URL"),

		Timezone:       getenv("BUSINESS_TIMEZONE", "Asia/Kolkata"),
		BillingHour:    getenvInt("BILLING_HOUR", 7),
		GracePeriodDay: getenvInt("GRACE_PERIOD_DAY", 10),
		DepositEveryN:  getenvInt("DEPOSIT_EVERY_N", 30),
		DepositAmount:  int64(getenvInt("DEPOSIT_AMOUNT_PAISE", 3500)),
	}
}

// DSN assembles the MySQL data source name.
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// Location resolves the business timezone, falling back to UTC if the name
// is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
