package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"leadpilot/models"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	Redis     *redis.Client
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ProviderConfig holds transactional email provider credentials
type ProviderConfig struct {
	APIKey        string `json:"-"`
	BaseURL       string `json:"base_url"`
	WebhookSecret string `json:"-"`
}

// QueueConfig holds push-queue/scheduler service credentials
type QueueConfig struct {
	URL        string `json:"url"`
	Token      string `json:"-"`
	SigningKey string `json:"-"`
	MaxRetries int    `json:"max_retries"`
}

// ScraperConfig holds third-party data-source credentials
type ScraperConfig struct {
	SerpAPIKey     string `json:"-"`
	SerpBaseURL    string `json:"serp_base_url"`
	PlacesAPIKey   string `json:"-"`
	PlacesBaseURL  string `json:"places_base_url"`
	DailyLimit     int    `json:"daily_limit"`
	ChromeHeadless bool   `json:"chrome_headless"`
}

type Config struct {
	Environment    string         `json:"environment"`
	ServerPort     string         `json:"server_port"`
	BaseURL        string         `json:"base_url"` // public URL for tracking/unsubscribe links
	DBHost         string         `json:"db_host"`
	DBPort         string         `json:"db_port"`
	DBUser         string         `json:"db_user"`
	DBPassword     string         `json:"-"`
	DBName         string         `json:"db_name"`
	DBSSLMode      string         `json:"db_ssl_mode"`
	DBMaxIdleConns int            `json:"db_max_idle_conns"`
	DBMaxOpenConns int            `json:"db_max_open_conns"`
	Redis          RedisConfig    `json:"redis"`
	Provider       ProviderConfig `json:"provider"`
	Queue          QueueConfig    `json:"queue"`
	Scraper        ScraperConfig  `json:"scraper"`
	SentryDSN      string         `json:"-"`
	DailySendLimit int            `json:"daily_send_limit"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "leadpilot"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ADDRESS", "") != "",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Provider: ProviderConfig{
			APIKey:        getEnv("EMAIL_PROVIDER_API_KEY", ""),
			BaseURL:       getEnv("EMAIL_PROVIDER_BASE_URL", "https://api.resend.com"),
			WebhookSecret: getEnv("EMAIL_PROVIDER_WEBHOOK_SECRET", ""),
		},
		Queue: QueueConfig{
			URL:        getEnv("QUEUE_URL", ""),
			Token:      getEnv("QUEUE_TOKEN", ""),
			SigningKey: getEnv("QUEUE_SIGNING_KEY", ""),
			MaxRetries: getEnvAsInt("QUEUE_MAX_RETRIES", 3),
		},
		Scraper: ScraperConfig{
			SerpAPIKey:     getEnv("SERP_API_KEY", ""),
			SerpBaseURL:    getEnv("SERP_BASE_URL", "https://serpapi.com"),
			PlacesAPIKey:   getEnv("PLACES_API_KEY", ""),
			PlacesBaseURL:  getEnv("PLACES_BASE_URL", "https://places.googleapis.com"),
			DailyLimit:     getEnvAsInt("SCRAPER_DAILY_LIMIT", 200),
			ChromeHeadless: getEnv("CHROME_HEADLESS", "true") == "true",
		},
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		DailySendLimit: getEnvAsInt("DAILY_SEND_LIMIT", 400),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.Provider.APIKey == "" {
			return fmt.Errorf("EMAIL_PROVIDER_API_KEY is required in production")
		}
		if AppConfig.Provider.WebhookSecret == "" {
			return fmt.Errorf("EMAIL_PROVIDER_WEBHOOK_SECRET is required in production")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Successfully connected to the database")
	log.Println("Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := models.CreateDefaultSettings(DB); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

// ConnectRedis initializes the shared Redis client used for rate-limit counters
func ConnectRedis() {
	if !AppConfig.Redis.Enabled {
		log.Println("Redis disabled; rate limiting will be permissive")
		return
	}
	Redis = redis.NewClient(&redis.Options{
		Addr:     AppConfig.Redis.Address,
		Password: AppConfig.Redis.Password,
		DB:       AppConfig.Redis.DB,
	})
	log.Printf("Redis client initialized for %s", AppConfig.Redis.Address)
}

// MigrateDB runs AutoMigrate over every model
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Lead{},
		&models.LeadTag{},
		&models.LeadCustomField{},
		&models.ScrapeJob{},
		&models.EmailTemplate{},
		&models.Campaign{},
		&models.CampaignLead{},
		&models.EmailEvent{},
		&models.Unsubscribe{},
		&models.DomainWarmup{},
		&models.Setting{},
	)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Provider: %s, Queue: %t, Redis: %t",
		AppConfig.Provider.BaseURL,
		AppConfig.Queue.URL != "",
		AppConfig.Redis.Enabled)
}
