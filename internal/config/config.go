// Package config provides application configuration loaded from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Shop     ShopConfig
	SMS      SMSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
	RateLimit    int // requests per minute and per IP on /api
}

// DatabaseConfig holds the storage settings.
// Driver is "sqlite" (default) or "postgres".
type DatabaseConfig struct {
	Driver     string
	DSN        string
	Debug      bool
	Migrations bool
	Seed       bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev      bool
	LogLevel string
}

// ShopConfig is the shop identity printed on receipts plus the tax rate used by the ledger.
type ShopConfig struct {
	Name        string
	Address     string
	City        string
	Phone       string
	Email       string
	SIRET       string
	TVARate     float64
	CountryCode string
}

// SMSConfig holds the optional Twilio credentials. Sending is disabled when any field is empty.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// Enabled reports whether an SMS transport can be built from this configuration.
func (s SMSConfig) Enabled() bool {
	return s.AccountSID != "" && s.AuthToken != "" && s.From != ""
}

// TaxRate returns the configured VAT rate as a decimal fraction (0.20 for 20%).
func (s ShopConfig) TaxRate() decimal.Decimal {
	return decimal.NewFromFloat(s.TVARate)
}

// DefaultShop returns the shop identity used when nothing is configured.
func DefaultShop() ShopConfig {
	return ShopConfig{
		Name:        "Paula Couture",
		Address:     "40 rue Basse du Château",
		City:        "73000 Chambéry",
		Phone:       "04 79 68 85 84",
		Email:       "paula.couture@ymail.com",
		SIRET:       "789 369 584",
		TVARate:     0.20,
		CountryCode: "33",
	}
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	def := DefaultShop()
	driver := strings.ToLower(getEnv("DB_DRIVER", "sqlite"))
	dsnDefault := "atelier.db"
	if driver == "postgres" {
		dsnDefault = "host=localhost port=5432 user=atelier password=atelier dbname=atelier sslmode=disable"
	}
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			RateLimit:    getEnvInt("RATE_LIMIT", 200),
		},
		Database: DatabaseConfig{
			Driver:     driver,
			DSN:        getEnv("DATABASE_DSN", dsnDefault),
			Debug:      getEnvBool("DB_DEBUG", false),
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", false),
		},
		App: AppConfig{
			Dev:      getEnvBool("DEV", false),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Shop: ShopConfig{
			Name:        getEnv("SHOP_NAME", def.Name),
			Address:     getEnv("SHOP_ADDRESS", def.Address),
			City:        getEnv("SHOP_CITY", def.City),
			Phone:       getEnv("SHOP_PHONE", def.Phone),
			Email:       getEnv("SHOP_EMAIL", def.Email),
			SIRET:       getEnv("SHOP_SIRET", def.SIRET),
			TVARate:     getEnvFloat("TVA_RATE", def.TVARate),
			CountryCode: getEnv("COUNTRY_CODE", def.CountryCode),
		},
		SMS: SMSConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			From:       getEnv("TWILIO_PHONE_NUMBER", ""),
			BaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvFloat accepts "0.2" as well as "0,2".
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
