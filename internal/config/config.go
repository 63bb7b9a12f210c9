package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port               string
	AllowedOrigin      string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	AdvisorURL         string
	ForecastTTLSeconds int
	AuthSecret         string
	AccessKey          string
	SessionTTLHours    int
	SecureCookies      bool
	StrictCombos       bool
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	forecastTTL, err := strconv.Atoi(getEnv("FORECAST_TTL_SECONDS", "60"))
	if err != nil || forecastTTL < 1 {
		forecastTTL = 60
	}
	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "24"))
	if err != nil || sessionTTL < 1 {
		sessionTTL = 24
	}

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		AdvisorURL:         strings.TrimSpace(os.Getenv("ADVISOR_URL")),
		ForecastTTLSeconds: forecastTTL,
		AuthSecret:         strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessKey:          strings.TrimSpace(os.Getenv("ACCESS_KEY")),
		SessionTTLHours:    sessionTTL,
		SecureCookies:      boolEnv("SECURE_COOKIES"),
		StrictCombos:       boolEnv("STRICT_COMBOS"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
