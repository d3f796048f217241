package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server holds the BFF settings read from the environment.
type Server struct {
	APIURL        string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Timezone      string
	SessionTTL    time.Duration
}

// LoadServer reads .env files (missing files are ignored) and then the
// process environment. An empty DatabaseURL disables the local backend and
// an empty RedisAddr selects in-memory sessions.
func LoadServer(envFiles ...string) (*Server, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	s := &Server{
		APIURL:        getenv("HICHERS_API_URL", defaultAPIURL),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		Timezone:      getenv("HICHERS_TZ", defaultTimezone),
		SessionTTL:    7 * 24 * time.Hour,
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB must be a number: %w", err)
		}
		s.RedisDB = n
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL must be a duration: %w", err)
		}
		s.SessionTTL = d
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return nil, fmt.Errorf("HICHERS_TZ: %w", err)
	}
	return s, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
