package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gtfs-router/internal/geo"
)

type Config struct {
	DatabaseURL          string
	NATSURL              string
	NATSSubjectPrefix    string
	WalkingSpeed         geo.WalkingSpeed
	ServiceID            string
	FeedRefreshInterval  time.Duration
	RequestTimeout       time.Duration
	Location             *time.Location
	MetricsAddr          string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database DSN (already-imported GTFS schema): prefer DATABASE_URL / PG_DSN,
	// else build from PG* vars.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "router")

	switch strings.ToLower(strings.TrimSpace(getenvDefault("WALKING_SPEED", "normal"))) {
	case "slow":
		cfg.WalkingSpeed = geo.Slow
	case "fast":
		cfg.WalkingSpeed = geo.Fast
	case "normal":
		cfg.WalkingSpeed = geo.Normal
	default:
		return nil, fmt.Errorf("invalid WALKING_SPEED: %q, want one of slow, normal, fast", os.Getenv("WALKING_SPEED"))
	}

	cfg.ServiceID = os.Getenv("SERVICE_ID")
	if cfg.ServiceID == "" {
		return nil, errors.New("SERVICE_ID must be set")
	}

	if v := os.Getenv("FEED_REFRESH_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid FEED_REFRESH_INTERVAL_SEC: %q", v)
		}
		cfg.FeedRefreshInterval = time.Duration(sec) * time.Second
	} else {
		cfg.FeedRefreshInterval = 5 * time.Minute
	}

	if v := os.Getenv("REQUEST_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT_MS: %q", v)
		}
		cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
	} else {
		cfg.RequestTimeout = 5 * time.Second
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
