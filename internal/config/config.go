package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL    string
	JWTSecret      string
	JWTTTL         time.Duration
	HTTPAddr       string
	GRPCAddr       string
	MetricsAddr    string
	MigrateOnStart bool

	DirectionsBaseURL string
	DirectionsAPIKey  string
	DirectionsTimeout time.Duration

	RouteMinInterval       time.Duration
	RouteMinDisplacementKm float64
	PositionWriteInterval  time.Duration
	PollInterval           time.Duration
	ResponderSpeedMPS      float64

	NATSURL           string
	NATSSubjectPrefix string
	OutboxEnabled     bool
	OutboxInterval    time.Duration
	OutboxBatch       int
}

func Load() (Config, error) {
	return load(true)
}

func LoadWorker() (Config, error) {
	return load(false)
}

// LoadAgent reads the settings the device-side tracker needs. The agent
// talks to the API over HTTP and NATS only, so no database URL or signing
// secret is required.
func LoadAgent() Config {
	var cfg Config
	loadTracking(&cfg)
	cfg.NATSURL = getString("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubjectPrefix = getString("NATS_SUBJECT_PREFIX", "ambutrack.incidents")
	return cfg
}

func load(requireJWT bool) (Config, error) {
	var cfg Config
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if requireJWT && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWTTTL = getDuration("JWT_TTL", time.Hour)
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")
	cfg.GRPCAddr = getString("GRPC_ADDR", ":9090")
	cfg.MetricsAddr = getString("METRICS_ADDR", ":9100")
	cfg.MigrateOnStart = getBool("MIGRATE_ON_START", true)

	loadTracking(&cfg)

	cfg.NATSURL = getString("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubjectPrefix = getString("NATS_SUBJECT_PREFIX", "ambutrack.incidents")
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", true)
	cfg.OutboxInterval = getDuration("OUTBOX_POLL_INTERVAL", time.Second)
	cfg.OutboxBatch = getInt("OUTBOX_BATCH_SIZE", 50)
	return cfg, nil
}

func loadTracking(cfg *Config) {
	cfg.DirectionsBaseURL = getString("DIRECTIONS_BASE_URL", "https://maps.googleapis.com/maps/api/directions/json")
	cfg.DirectionsAPIKey = os.Getenv("DIRECTIONS_API_KEY")
	cfg.DirectionsTimeout = getDuration("DIRECTIONS_TIMEOUT", 10*time.Second)

	cfg.RouteMinInterval = getDuration("ROUTE_MIN_INTERVAL", 15*time.Second)
	cfg.RouteMinDisplacementKm = getFloat("ROUTE_MIN_DISPLACEMENT_KM", 0.03)
	cfg.PositionWriteInterval = getDuration("POSITION_WRITE_INTERVAL", 3*time.Second)
	cfg.PollInterval = getDuration("INCIDENT_POLL_INTERVAL", 15*time.Second)
	cfg.ResponderSpeedMPS = getFloat("RESPONDER_SPEED_MPS", 11.0)
}

func getString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
