package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	AppEnv    string
	LogLevel  string
	LogFormat string

	Ingest     IngestConfig
	KillSwitch KillSwitchConfig
	Tracking   TrackingConfig
	Detection  DetectionConfig
	Escalation EscalationConfig
	Ops        OpsConfig

	// ONCALL_SEED_FILE, optional YAML with policies and schedules
	OnCallSeedFile string
}

// IngestConfig controls the location ingestion gate.
type IngestConfig struct {
	RateLimitWindow time.Duration
	RateLimitMax    int
	LastSeqTTL      time.Duration
}

// KillSwitchConfig controls the tracking kill switch.
type KillSwitchConfig struct {
	DefaultMode  string
	CacheTTL     time.Duration
	ToggleLimit  int
	ToggleWindow time.Duration
}

// TrackingConfig holds projection freshness thresholds in seconds.
type TrackingConfig struct {
	StaleAfterSeconds   int
	OfflineAfterSeconds int
}

// DetectionConfig holds incident rule thresholds.
type DetectionConfig struct {
	TrackingStaleSeconds     int
	ETADriftToleranceSeconds int
	RiderOfflineSeconds      int
	GPSAccuracyMeters        float64
	StreamLagSeconds         float64
	HotStoreFailureDelta     int64
	IndexCap                 int
}

// EscalationConfig controls the escalation runner.
type EscalationConfig struct {
	ScanLimit      int
	DedupTTL       time.Duration
	OpsManagerUser string
}

// OpsConfig limits the ops surface per client IP.
type OpsConfig struct {
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Load 加载配置
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/tracking/tracking.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
	}

	appEnv := getString("APP_ENV", "production")

	// 测试环境下缓存几乎不生效
	cacheTTL := time.Duration(getInt("KILLSWITCH_CACHE_TTL_MS", 2000, 0)) * time.Millisecond
	if appEnv == "test" {
		cacheTTL = 0
	}

	return &Config{
		Port:      port,
		DBPath:    dbPath,
		JWTSecret: jwtSecret,
		AppEnv:    appEnv,
		LogLevel:  getString("LOG_LEVEL", "info"),
		LogFormat: getString("LOG_FORMAT", "json"),
		Ingest: IngestConfig{
			RateLimitWindow: time.Duration(getInt("INGEST_RATE_LIMIT_WINDOW_SECONDS", 60, 1)) * time.Second,
			RateLimitMax:    getInt("INGEST_RATE_LIMIT_MAX", 120, 1),
			LastSeqTTL:      time.Duration(getInt("INGEST_LAST_SEQ_TTL_SECONDS", 86400, 60)) * time.Second,
		},
		KillSwitch: KillSwitchConfig{
			DefaultMode:  getString("KILLSWITCH_DEFAULT_MODE", "CUSTOMER_READ_ENABLED"),
			CacheTTL:     cacheTTL,
			ToggleLimit:  getInt("KILLSWITCH_TOGGLE_LIMIT", 10, 1),
			ToggleWindow: time.Duration(getInt("KILLSWITCH_TOGGLE_WINDOW_SECONDS", 900, 1)) * time.Second,
		},
		Tracking: TrackingConfig{
			StaleAfterSeconds:   getInt("TRACKING_STALE_AFTER_SECONDS", 30, 1),
			OfflineAfterSeconds: getInt("TRACKING_OFFLINE_AFTER_SECONDS", 120, 1),
		},
		Detection: DetectionConfig{
			TrackingStaleSeconds:     getInt("INCIDENT_TRACKING_STALE_SECONDS", 120, 10),
			ETADriftToleranceSeconds: getInt("INCIDENT_ETA_DRIFT_TOLERANCE_SECONDS", 300, 0),
			RiderOfflineSeconds:      getInt("INCIDENT_RIDER_OFFLINE_SECONDS", 180, 10),
			GPSAccuracyMeters:        getFloat("INCIDENT_GPS_ACCURACY_METERS", 300, 10),
			StreamLagSeconds:         getFloat("INCIDENT_STREAM_LAG_SECONDS", 90, 1),
			HotStoreFailureDelta:     int64(getInt("INCIDENT_HOT_STORE_FAILURE_DELTA", 5, 1)),
			IndexCap:                 getInt("INCIDENT_INDEX_CAP", 1000, 50),
		},
		Escalation: EscalationConfig{
			ScanLimit:      getInt("ESCALATION_SCAN_LIMIT", 200, 1),
			DedupTTL:       time.Duration(getInt("ESCALATION_DEDUP_TTL_HOURS", 168, 1)) * time.Hour,
			OpsManagerUser: os.Getenv("OPS_MANAGER_USER"),
		},
		Ops: OpsConfig{
			RateLimitWindow: time.Duration(getInt("OPS_RATE_LIMIT_WINDOW_SECONDS", 60, 1)) * time.Second,
			RateLimitMax:    getInt("OPS_RATE_LIMIT_MAX", 600, 1),
		},
		OnCallSeedFile: os.Getenv("ONCALL_SEED_FILE"),
	}
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getInt returns def when unset or unparsable, and never less than floor.
func getInt(key string, def, floor int) int {
	v := def
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			v = n
		}
	}
	if v < floor {
		v = floor
	}
	return v
}

func getFloat(key string, def, floor float64) float64 {
	v := def
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			v = f
		}
	}
	if v < floor {
		v = floor
	}
	return v
}
