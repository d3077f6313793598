package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig holds environment-variable-driven operational settings
// (not configurable through the config file).
type EnvConfig struct {
	// Directories
	StateDir string

	// Network
	FetchTimeout    time.Duration
	DialTimeout     time.Duration
	UserAgent       string
	MaxConnsPerListener int

	// Discovery
	RosterCacheTTL time.Duration

	// Lifecycle
	ShutdownTimeout time.Duration
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.StateDir = envStr("LOOPGATE_STATE_DIR", defaultStateDir())

	cfg.FetchTimeout = envDuration("LOOPGATE_FETCH_TIMEOUT", 30*time.Second, &errs)
	cfg.DialTimeout = envDuration("LOOPGATE_DIAL_TIMEOUT", 10*time.Second, &errs)
	cfg.UserAgent = envStr("LOOPGATE_USER_AGENT", "loopgate")
	cfg.MaxConnsPerListener = envInt("LOOPGATE_MAX_CONNS_PER_LISTENER", 256, &errs)

	cfg.RosterCacheTTL = envDuration("LOOPGATE_ROSTER_CACHE_TTL", time.Minute, &errs)

	cfg.ShutdownTimeout = envDuration("LOOPGATE_SHUTDOWN_TIMEOUT", 5*time.Second, &errs)

	if cfg.FetchTimeout <= 0 {
		errs = append(errs, "LOOPGATE_FETCH_TIMEOUT must be positive")
	}
	if cfg.DialTimeout <= 0 {
		errs = append(errs, "LOOPGATE_DIAL_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, "LOOPGATE_SHUTDOWN_TIMEOUT must be positive")
	}
	validatePositive("LOOPGATE_MAX_CONNS_PER_LISTENER", cfg.MaxConnsPerListener, &errs)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/loopgate"
	}
	return "/var/lib/loopgate"
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(key string, val int, errs *[]string) {
	if val <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive", key))
	}
}
