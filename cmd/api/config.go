// cmd/api/config.go
// Environment lookups used as flag defaults, and the startup check of the
// parsed settings. A variable that is unset or fails to parse leaves the
// built-in default in place.
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aoideee/library-api/internal/validator"
)

func envString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return i
}

func envFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func envBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return b
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}

// validateConfig rejects settings the server cannot start with.
func validateConfig(settings serverConfig) error {
	v := validator.New()
	v.Check(settings.port > 0 && settings.port <= 65535, "port", "must be between 1 and 65535")
	v.Check(validator.In(settings.environment, "development", "staging", "production", "testing"), "env", "must be development, staging, production or testing")
	v.Check(validator.In(settings.logFormat, "text", "json"), "log-format", "must be text or json")
	v.Check(validator.In(settings.store, "postgres", "memory"), "store", "must be postgres or memory")
	v.Check(validator.In(settings.db.driver, "postgres", "pgx"), "db-driver", "must be postgres or pgx")
	v.Check(settings.loanDays > 0, "loan-days", "must be greater than zero")
	if settings.limiter.enabled {
		v.Check(settings.limiter.rps > 0, "limiter-rps", "must be greater than zero")
		v.Check(settings.limiter.burst > 0, "limiter-burst", "must be greater than zero")
	}
	if v.Valid() {
		return nil
	}

	keys := make([]string, 0, len(v.Errors))
	for k := range v.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("-%s %s", k, v.Errors[k]))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
