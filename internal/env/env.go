package env

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

func successOrDie[T any](value T, err error) T {
	if err != nil {
		log.Fatal(err)
	}

	return value
}

func GetWithFallback(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func GetBool(key string, fallback bool) (bool, error) {
	if raw := os.Getenv(key); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return false, fmt.Errorf("environment variable %q: %w", key, err)
		}

		return parsed, nil
	}

	return fallback, nil
}

func MustGetBool(key string, fallback bool) bool {
	return successOrDie(GetBool(key, fallback))
}

// Require returns the values of the named environment variables. An unset or
// empty variable is an error.
func Require(keys ...string) (map[string]string, error) {
	values := map[string]string{}

	for _, key := range keys {
		value := os.Getenv(key)
		if value == "" {
			return nil, fmt.Errorf("environment variable %q is required", key)
		}

		values[key] = value
	}

	return values, nil
}
