package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key, or fallback when it is unset or empty
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func GetEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func GetEnvSeconds(key string, fallback time.Duration) time.Duration {
	seconds, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// GetEnvList splits a comma separated value, dropping empty entries
func GetEnvList(key string, fallback []string) []string {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}

	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
