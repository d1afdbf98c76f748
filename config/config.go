// Package config loads the server configuration from the environment, with a
// best-effort .env file for local development.
package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the server.
type Config struct {
	Port      string
	DataFile  string
	RedisAddr string
	Routes    []string
}

// Load reads the environment. Missing variables fall back to the defaults the
// original deployment used.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	return Config{
		Port:      getEnv("PORT", "8080"),
		DataFile:  getEnv("DATA_FILE", "bus_attendance.xlsx"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		Routes:    splitRoutes(getEnv("ROUTES", "Route A,Route B,Route C,Route D")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitRoutes(raw string) []string {
	var routes []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			routes = append(routes, name)
		}
	}
	return routes
}
