package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	APIEndpoint       string
	Token             string
	ProxyHost         string
	ProxyPort         string
	RPS               int
	HTTPTimeout       time.Duration
	EnrichConcurrency int
	TruncateCaps      map[string]int
	TruncationFile    string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/orion?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		APIEndpoint:       env("ORION_API_ENDPOINT", "https://api.orion.wip/"),
		Token:             env("ORION_JWT_TOKEN", ""),
		ProxyHost:         env("PROXY_HOST", ""),
		ProxyPort:         env("PROXY_PORT", ""),
		RPS:               atoi("ORION_RPS", 0),
		HTTPTimeout:       time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		EnrichConcurrency: atoi("ENRICH_CONCURRENCY", 0),
		TruncateCaps:      ParseCaps(env("TRUNCATE_ENDPOINTS", "/rentals:1")),
		TruncationFile:    env("TRUNCATION_FILE", ""),
	}
	if c.Token == "" {
		log.Warn().Msg("ORION_JWT_TOKEN is empty")
	}
	if (c.ProxyHost == "") != (c.ProxyPort == "") {
		log.Warn().Msg("PROXY_HOST and PROXY_PORT must both be set; proxy disabled")
	}
	return c
}

// Restricted reports whether pagination truncation applies.
func (c Config) Restricted() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

// ParseCaps reads "endpoint:cap,endpoint:cap". Malformed entries are skipped.
func ParseCaps(s string) map[string]int {
	out := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		i := strings.LastIndexByte(part, ':')
		if i <= 0 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(part[i+1:]))
		if err != nil || n <= 0 {
			continue
		}
		out[strings.TrimSpace(part[:i])] = n
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
