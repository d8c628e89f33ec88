// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

type RescanCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type S3Cfg struct {
	Enabled   bool
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type Config struct {
	Addr           string
	LogLevel       string
	BaseURL        string
	ServiceID      string
	ServiceTitle   string
	ServiceDesc    string
	DataDir        string
	StoreBackend   string
	StorePath      string
	RedisAddr      string
	IngestWorkers  int
	QueryCacheSize int
	S3             S3Cfg
	Rescan         RescanCfg
}

func FromEnv() Config {
	return Config{
		Addr:           getenv("ADDR", ":8000"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		BaseURL:        getenv("RASTAC_BASE_URL", "http://localhost:8000"),
		ServiceID:      getenv("RASTAC_SERVICE_ID", "rastac"),
		ServiceTitle:   getenv("RASTAC_SERVICE_TITLE", "rastac"),
		ServiceDesc:    getenv("RASTAC_SERVICE_DESCRIPTION", "automatic raster catalog service"),
		DataDir:        getenv("RASTAC_CATALOG_DIR", "./data"),
		StoreBackend:   getenv("STORE_BACKEND", "memory"),
		StorePath:      getenv("STORE_PATH", "./data/catalog.db"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		IngestWorkers:  getint("INGEST_WORKERS", 4),
		QueryCacheSize: getint("QUERY_CACHE_SIZE", 256),
		S3: S3Cfg{
			Enabled:   getbool("S3_ENABLED", false),
			Endpoint:  getenv("S3_ENDPOINT", "localhost:9000"),
			Bucket:    getenv("S3_BUCKET", ""),
			AccessKey: getenv("S3_ACCESS_KEY_ID", ""),
			SecretKey: getenv("S3_SECRET_ACCESS_KEY", ""),
			UseSSL:    getbool("S3_USE_SSL", false),
		},
		Rescan: RescanCfg{
			Enabled: getbool("RESCAN_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "catalog-rescan"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "rastac-rescan"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}
