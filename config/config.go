package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	// Blob storage
	StorageType      string
	LocalStoragePath string
	DataSourceName   string
	S3BucketName     string
	AWSRegion        string
	StorageTimeout   time.Duration

	// Credential store
	CredentialDriver string
	CredentialDSN    string
	AuthTimeout      time.Duration

	// HTTP and transport
	JWTSecret          string
	CORSAllowedOrigins []string
	MaxHTTPBufferSize  int64

	// Observability
	JaegerEndpoint string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":3002"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		StorageType:      strings.ToLower(getEnv("STORAGE_TYPE", "memory")),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data"),
		DataSourceName:   getEnv("DATA_SOURCE_NAME", "docsync.db"),
		S3BucketName:     getEnv("S3_BUCKET_NAME", ""),
		AWSRegion:        getEnv("AWS_REGION", ""),
		StorageTimeout:   getEnvDuration("STORAGE_TIMEOUT", 15*time.Second),

		CredentialDriver: strings.ToLower(getEnv("CREDENTIAL_DRIVER", "memory")),
		CredentialDSN:    getEnv("CREDENTIAL_DSN", ""),
		AuthTimeout:      getEnvDuration("AUTH_TIMEOUT", 5*time.Second),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxHTTPBufferSize:  int64(getEnvInt("MAX_HTTP_BUFFER_SIZE", 5000000)),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": value}).Warn("Invalid integer, using default")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": value}).Warn("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
