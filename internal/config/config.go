package config

import (
	"os"
	"strconv"
	"time"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Mado      MadoConfig
	Fax       FaxConfig
	Email     EmailConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

type StorageConfig struct {
	Type        string // "s3" or "local"
	LocalPath   string
	Bucket      string
	Region      string
	KMSKeyAlias string
}

type MadoConfig struct {
	TemplatePath   string
	FieldMapPath   string
	RecipientsPath string
	DefaultRegion  string
	PreviewTTL     time.Duration
}

type FaxConfig struct {
	APIURL     string
	SecretName string
	// User/Password short-circuit the secret store for local development.
	User     string
	Password string
}

type EmailConfig struct {
	Sender string
	Region string
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
}

func NewConfig() *Config {
	environment := getEnv("SERVER_ENVIRONMENT", EnvironmentDevelopment)

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			Environment:  environment,
		},
		Storage: StorageConfig{
			Type:        getEnv("STORAGE_TYPE", "s3"),
			LocalPath:   getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			Bucket:      getEnv("S3_BUCKET", "aurascribe"),
			Region:      getEnv("AWS_REGION", "ca-central-1"),
			KMSKeyAlias: getEnv("KMS_KEY_ALIAS", "alias/cliniq-mado"),
		},
		Mado: MadoConfig{
			TemplatePath:   getEnv("MADO_TEMPLATE_PATH", "data/mado_form.pdf"),
			FieldMapPath:   getEnv("MADO_FIELD_MAP_PATH", "data/mado_field_map.json"),
			RecipientsPath: getEnv("MADO_RECIPIENTS_PATH", "data/mado_recipients.json"),
			DefaultRegion:  getEnv("MADO_DEFAULT_REGION", "06"),
			PreviewTTL:     getEnvDuration("MADO_PREVIEW_TTL", time.Hour),
		},
		Fax: FaxConfig{
			APIURL:     getEnv("INTERFAX_API_URL", "https://rest.interfax.net/outbound/faxes"),
			SecretName: getEnv("INTERFAX_SECRET_NAME", "cliniq/mado/interfax"),
			User:       getEnv("INTERFAX_USER", ""),
			Password:   getEnv("INTERFAX_PASS", ""),
		},
		Email: EmailConfig{
			Sender: getEnv("SES_SENDER", "clinic@example.org"),
			Region: getEnv("AWS_REGION", "ca-central-1"),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("TELEMETRY_ENABLED", false),
			ExporterURL:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "cliniq-mado"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    environment,
			SamplingRatio:  getEnvFloat("OTEL_SAMPLING_RATIO", 1.0),
		},
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
