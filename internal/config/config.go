package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
	Catalog     CatalogConfig
	Sync        SyncConfig
	Dataset     DatasetConfig
	Artifact    ArtifactConfig
	Serving     ServingConfig
	Reload      ReloadConfig
	Kubernetes  KubernetesConfig
	Logger      LoggerConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	MaxUploadSize int64
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

type CatalogConfig struct {
	Labels    []string
	Extension string
	Manifest  string
}

type SyncConfig struct {
	Bucket       string
	Workers      int
	FetchTimeout time.Duration
	MaxBytes     int64
}

type DatasetConfig struct {
	Bucket     string
	Dir        string
	Workers    int
	Clean      bool
	Extensions []string
}

type ArtifactConfig struct {
	Bucket    string
	Prefix    string
	Extension string
	Path      string
}

type ServingConfig struct {
	// Buckets limits the artifact scan. Empty scans every bucket.
	Buckets     []string
	Extension   string
	LoadTimeout time.Duration
	Preload     bool
}

type ReloadConfig struct {
	URL     string
	Timeout time.Duration
}

type KubernetesConfig struct {
	Enabled        bool
	InCluster      bool
	KubeConfigPath string
	Namespace      string
	LabelSelector  string
	ServingPort    int
	ReloadPath     string
}

type LoggerConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, fills variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("SERVER_MAX_UPLOAD_SIZE", 10<<20)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "plants_db")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 10)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 2)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("S3_ENDPOINT_URL", "http://localhost:9000")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("CATALOG_LABELS", "dandelion,grass")
	v.SetDefault("CATALOG_EXTENSION", "jpg")
	v.SetDefault("CATALOG_MANIFEST", "sources.yaml")
	v.SetDefault("SYNC_BUCKET", "images")
	v.SetDefault("SYNC_WORKERS", 8)
	v.SetDefault("SYNC_FETCH_TIMEOUT", "5s")
	v.SetDefault("SYNC_MAX_BYTES", 32<<20)
	v.SetDefault("DATASET_DIR", "/tmp/images")
	v.SetDefault("DATASET_WORKERS", 8)
	v.SetDefault("DATASET_CLEAN", true)
	v.SetDefault("DATASET_EXTENSIONS", ".jpg,.jpeg,.png")
	v.SetDefault("ARTIFACT_BUCKET", "models")
	v.SetDefault("ARTIFACT_PREFIX", "classifier")
	v.SetDefault("ARTIFACT_EXTENSION", ".bin")
	v.SetDefault("ARTIFACT_PATH", "saved_models/export.bin")
	v.SetDefault("SERVING_BUCKETS", "models")
	v.SetDefault("SERVING_LOAD_TIMEOUT", "60s")
	v.SetDefault("SERVING_PRELOAD", false)
	v.SetDefault("API_RELOAD_URL", "http://api:8000/reload")
	v.SetDefault("API_RELOAD_TIMEOUT", "5s")
	v.SetDefault("K8S_ENABLED", false)
	v.SetDefault("K8S_IN_CLUSTER", false)
	v.SetDefault("K8S_NAMESPACE", "default")
	v.SetDefault("K8S_LABEL_SELECTOR", "app=plant-api")
	v.SetDefault("K8S_SERVING_PORT", 8000)
	v.SetDefault("K8S_RELOAD_PATH", "/reload")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	// Env. An empty variable counts as set so lists such as SERVING_BUCKETS
	// can be cleared.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	// ARTIFACT_EXTENSION is the one extension both publishing and serving use
	// unless serving overrides it.
	servingExt := v.GetString("SERVING_EXTENSION")
	if servingExt == "" {
		servingExt = v.GetString("ARTIFACT_EXTENSION")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:          v.GetString("SERVER_HOST"),
			Port:          v.GetInt("SERVER_PORT"),
			MaxUploadSize: v.GetInt64("SERVER_MAX_UPLOAD_SIZE"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("POSTGRES_HOST"),
			Port:            v.GetInt("POSTGRES_PORT"),
			User:            v.GetString("POSTGRES_USER"),
			Password:        v.GetString("POSTGRES_PASSWORD"),
			Name:            v.GetString("POSTGRES_DB"),
			SSLMode:         v.GetString("POSTGRES_SSLMODE"),
			MaxOpenConns:    v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
			ConnMaxLifetime: duration(v, "POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  v.GetString("S3_ENDPOINT_URL"),
			AccessKey: v.GetString("AWS_ACCESS_KEY_ID"),
			SecretKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			Region:    v.GetString("S3_REGION"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
		},
		Catalog: CatalogConfig{
			Labels:    list(v.GetString("CATALOG_LABELS")),
			Extension: v.GetString("CATALOG_EXTENSION"),
			Manifest:  v.GetString("CATALOG_MANIFEST"),
		},
		Sync: SyncConfig{
			Bucket:       v.GetString("SYNC_BUCKET"),
			Workers:      v.GetInt("SYNC_WORKERS"),
			FetchTimeout: duration(v, "SYNC_FETCH_TIMEOUT", 5*time.Second),
			MaxBytes:     v.GetInt64("SYNC_MAX_BYTES"),
		},
		Dataset: DatasetConfig{
			Bucket:     firstNonEmpty(v.GetString("DATASET_BUCKET"), v.GetString("SYNC_BUCKET")),
			Dir:        v.GetString("DATASET_DIR"),
			Workers:    v.GetInt("DATASET_WORKERS"),
			Clean:      v.GetBool("DATASET_CLEAN"),
			Extensions: list(v.GetString("DATASET_EXTENSIONS")),
		},
		Artifact: ArtifactConfig{
			Bucket:    v.GetString("ARTIFACT_BUCKET"),
			Prefix:    v.GetString("ARTIFACT_PREFIX"),
			Extension: v.GetString("ARTIFACT_EXTENSION"),
			Path:      v.GetString("ARTIFACT_PATH"),
		},
		Serving: ServingConfig{
			Buckets:     list(v.GetString("SERVING_BUCKETS")),
			Extension:   servingExt,
			LoadTimeout: duration(v, "SERVING_LOAD_TIMEOUT", 60*time.Second),
			Preload:     v.GetBool("SERVING_PRELOAD"),
		},
		Reload: ReloadConfig{
			URL:     v.GetString("API_RELOAD_URL"),
			Timeout: duration(v, "API_RELOAD_TIMEOUT", 5*time.Second),
		},
		Kubernetes: KubernetesConfig{
			Enabled:        v.GetBool("K8S_ENABLED"),
			InCluster:      v.GetBool("K8S_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBECONFIG"),
			Namespace:      v.GetString("K8S_NAMESPACE"),
			LabelSelector:  v.GetString("K8S_LABEL_SELECTOR"),
			ServingPort:    v.GetInt("K8S_SERVING_PORT"),
			ReloadPath:     v.GetString("K8S_RELOAD_PATH"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// list splits a comma separated value, dropping empty items.
func list(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
