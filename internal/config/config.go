package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when one of the required backend credentials is unset.
var ErrMissingCredential = errors.New("missing required env var")

// Store backends accepted in STORE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendMemory    = "memory"
)

// Static file sources accepted in STATIC_SOURCE.
const (
	StaticDir   = "dir"
	StaticMinIO = "minio"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Emulator  EmulatorConfig
	Store     StoreConfig
	Static    StaticConfig
	MinIO     MinIOConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	PublicDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FirebaseConfig identifies the hosted backend project.
type FirebaseConfig struct {
	APIKey            string
	AuthDomain        string
	ProjectID         string
	StorageBucket     string
	MessagingSenderID string
	AppID             string
}

type EmulatorConfig struct {
	Enabled       bool
	FirestoreHost string
	AuthHost      string
}

type StoreConfig struct {
	Backend    string
	Collection string
}

// StaticConfig selects where the browser front end is read from.
type StaticConfig struct {
	Source string
}

// MinIOConfig holds the object storage connection used when STATIC_SOURCE=minio.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("HOST", "")
	v.SetDefault("PUBLIC_DIR", "public")
	v.SetDefault("FIRESTORE_EMULATOR_HOST", "localhost:8080")
	v.SetDefault("AUTH_EMULATOR_HOST", "localhost:9099")
	v.SetDefault("STORE_BACKEND", BackendFirestore)
	v.SetDefault("STORE_COLLECTION", "dinosaurs")
	v.SetDefault("STATIC_SOURCE", StaticDir)
	v.SetDefault("MINIO_BUCKET", "dinosaurs-public")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MONGODB_DATABASE", "dinosaurs")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("LOG_LEVEL", "info")

	fb, err := loadFirebase(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			Host:         v.GetString("HOST"),
			PublicDir:    v.GetString("PUBLIC_DIR"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Firebase: fb,
		Emulator: EmulatorConfig{
			Enabled:       isTruthy(v.GetString("USE_FIREBASE_EMULATOR")),
			FirestoreHost: v.GetString("FIRESTORE_EMULATOR_HOST"),
			AuthHost:      v.GetString("AUTH_EMULATOR_HOST"),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
			Collection: v.GetString("STORE_COLLECTION"),
		},
		Static: StaticConfig{
			Source: strings.ToLower(strings.TrimSpace(v.GetString("STATIC_SOURCE"))),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    isTruthy(v.GetString("MINIO_USE_SSL")),
			Region:    v.GetString("MINIO_REGION"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			Prefix:    strings.Trim(v.GetString("MINIO_PREFIX"), "/"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		RateLimit: RateLimitConfig{
			Enabled:       isTruthy(v.GetString("RATE_LIMIT_ENABLED")),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      isTruthy(v.GetString("RATE_LIMIT_USE_REDIS")),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	switch cfg.Store.Backend {
	case BackendFirestore, BackendMemory:
	case BackendMongo:
		if cfg.MongoDB.URI == "" {
			return nil, fmt.Errorf("%w: MONGODB_URI (STORE_BACKEND=mongo)", ErrMissingCredential)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}

	switch cfg.Static.Source {
	case StaticDir:
	case StaticMinIO:
		if cfg.MinIO.Endpoint == "" {
			return nil, fmt.Errorf("%w: MINIO_ENDPOINT (STATIC_SOURCE=minio)", ErrMissingCredential)
		}
	default:
		return nil, fmt.Errorf("unknown STATIC_SOURCE %q", cfg.Static.Source)
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func loadFirebase(v *viper.Viper) (FirebaseConfig, error) {
	var missing []string
	required := func(key string) string {
		s := strings.TrimSpace(v.GetString(key))
		if s == "" {
			missing = append(missing, key)
		}
		return s
	}
	fb := FirebaseConfig{
		APIKey:            required("FIREBASE_API_KEY"),
		AuthDomain:        required("FIREBASE_AUTH_DOMAIN"),
		ProjectID:         required("FIREBASE_PROJECT_ID"),
		StorageBucket:     v.GetString("FIREBASE_STORAGE_BUCKET"),
		MessagingSenderID: v.GetString("FIREBASE_MESSAGING_SENDER_ID"),
		AppID:             v.GetString("FIREBASE_APP_ID"),
	}
	if len(missing) > 0 {
		return fb, fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return fb, nil
}

// isTruthy accepts the "true"/"1" toggles used by the emulator and limiter flags.
func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true
	}
	return false
}

// EmulatorURL turns an emulator host setting into a base URL. Values that
// already carry an http(s) scheme are kept as given.
func EmulatorURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}
