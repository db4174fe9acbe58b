package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root application configuration. It is loaded once in main and
// handed to every component that needs it.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Upload   UploadConfig   `yaml:"upload"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port int    `yaml:"port" env:"SERVER_PORT" env-default:"8081"`
	// GinMode is passed to gin.SetMode (debug, release, test).
	GinMode string `yaml:"gin_mode" env:"GIN_MODE" env-default:"release"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DSN    string `yaml:"dsn"    env:"DB_DSN"`
	// AutoMigrate controls whether gorm AutoMigrate runs on startup.
	AutoMigrate    bool `yaml:"auto_migrate"     env:"DB_AUTO_MIGRATE"     env-default:"true"`
	SeedDemoUsers  bool `yaml:"seed_demo_users"  env:"DB_SEED_DEMO_USERS"  env-default:"true"`
	MaxOpenConns   int  `yaml:"max_open_conns"   env:"DB_MAX_OPEN_CONNS"   env-default:"20"`
	MaxIdleConns   int  `yaml:"max_idle_conns"   env:"DB_MAX_IDLE_CONNS"   env-default:"5"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"       env:"JWT_SECRET"       env-default:"change-me-in-prod"`
	JWTIssuer      string        `yaml:"jwt_issuer"       env:"JWT_ISSUER"       env-default:"docintake"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
}

// StorageConfig selects the blob store. A non-empty GCSBucket switches uploads
// to Google Cloud Storage, otherwise files land in LocalDir.
type StorageConfig struct {
	LocalDir           string `yaml:"local_dir"            env:"STORAGE_LOCAL_DIR"            env-default:"storage"`
	GCSBucket          string `yaml:"gcs_bucket"           env:"STORAGE_GCS_BUCKET"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file" env:"STORAGE_GCS_CREDENTIALS_FILE"`
}

// AIConfig selects the document classifier. Provider is one of "gemini", "ocr"
// or empty (classification disabled, every document ends up ai_failed).
type AIConfig struct {
	Provider    string `yaml:"provider"     env:"AI_PROVIDER"`
	ProjectID   string `yaml:"project_id"   env:"AI_PROJECT_ID"`
	Region      string `yaml:"region"       env:"AI_REGION"       env-default:"us-central1"`
	Model       string `yaml:"model"        env:"AI_MODEL"        env-default:"gemini-1.5-pro"`
	OCRLanguage string `yaml:"ocr_language" env:"AI_OCR_LANGUAGE" env-default:"spa+eng"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"20971520"`
}

type LogConfig struct {
	Mode string `yaml:"mode" env:"LOG_MODE" env-default:"development"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,PUT,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Authorization,Content-Type"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"      env:"TRACING_ENABLED"      env-default:"false"`
	ServiceName string `yaml:"service_name" env:"TRACING_SERVICE_NAME" env-default:"docintake"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
