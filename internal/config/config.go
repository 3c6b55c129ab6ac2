package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"securedocs/internal/storage/s3"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"Server"`
	Database  DatabaseConfig  `mapstructure:"Database"`
	Auth      AuthConfig      `mapstructure:"Auth"`
	Files     FilesConfig     `mapstructure:"Files"`
	Download  DownloadConfig  `mapstructure:"Download"`
	Storage   StorageConfig   `mapstructure:"Storage"`
	Redis     RedisConfig     `mapstructure:"Redis"`
	Lockout   LockoutConfig   `mapstructure:"Lockout"`
	Bootstrap BootstrapConfig `mapstructure:"Bootstrap"`
	Log       LogConfig       `mapstructure:"Log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"Port"`
	GRPCPort        string        `mapstructure:"GRPCPort"`
	PublicBaseURL   string        `mapstructure:"PublicBaseURL"`
	ShutdownTimeout time.Duration `mapstructure:"ShutdownTimeout"`
	RequestTimeout  time.Duration `mapstructure:"RequestTimeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"JWTSecret"`
	AccessTokenTTL time.Duration `mapstructure:"AccessTokenTTL"`
	BcryptCost     int           `mapstructure:"BcryptCost"`
	EncryptionKey  string        `mapstructure:"EncryptionKey"`
}

type FilesConfig struct {
	MaxSizeBytes      int64    `mapstructure:"MaxSizeBytes"`
	AllowedExtensions []string `mapstructure:"AllowedExtensions"`
}

type DownloadConfig struct {
	GrantTTL         time.Duration `mapstructure:"GrantTTL"`
	HistoryRetention time.Duration `mapstructure:"HistoryRetention"`
}

type StorageConfig struct {
	Backend string    `mapstructure:"Backend"`
	Dir     string    `mapstructure:"Dir"`
	S3      s3.Config `mapstructure:"S3"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"Addr"`
	Password string `mapstructure:"Password"`
	DB       int    `mapstructure:"DB"`
}

type LockoutConfig struct {
	MaxAttempts int           `mapstructure:"MaxAttempts"`
	Window      time.Duration `mapstructure:"Window"`
}

type BootstrapConfig struct {
	OpsEmail    string `mapstructure:"OpsEmail"`
	OpsPassword string `mapstructure:"OpsPassword"`
}

type LogConfig struct {
	Level string `mapstructure:"Level"`
}

const (
	StorageDisk = "disk"
	StorageS3   = "s3"
)

var envBindings = map[string]string{
	"Server.Port":                "HTTP_PORT",
	"Server.GRPCPort":            "GRPC_PORT",
	"Server.PublicBaseURL":       "PUBLIC_BASE_URL",
	"Server.RequestTimeout":      "REQUEST_TIMEOUT",
	"Database.Host":              "DATABASE_HOST",
	"Database.Port":              "DATABASE_PORT",
	"Database.User":              "DATABASE_USER",
	"Database.Password":          "DATABASE_PASSWORD",
	"Database.Name":              "DATABASE_NAME",
	"Database.SSLMode":           "DATABASE_SSLMODE",
	"Auth.JWTSecret":             "JWT_SECRET",
	"Auth.AccessTokenTTL":        "ACCESS_TOKEN_TTL",
	"Auth.EncryptionKey":         "ENCRYPTION_KEY",
	"Files.MaxSizeBytes":         "MAX_FILE_SIZE",
	"Files.AllowedExtensions":    "ALLOWED_EXTENSIONS",
	"Download.GrantTTL":          "DOWNLOAD_GRANT_TTL",
	"Download.HistoryRetention":  "DOWNLOAD_HISTORY_RETENTION",
	"Storage.Backend":            "STORAGE_BACKEND",
	"Storage.Dir":                "STORAGE_DIR",
	"Storage.S3.Endpoint":        "S3_ENDPOINT",
	"Storage.S3.Region":          "S3_REGION",
	"Storage.S3.Bucket":          "S3_BUCKET",
	"Storage.S3.AccessKeyID":     "S3_ACCESS_KEY_ID",
	"Storage.S3.SecretAccessKey": "S3_SECRET_ACCESS_KEY",
	"Redis.Addr":                 "REDIS_ADDR",
	"Redis.Password":             "REDIS_PASSWORD",
	"Redis.DB":                   "REDIS_DB",
	"Lockout.MaxAttempts":        "LOCKOUT_MAX_ATTEMPTS",
	"Lockout.Window":             "LOCKOUT_WINDOW",
	"Bootstrap.OpsEmail":         "OPS_EMAIL",
	"Bootstrap.OpsPassword":      "OPS_PASSWORD",
	"Log.Level":                  "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "8000")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.PublicBaseURL", "http://localhost:8000")
	v.SetDefault("Server.ShutdownTimeout", 30*time.Second)
	v.SetDefault("Server.RequestTimeout", 30*time.Minute)
	v.SetDefault("Database.Port", "5432")
	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Auth.AccessTokenTTL", 30*time.Minute)
	v.SetDefault("Auth.BcryptCost", 10)
	v.SetDefault("Files.MaxSizeBytes", 10*1024*1024)
	v.SetDefault("Files.AllowedExtensions", []string{".pptx", ".docx", ".xlsx"})
	v.SetDefault("Download.GrantTTL", 24*time.Hour)
	v.SetDefault("Download.HistoryRetention", time.Duration(0))
	v.SetDefault("Storage.Backend", StorageDisk)
	v.SetDefault("Storage.Dir", "uploads")
	v.SetDefault("Storage.S3.Region", "us-east-1")
	v.SetDefault("Lockout.MaxAttempts", 5)
	v.SetDefault("Lockout.Window", 15*time.Minute)
	v.SetDefault("Log.Level", "info")
}

// NewConfig reads path (if it exists) and overlays environment variables on top of it.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			fmt.Printf("Warning: using only environment variables: %v\n", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Files.AllowedExtensions = normalizeExtensions(cfg.Files.AllowedExtensions)
	cfg.Server.PublicBaseURL = strings.TrimRight(cfg.Server.PublicBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.EncryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Download.GrantTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Files.MaxSizeBytes <= 0 {
		return fmt.Errorf("max file size must be positive")
	}
	if len(c.Files.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed extension is required")
	}

	switch c.Storage.Backend {
	case StorageDisk:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir is required for the disk backend")
		}
	case StorageS3:
		if err := c.Storage.S3.Validate(); err != nil {
			return fmt.Errorf("s3 storage: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// normalizeExtensions accepts "docx", ".DOCX" and comma separated env values alike.
func normalizeExtensions(in []string) []string {
	var out []string
	for _, item := range in {
		for _, ext := range strings.Split(item, ",") {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			out = append(out, ext)
		}
	}
	return out
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// URL is the form golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
