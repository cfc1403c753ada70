package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Upload   UploadConfig   `mapstructure:"upload"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URI     string `mapstructure:"uri"`
	Name    string `mapstructure:"name"`
}

// UploadConfig controls the upload validation pipeline.
type UploadConfig struct {
	BaseDir           string   `mapstructure:"base_dir"`  // Root of the public directory
	TempPath          string   `mapstructure:"temp_path"` // Subdirectory (and URL prefix) for uploaded files
	MinSize           int64    `mapstructure:"min_size"`  // Declared Content-Length below this is rejected
	MaxSize           int64    `mapstructure:"max_size"`  // Hard ceiling on the multipart body
	FieldName         string   `mapstructure:"field_name"`
	AllowedTypes      []string `mapstructure:"allowed_types"`
	RejectUnsupported bool     `mapstructure:"reject_unsupported"` // Fail instead of skipping non allow-listed parts
}

// Dir returns the directory uploads are written to, relative to the process
// unless BaseDir is absolute.
func (u UploadConfig) Dir() string {
	if u.TempPath == "" {
		return u.BaseDir
	}
	return u.BaseDir + "/" + strings.Trim(u.TempPath, "/")
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// Enabled reports whether accepted files should be mirrored to a bucket.
func (s S3Config) Enabled() bool {
	return s.BucketName != ""
}

// JWTConfig defines JWT specific configuration.
// An empty secret leaves the upload route unauthenticated.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"` // Lifetime of tokens issued by imagecheck token
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const (
	DefaultMinSize   = 2 * 1024         // 2 KiB
	DefaultMaxSize   = 10 * 1024 * 1024 // 10 MiB
	DefaultFieldName = "file"
)

// DefaultAllowedTypes is the MIME allow-list used when none is configured.
var DefaultAllowedTypes = []string{
	"image/png",
	"image/jpg",
	"image/jpeg",
	"image/gif",
	"image/svg+xml",
}

var (
	ErrInvalidSizeLimits = errors.New("config: upload.max_size must be greater than upload.min_size and min_size must not be negative")
	ErrEmptyAllowList    = errors.New("config: upload.allowed_types must not be empty")
	ErrEmptyFieldName    = errors.New("config: upload.field_name must not be empty")
)

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, upload.max_size -> UPLOAD_MAX_SIZE
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))
	// Keep the historical variable name working for the upload subdirectory.
	if err = v.BindEnv("upload.temp_path", "UPLOAD_PATH_TEMP", "UPLOAD_TEMP_PATH"); err != nil {
		return
	}

	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "imagegate")
	v.SetDefault("upload.base_dir", "public")
	v.SetDefault("upload.temp_path", "temp")
	v.SetDefault("upload.min_size", DefaultMinSize)
	v.SetDefault("upload.max_size", DefaultMaxSize)
	v.SetDefault("upload.field_name", DefaultFieldName)
	v.SetDefault("upload.allowed_types", DefaultAllowedTypes)
	v.SetDefault("upload.reject_unsupported", false)
	// Empty defaults make these keys visible to Unmarshal when only set in the environment.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.presign_expiry", "15m")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("metrics.enabled", true)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No file; defaults and environment are enough.
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	if err = config.Upload.Validate(); err != nil {
		return
	}
	return config, nil
}

// Validate checks the upload limits for consistency.
func (u UploadConfig) Validate() error {
	if u.MinSize < 0 || u.MaxSize <= u.MinSize {
		return ErrInvalidSizeLimits
	}
	if len(u.AllowedTypes) == 0 {
		return ErrEmptyAllowList
	}
	if strings.TrimSpace(u.FieldName) == "" {
		return ErrEmptyFieldName
	}
	return nil
}
