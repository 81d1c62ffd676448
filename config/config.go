// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath        = pflag.String("config", "config.toml", "Path to the config file")
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"s3", "local"}
	validDBDrivers    = []string{"sqlite", "postgres"}
)

type Config struct {
	App      App      `mapstructure:"app"`
	Host     Host     `mapstructure:"host"`
	DB       Database `mapstructure:"db"`
	Storage  Storage  `mapstructure:"storage"`
	Upload   Upload   `mapstructure:"upload"`
	Token    Token    `mapstructure:"token"`
	JWT      JWT      `mapstructure:"jwt"`
	Security Security `mapstructure:"security"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
}

type Host struct {
	Port   int      `mapstructure:"port"`
	Domain string   `mapstructure:"domain"`
	CORS   []string `mapstructure:"cors"`
	SSL    SSL      `mapstructure:"ssl"`
}

type SSL struct {
	Enabled            bool   `mapstructure:"enabled"`
	CertificatePath    string `mapstructure:"certificate_path"`
	CertificateKeyPath string `mapstructure:"certificate_key_path"`
}

type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Storage struct {
	Type     string `mapstructure:"type"`
	RootPath string `mapstructure:"root_path"`
	S3       S3     `mapstructure:"s3"`
}

type S3 struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type Upload struct {
	// MaxSize is given in MiB in the config file and converted to bytes by Load.
	MaxSize  int64 `mapstructure:"max_size"`
	MaxFiles int   `mapstructure:"max_files"`
}

type Token struct {
	DefaultValidity time.Duration `mapstructure:"default_validity"`
	MaxValidity     time.Duration `mapstructure:"max_validity"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type JWT struct {
	Secret string `mapstructure:"secret"`
}

type Security struct {
	RateLimit int `mapstructure:"rate_limit"`
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Host.Port)
}

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() (*Config, error) {
	pflag.Parse()
	return Load(*configPath)
}

// Load reads the config file at path, overlays environment variables and
// validates the result.
func Load(path string) (*Config, error) {
	vp := v.New()

	vp.SetConfigFile(path)
	vp.SetConfigType("toml")

	//
	// ENVS
	//
	vp.BindEnv("app.log_level", "APP_LOG_LEVEL")

	vp.BindEnv("host.port", "HOST_PORT")
	vp.BindEnv("host.domain", "HOST_DOMAIN")
	vp.BindEnv("host.cors", "HOST_CORS")

	vp.BindEnv("host.ssl.enabled", "HOST_SSL_ENABLED")
	vp.BindEnv("host.ssl.certificate_path", "HOST_SSL_CERTIFICATE_PATH")
	vp.BindEnv("host.ssl.certificate_key_path", "HOST_SSL_CERTIFICATE_KEY_PATH")

	vp.BindEnv("db.driver", "DB_DRIVER")
	vp.BindEnv("db.dsn", "DB_DSN")

	vp.BindEnv("storage.type", "STORAGE_TYPE")
	vp.BindEnv("storage.root_path", "STORAGE_ROOT_PATH")
	vp.BindEnv("storage.s3.region", "STORAGE_S3_REGION")
	vp.BindEnv("storage.s3.bucket", "STORAGE_S3_BUCKET")
	vp.BindEnv("storage.s3.endpoint", "STORAGE_S3_ENDPOINT")
	vp.BindEnv("storage.s3.access_key_id", "STORAGE_S3_ACCESS_KEY_ID")
	vp.BindEnv("storage.s3.secret_access_key", "STORAGE_S3_SECRET_ACCESS_KEY")
	vp.BindEnv("storage.s3.use_path_style", "STORAGE_S3_USE_PATH_STYLE")

	vp.BindEnv("upload.max_size", "UPLOAD_MAX_SIZE")
	vp.BindEnv("upload.max_files", "UPLOAD_MAX_FILES")

	vp.BindEnv("token.default_validity", "TOKEN_DEFAULT_VALIDITY")
	vp.BindEnv("token.max_validity", "TOKEN_MAX_VALIDITY")
	vp.BindEnv("token.cleanup_interval", "TOKEN_CLEANUP_INTERVAL")

	vp.BindEnv("jwt.secret", "JWT_SECRET")

	vp.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")

	//
	// Defaults
	//
	vp.SetDefault("app.log_level", "info")

	vp.SetDefault("host.port", 8080)
	vp.SetDefault("host.domain", "localhost")
	vp.SetDefault("host.cors", []string{})
	vp.SetDefault("host.ssl.enabled", false)

	vp.SetDefault("db.driver", "sqlite")
	vp.SetDefault("db.dsn", "database.db")

	vp.SetDefault("storage.type", "local")
	vp.SetDefault("storage.root_path", "media")
	vp.SetDefault("storage.s3.region", "auto")

	vp.SetDefault("upload.max_size", 50)
	vp.SetDefault("upload.max_files", 20)

	vp.SetDefault("token.default_validity", "10m")
	vp.SetDefault("token.max_validity", "24h")
	vp.SetDefault("token.cleanup_interval", "1h")

	vp.SetDefault("security.rate_limit", 5)

	if err := vp.ReadInConfig(); err != nil {
		var notFound v.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s is missing", path)
		}

		return nil, fmt.Errorf("failed to read config file, %w", err)
	}

	var c Config
	if err := vp.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	c.Upload.MaxSize <<= 20
	return &c, nil
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if c.Host.Port <= 0 {
		return errors.New("invalid port provided")
	}

	if c.Host.SSL.Enabled {
		if c.Host.SSL.CertificatePath == "" {
			return errors.New("no ssl certificate path provided")
		}

		if c.Host.SSL.CertificateKeyPath == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is not set. Set it as JWT_SECRET or in the config file, for example:\n\n%s", genSecret())
	}

	if !slices.Contains(validDBDrivers, c.DB.Driver) {
		return errors.New("invalid database driver provided")
	}

	if c.DB.DSN == "" {
		return errors.New("database dsn can't be empty")
	}

	if !slices.Contains(validStorageTypes, c.Storage.Type) {
		return errors.New("invalid storage type provided")
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.RootPath == "" {
			return errors.New("storage root path can't be empty")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("bucket can't be empty")
		}
		if c.Storage.S3.AccessKeyID == "" {
			return errors.New("access key id can't be empty")
		}
		if c.Storage.S3.SecretAccessKey == "" {
			return errors.New("secret access key can't be empty")
		}
	}

	if c.Upload.MaxSize <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if c.Upload.MaxFiles <= 0 {
		return errors.New("upload.max_files must be bigger than 0")
	}

	if c.Token.DefaultValidity <= 0 {
		return errors.New("token.default_validity must be bigger than 0")
	}

	if c.Token.MaxValidity < c.Token.DefaultValidity {
		return errors.New("token.max_validity can't be smaller than token.default_validity")
	}

	if c.Token.CleanupInterval < 0 {
		return errors.New("token.cleanup_interval can't be negative")
	}

	if c.Security.RateLimit <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	return nil
}
