package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Storage drivers.
const (
	StorageDriverFS = "fs"
	StorageDriverS3 = "s3"
)

// OCR drivers.
const (
	OCRDriverNone      = "none"
	OCRDriverTesseract = "tesseract"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Storage StorageConfig     `yaml:"storage"`
	Auth    AuthConfig        `yaml:"auth"`
	OCR     OCRConfig         `yaml:"ocr"`
	Ingest  IngestConfig      `yaml:"ingest"`
	Paging  PagingConfig      `yaml:"paging"`
	MCP     MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.SQLite, &c.Storage, &c.Auth, &c.OCR, &c.Ingest, &c.Paging, &c.MCP,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// StorageConfig selects where note blobs live. Path is used by the fs
// driver; the remaining fields by s3.
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StorageDriverFS
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StorageDriverFS, StorageDriverS3)),
		validation.Field(&c.Path, validation.When(c.Driver == StorageDriverFS, validation.Required)),
		validation.Field(&c.Bucket, validation.When(c.Driver == StorageDriverS3, validation.Required)),
		validation.Field(&c.Region, validation.When(c.Driver == StorageDriverS3, validation.Required)),
		validation.Field(&c.Endpoint, is.URL),
	)
}

// AuthConfig holds session signing configuration.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	CodeTTL   time.Duration `yaml:"code_ttl"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenTTL, validation.Min(time.Minute)),
		validation.Field(&c.CodeTTL, validation.Min(30*time.Second)),
	)
}

// OCRConfig selects the text recognizer applied to uploaded page images.
type OCRConfig struct {
	Driver   string `yaml:"driver"`
	Binary   string `yaml:"binary"`
	Language string `yaml:"language"`
}

// Validate validates the OCR configuration.
func (c *OCRConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = OCRDriverNone
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(OCRDriverNone, OCRDriverTesseract)),
	)
}

// IngestConfig enables the inbox watcher. Documents are uploaded on behalf
// of the account registered with OwnerEmail.
type IngestConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	OwnerEmail string `yaml:"owner_email"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.OwnerEmail, validation.When(c.Enabled, validation.Required), is.EmailFormat),
	)
}

// PagingConfig tunes listing sessions.
type PagingConfig struct {
	EmptyDelay  time.Duration `yaml:"empty_delay"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	MaxPerUser  int           `yaml:"max_per_user"`
}

// Validate validates the paging configuration.
func (c *PagingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.EmptyDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.IdleTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxPerUser, validation.Min(0)),
	)
}

// MCPConfig configures the stdio tool server. Uploading is enabled only when
// OwnerEmail names a registered account.
type MCPConfig struct {
	OwnerEmail string `yaml:"owner_email"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OwnerEmail, is.EmailFormat),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./noteshare.db",
		},
		Storage: StorageConfig{
			Driver: StorageDriverFS,
			Path:   "./blobs",
		},
		Auth: AuthConfig{
			TokenTTL: 30 * 24 * time.Hour,
			CodeTTL:  5 * time.Minute,
		},
		OCR: OCRConfig{
			Driver: OCRDriverNone,
			Binary: "tesseract",
		},
		Ingest: IngestConfig{
			Dir: "./inbox",
		},
		Paging: PagingConfig{
			EmptyDelay:  3 * time.Second,
			IdleTimeout: 30 * time.Minute,
			MaxPerUser:  16,
		},
	}
}
