package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Store  StoreConfig  `mapstructure:"store"  validate:"required"`
	Auth   AuthConfig   `mapstructure:"auth"   validate:"required"`
	API    APIConfig    `mapstructure:"api"    validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeoutSeconds bounds graceful shutdown of in-flight requests.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// Store drivers understood by cmd/server.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// StoreConfig selects and configures the document store backing resource views.
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory postgres mongo"`
	// URL is the Postgres DSN or Mongo URI. Unused by the memory driver.
	URL string `mapstructure:"url" validate:"required_unless=Driver memory"`
	// Database names the Mongo database. Ignored by other drivers.
	Database string `mapstructure:"database" validate:"required_if=Driver mongo"`
}

// AuthConfig configures bearer token issuance and verification.
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"      validate:"required,min=32"`
	Issuer        string `mapstructure:"issuer"          validate:"required"`
	MaxAgeMinutes int    `mapstructure:"max_age_minutes" validate:"required,gt=0"`
	HeaderName    string `mapstructure:"header_name"     validate:"required"`
}

// APIConfig holds settings shared by every mounted view.
type APIConfig struct {
	BasePath string `mapstructure:"base_path" validate:"required,startswith=/"`
	PageSize int    `mapstructure:"page_size" validate:"required,gt=0"`
	// IssueTokens mounts an unauthenticated token endpoint. Development only.
	IssueTokens bool `mapstructure:"issue_tokens"`
}
