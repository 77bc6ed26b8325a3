package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Job      JobConfig      `mapstructure:"job"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost           int    `mapstructure:"bcrypt_cost" validate:"gte=0,lte=31"`
}

// StorageConfig contains blob storage settings.
type StorageConfig struct {
	// Root is the directory uploaded files, thumbnails, and generated
	// reports are stored under.
	Root string `mapstructure:"root" validate:"required"`
}

// SMTPConfig contains outbound mail settings. When Host is empty the
// server falls back to a log-only mailer, so none of these fields are
// required.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"omitempty,email"`
}

// JobConfig contains background job runner settings.
type JobConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"gte=0"`
	QueueSize   int `mapstructure:"queue_size" validate:"gte=0"`
}
