package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio de identidad.
type Config struct {
	HTTPPort             string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	DBMaxConns           int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns           int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	RedisAddr            string `env:"REDIS_ADDR"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              int    `env:"REDIS_DB" envDefault:"0"`
	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
}

// ClientConfig agrupa la configuración de la consola cliente.
type ClientConfig struct {
	IdentityBaseURL   string        `env:"IDENTITY_BASE_URL" envDefault:"http://localhost:8080"`
	IdentityTimeout   time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`
	CredentialStore   string        `env:"CREDENTIAL_STORE" envDefault:"file"`
	CredentialFile    string        `env:"CREDENTIAL_FILE" envDefault:".fleetpark/credentials.json"`
	CredentialProfile string        `env:"CREDENTIAL_PROFILE" envDefault:"default"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	AlertDuration     time.Duration `env:"ALERT_DURATION" envDefault:"3s"`
	LoginPath         string        `env:"LOGIN_PATH" envDefault:"/login"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClientConfig carga la configuración de la consola desde variables de entorno.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
