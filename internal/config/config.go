package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	BcryptCost        int `env:"BCRYPT_COST" envDefault:"12"`
	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`

	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
}

// Load reads .env if present, then the process environment.
// A missing DATABASE_URL or JWT_SECRET fails Load: the process must not
// serve protected routes without a signing secret.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
