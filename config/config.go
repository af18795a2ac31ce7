package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// devSecretKey is the signing key shipped in the embedded config.yml.
const devSecretKey = "dev-only-secret-change-me"

const minSecretKeyLength = 32

// JWTConfig holds the signing material and lifetimes for issued tokens.
type JWTConfig struct {
	SecretKey  string        `mapstructure:"secretKey"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	SessionTTL time.Duration `mapstructure:"sessionTTL"`
	ResetTTL   time.Duration `mapstructure:"resetTTL"`
}

// AuthConfig tunes the credential service.
type AuthConfig struct {
	BcryptCost         int           `mapstructure:"bcryptCost"`
	TenantCacheTTL     time.Duration `mapstructure:"tenantCacheTTL"`
	ResetRequestLimit  int           `mapstructure:"resetRequestLimit"`
	ResetRequestWindow time.Duration `mapstructure:"resetRequestWindow"`
	ResetURL           string        `mapstructure:"resetURL"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"mode":                           "APP_ENV",
	"server.HTTPPort":                "HTTP_PORT",
	"handlers.prometheus.port":       "METRICS_PORT",
	"repositories.postgres.host":     "DATABASE_HOST",
	"repositories.postgres.port":     "DATABASE_PORT",
	"repositories.postgres.username": "DATABASE_USER",
	"repositories.postgres.password": "DATABASE_PASSWORD",
	"repositories.postgres.db":       "DATABASE_NAME",
	"repositories.postgres.SSLMODE":  "DATABASE_SSLMODE",
	"jwt.secretKey":                  "JWT_SECRET",
	"jwt.sessionTTL":                 "JWT_EXPIRES_IN",
	"jwt.issuer":                     "JWT_ISSUER",
	"auth.resetURL":                  "PASSWORD_RESET_URL",
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	for key, env := range envBindings {
		if err = v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if err = v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.SecretKey) == "" {
		errs = append(errs, errors.New("jwt.secretKey must be set"))
	}
	if !c.IsDevelopment() {
		switch secret := strings.TrimSpace(c.JWT.SecretKey); {
		case secret == devSecretKey:
			errs = append(errs, errors.New("jwt.secretKey is the development placeholder; set JWT_SECRET"))
		case secret != "" && len(secret) < minSecretKeyLength:
			errs = append(errs, fmt.Errorf("jwt.secretKey must be at least %d bytes outside development", minSecretKeyLength))
		}
	}
	if c.JWT.SessionTTL <= 0 {
		errs = append(errs, errors.New("jwt.sessionTTL must be positive"))
	}
	if c.JWT.ResetTTL <= 0 {
		errs = append(errs, errors.New("jwt.resetTTL must be positive"))
	}
	if c.Auth.ResetRequestLimit < 0 {
		errs = append(errs, errors.New("auth.resetRequestLimit must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Mode == "" || c.Mode == "development"
}

// ParseDuration accepts Go duration syntax plus a whole-day suffix such as "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func durationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != durationType {
			return data, nil
		}
		return ParseDuration(data.(string))
	}
}
