package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var ErrPingPeriod = errors.New("WS_PING_PERIOD must be shorter than WS_PONG_WAIT")

type Config struct {
	HttpServerPort uint16   `env:"HTTP_SERVER_PORT" envDefault:"3000" validate:"min=1000,max=65535"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"  envDefault:"http://localhost:5000" envSeparator:","`

	WsMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096" validate:"min=64"`
	WsSendBuffer     int           `env:"WS_SEND_BUFFER"      envDefault:"256"  validate:"min=1"`
	WsWriteWait      time.Duration `env:"WS_WRITE_WAIT"       envDefault:"10s"  validate:"gt=0"`
	WsPongWait       time.Duration `env:"WS_PONG_WAIT"        envDefault:"60s"  validate:"gt=0"`
	WsPingPeriod     time.Duration `env:"WS_PING_PERIOD"      envDefault:"54s"  validate:"gt=0"`

	LifecycleBuffer int `env:"LIFECYCLE_BUFFER" envDefault:"1024" validate:"min=1"`

	PresenceEnabled bool   `env:"PRESENCE_ENABLED" envDefault:"false"`
	PresencePrefix  string `env:"PRESENCE_PREFIX"  envDefault:"relay" validate:"required"`
	RedisHost       string `env:"REDIS_HOST"       envDefault:"localhost"`
	RedisPort       uint16 `env:"REDIS_PORT"       envDefault:"6379" validate:"min=1000,max=65535"`
	RedisDb         int    `env:"REDIS_DB"         envDefault:"0"    validate:"min=0,max=15"`

	AuditEnabled       bool          `env:"AUDIT_ENABLED"        envDefault:"false"`
	AuditBatchSize     int           `env:"AUDIT_BATCH_SIZE"     envDefault:"100" validate:"min=1"`
	AuditFlushInterval time.Duration `env:"AUDIT_FLUSH_INTERVAL" envDefault:"2s"  validate:"gt=0"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"relay_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"relay_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"relay_db"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}

	validate := validator.New()
	if err = validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	if cfg.WsPingPeriod >= cfg.WsPongWait {
		zap.L().Error("config_validation_failed", zap.Error(ErrPingPeriod))
		return nil, ErrPingPeriod
	}
	return cfg, nil
}
