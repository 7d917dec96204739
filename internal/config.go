package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	// DatabaseURL is handed untouched to the postgres driver.
	DatabaseURL string `env:"DATABASE_URL,required=true" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Host        string `env:"HOST,default=0.0.0.0"`
	Port        int    `env:"PORT,default=6687" validate:"min=1,max=65535"`

	SessionBufferSize int           `env:"SESSION_BUFFER_SIZE,default=128" validate:"min=1"`
	DeliveryTimeout   time.Duration `env:"DELIVERY_TIMEOUT,default=50ms" validate:"min=0"`
	KeepAliveInterval time.Duration `env:"KEEP_ALIVE_INTERVAL,default=15s" validate:"min=0"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"min=0"`

	MinReconnectInterval time.Duration `env:"MIN_RECONNECT_INTERVAL,default=1s" validate:"gt=0"`
	MaxReconnectInterval time.Duration `env:"MAX_RECONNECT_INTERVAL,default=1m" validate:"gtefield=MinReconnectInterval"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=90s" validate:"gt=0"`
	MaxFailedReconnects  int           `env:"MAX_FAILED_RECONNECTS,default=10" validate:"min=0"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=2s" validate:"gt=0"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=30s" validate:"gt=0"`
	BacklogInterval time.Duration `env:"BACKLOG_INTERVAL,default=5s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`

	// BacklogWarnRatio of a full mailbox above which a session is reported as lagging.
	BacklogWarnRatio float64 `env:"BACKLOG_WARN_RATIO,default=0.8" validate:"min=0,max=1"`

	JWTSecret string `env:"JWT_SECRET,required=true" validate:"required,min=16"`
	JWTIssuer string `env:"JWT_ISSUER,default=chat_server" validate:"required"`
}

var validate = validator.New()

// Validate checks the bounds env tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
