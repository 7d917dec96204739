package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DATABASE_URL points at the database the notify server listens to
	DatabaseURL string `envconfig:"E2E_DATABASE_URL"`
	// E2E_NOTIFY_URL is the event stream endpoint of a running notify server
	NotifyURL string `envconfig:"E2E_NOTIFY_URL" default:"http://localhost:6687/events"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"chat_server"`
	// E2E_DEBUG_JSON dumps every received frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// Enabled reports whether a database and a server are available.
func (c Config) Enabled() bool {
	return c.DatabaseURL != "" && c.JWTSecret != ""
}
