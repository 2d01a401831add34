package config

import (
	"os"
	"strings"
)

// AppConfig is everything pds reads from the environment, parsed with
// github.com/caarlos0/env. Sub-configs live next to the concern they serve:
//   - auth.go: identity provider, callback timing and role mapping
//   - database.go: Postgres profiles and Redis session state
//   - http.go: listener and cookies
//   - observability.go: metrics
type AppConfig struct {
	// IsDev enables dev auth and verbose defaults. NODE_ENV=development
	// also turns it on.
	IsDev bool `env:"DEV" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"` // debug, info, warn, error
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json or text

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails after parsing.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.Postgres.Sanitize()
	c.Redis.Sanitize()
	c.Observability.Sanitize()

	c.LogLevel = oneOf(c.LogLevel, "info", "debug", "info", "warn", "error")
	c.LogFormat = oneOf(c.LogFormat, "json", "json", "text")

	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// oneOf lowercases v and falls back to def unless it is allowed.
func oneOf(v, def string, allowed ...string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}
