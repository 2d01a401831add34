package config

import "time"

// DBConfig locates the profile database (DB_*).
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"pds"`
	Password string `env:"PASSWORD" envDefault:"pds"`
	Name     string `env:"NAME"     envDefault:"pds"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // 'require' in production

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"5m"`

	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
	// Disabled runs without a profile database; sessions then carry only
	// provider-mapped roles and parents always land in onboarding.
	Disabled bool `env:"DISABLED" envDefault:"false"`
}

// Sanitize clamps pool settings.
func (c *DBConfig) Sanitize() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns < 0 {
		c.MaxIdleConns = 0
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
}

// RedisConfig selects a single node, a sentinel group or a cluster (REDIS_*).
// It backs sessions, navigation intents and the session event channel.
type RedisConfig struct {
	URI         string        `env:"URI"          envDefault:"localhost:6379"`
	Password    string        `env:"PASSWORD"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`

	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"`

	UseCluster   bool     `env:"USE_CLUSTER"   envDefault:"false"`
	ClusterNodes []string `env:"CLUSTER_NODES"`

	SessionPrefix string `env:"SESSION_PREFIX" envDefault:"session:"`
	EventChannel  string `env:"EVENT_CHANNEL"  envDefault:"pds:auth-events"`
}

// Sanitize restores defaults blanked out by the environment.
func (c *RedisConfig) Sanitize() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.SessionPrefix == "" {
		c.SessionPrefix = "session:"
	}
	if c.EventChannel == "" {
		c.EventChannel = "pds:auth-events"
	}
}
