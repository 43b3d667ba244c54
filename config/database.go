package config

import "time"

// DBConfig contains PostgreSQL connection settings for the hosted backend's
// database. The schema is owned by the backend; nothing is migrated from here.
type DBConfig struct {
	Enabled         bool          `env:"ENABLED"           envDefault:"true"`
	Host            string        `env:"HOST"              envDefault:"localhost"`
	Port            int           `env:"PORT"              envDefault:"5432"`
	User            string        `env:"USER"              envDefault:"learnhub"`
	Password        string        `env:"PASSWORD"          envDefault:"learnhub"`
	Name            string        `env:"NAME"              envDefault:"learnhub"`
	SSLMode         string        `env:"SSL_MODE"          envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	QueryTimeout    time.Duration `env:"QUERY_TIMEOUT"     envDefault:"5s"`
}

// Sanitize applies pool floors.
func (c *DBConfig) Sanitize() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 20
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
}

// RedisConfig contains Redis configuration for auth session persistence.
type RedisConfig struct {
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
	// KeyPrefix namespaces stored auth sessions.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"authsession:"`
}
