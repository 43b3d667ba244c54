package config

import "strings"

// MetricsConfig controls StatsD emission. Disabled by default.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Address string `env:"ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix  string `env:"PREFIX"  envDefault:"learnhub"`
	// Tags are "key:value" pairs added to every metric, separated by ','.
	Tags []string `env:"TAGS" envSeparator:","`
}

// Sanitize trims values.
func (m *MetricsConfig) Sanitize() {
	m.Address = strings.TrimSpace(m.Address)
	m.Prefix = strings.TrimSpace(m.Prefix)
}

// TagMap parses Tags; entries without a ':' become "key:true".
func (m MetricsConfig) TagMap() map[string]string {
	out := make(map[string]string, len(m.Tags))
	for _, raw := range m.Tags {
		k, v, ok := strings.Cut(strings.TrimSpace(raw), ":")
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		if !ok {
			v = "true"
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
