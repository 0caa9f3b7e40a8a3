package ranking

// Config holds category ranking settings.
type Config struct {
	DefaultLimit int `yaml:"default_limit"` // default: 5
	Workers      int `yaml:"workers"`       // default: GOMAXPROCS
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() *Config {
	return &Config{DefaultLimit: 5}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 5
	}
}
