package quantum

import "time"

const (
	DefaultShots          = 2048
	DefaultAnglePrecision = 12
	DefaultCapacity       = 16
	DefaultBackendTimeout = 60 * time.Second
)

// Config 引擎的静态配置，构造引擎时复制一份，调用期间不会被修改。
type Config struct {
	MachineName    string
	Capacity       int
	Shots          int
	AnglePrecision int
	Thresholds     Thresholds
	BackendTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MachineName:    "tianyan_swn",
		Capacity:       DefaultCapacity,
		Shots:          DefaultShots,
		AnglePrecision: DefaultAnglePrecision,
		Thresholds:     DefaultThresholds(),
		BackendTimeout: DefaultBackendTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Shots <= 0 {
		c.Shots = DefaultShots
	}
	if c.AnglePrecision <= 0 {
		c.AnglePrecision = DefaultAnglePrecision
	}
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = DefaultBackendTimeout
	}
	if c.Thresholds == nil {
		c.Thresholds = DefaultThresholds()
	} else {
		c.Thresholds = c.Thresholds.clone()
	}
	return c
}
