package trainingconfig

import "github.com/jebjergk/MIP-sub000/internal/contracts"

// Config는 training 엔드포인트의 기본값 전체
// Gate is only a fallback: the active row of the parameter store wins.
type Config struct {
	Meta     Meta                 `yaml:"meta" json:"meta"`
	Gate     contracts.GateParams `yaml:"gate_fallback" json:"gate_fallback"`
	Timeline Timeline             `yaml:"timeline" json:"timeline"`
	Horizons []int                `yaml:"horizons" json:"horizons"`
}

// Meta 메타 정보
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// Timeline request defaults and upper bounds
type Timeline struct {
	DefaultHorizonBars int `yaml:"default_horizon_bars" json:"default_horizon_bars"`
	RollingWindow      int `yaml:"rolling_window" json:"rolling_window"`       // 0 = unbounded
	MaxPoints          int `yaml:"max_points" json:"max_points"`               // 0 = no truncation
	MaxRollingWindow   int `yaml:"max_rolling_window" json:"max_rolling_window"` // request cap
	MaxPointsLimit     int `yaml:"max_points_limit" json:"max_points_limit"`     // request cap
}

// Default returns the built-in configuration used when TRAINING_CONFIG is empty
func Default() *Config {
	return &Config{
		Meta: Meta{
			ConfigID: "mip_training_builtin",
			Version:  "1",
		},
		Gate: contracts.DefaultGateParams(),
		Timeline: Timeline{
			DefaultHorizonBars: 5,
			RollingWindow:      20,
			MaxPoints:          200,
			MaxRollingWindow:   500,
			MaxPointsLimit:     5000,
		},
		Horizons: append([]int(nil), contracts.DefaultHorizons...),
	}
}

// HasHorizon reports whether bars is one of the configured horizons
func (c *Config) HasHorizon(bars int) bool {
	for _, h := range c.Horizons {
		if h == bars {
			return true
		}
	}
	return false
}
