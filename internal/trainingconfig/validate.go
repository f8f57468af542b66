package trainingconfig

import (
	"fmt"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Gate ===
	if err := cfg.Gate.Validate(); err != nil {
		return ValidationError{"gate_fallback", err.Error()}
	}
	if cfg.Gate.MinSignalsBootstrap > cfg.Gate.MinSignals {
		return ValidationError{"gate_fallback.min_signals_bootstrap", "must be <= min_signals"}
	}

	// === Horizons ===
	if len(cfg.Horizons) == 0 {
		return ValidationError{"horizons", "required"}
	}
	if len(cfg.Horizons) > contracts.MaxHorizons {
		return ValidationError{"horizons", fmt.Sprintf("at most %d horizons", contracts.MaxHorizons)}
	}
	for i, h := range cfg.Horizons {
		if h <= 0 {
			return ValidationError{"horizons", fmt.Sprintf("horizon %d must be > 0", h)}
		}
		if i > 0 && h <= cfg.Horizons[i-1] {
			return ValidationError{"horizons", "must be strictly ascending"}
		}
	}

	// === Timeline ===
	t := cfg.Timeline
	if !cfg.HasHorizon(t.DefaultHorizonBars) {
		return ValidationError{"timeline.default_horizon_bars", fmt.Sprintf("%d is not a configured horizon", t.DefaultHorizonBars)}
	}
	if t.RollingWindow < 0 {
		return ValidationError{"timeline.rolling_window", "must be >= 0"}
	}
	if t.MaxPoints < 0 {
		return ValidationError{"timeline.max_points", "must be >= 0"}
	}
	if t.MaxRollingWindow <= 0 || t.RollingWindow > t.MaxRollingWindow {
		return ValidationError{"timeline.max_rolling_window", "must be > 0 and >= rolling_window"}
	}
	if t.MaxPointsLimit <= 0 || t.MaxPoints > t.MaxPointsLimit {
		return ValidationError{"timeline.max_points_limit", "must be > 0 and >= max_points"}
	}

	return nil
}
